package service

import (
	"time"

	"github.com/noah-isme/deadline-engine/internal/models"
)

const day = 24 * time.Hour

// PermissionSubject is the deadline data the resolver needs. Enabled is set
// for periods only; project deadlines have no kill switch.
type PermissionSubject struct {
	DueDate    time.Time
	Completed  bool
	Extensible bool
	Enabled    *bool
}

// SubjectFromDeadline adapts a project deadline.
func SubjectFromDeadline(d *models.ProjectDeadline) PermissionSubject {
	return PermissionSubject{DueDate: d.DueDate, Completed: d.Completed, Extensible: d.Extensible}
}

// SubjectFromPeriod adapts a global period.
func SubjectFromPeriod(p *models.DeadlinePeriod) PermissionSubject {
	enabled := p.Enabled
	return PermissionSubject{DueDate: p.EffectiveDate, Extensible: p.Extensible, Enabled: &enabled}
}

// ExtensionState summarises a deadline's extension history.
type ExtensionState struct {
	// LatestApproved is the approved request granting the latest date.
	LatestApproved *models.ExtensionRequest
	// Open is the pending or in-review request, if any.
	Open *models.ExtensionRequest
}

// ExtensionStateFrom derives the state from every request recorded against
// one deadline.
func ExtensionStateFrom(requests []models.ExtensionRequest) ExtensionState {
	var state ExtensionState
	for i := range requests {
		req := &requests[i]
		switch {
		case req.Status == models.ExtensionStatusApproved:
			if state.LatestApproved == nil || req.RequestedDate.After(state.LatestApproved.RequestedDate) {
				state.LatestApproved = req
			}
		case req.Status.IsOpen():
			state.Open = req
		}
	}
	return state
}

// EffectiveDeadline is the latest approved date, else the stored date.
func EffectiveDeadline(due time.Time, ext ExtensionState) time.Time {
	if ext.LatestApproved != nil && ext.LatestApproved.RequestedDate.After(due) {
		return ext.LatestApproved.RequestedDate
	}
	return due
}

// DaysRemaining returns ceil((effective - now) / 24h).
func DaysRemaining(effective, now time.Time) int {
	diff := effective.Sub(now)
	days := diff / day
	if diff%day > 0 {
		days++
	}
	return int(days)
}

// WindowCloses is the first instant at which DaysRemaining turns negative.
func WindowCloses(effective time.Time) time.Time {
	return effective.Add(day)
}

// ResolvePermission decides whether an action on subject is allowed at now.
// It performs no I/O.
func ResolvePermission(subject PermissionSubject, now time.Time, ext ExtensionState) models.PermissionResult {
	effective := EffectiveDeadline(subject.DueDate, ext)
	result := models.PermissionResult{
		EffectiveDeadline: effective,
		OriginalDeadline:  subject.DueDate,
		DaysRemaining:     DaysRemaining(effective, now),
	}
	if ext.LatestApproved != nil {
		id := ext.LatestApproved.ID
		result.ExtensionID = &id
	}
	if ext.Open != nil {
		id := ext.Open.ID
		result.OpenExtensionID = &id
	}

	switch {
	case subject.Enabled != nil && !*subject.Enabled:
		result.Reason = models.ReasonPeriodDisabled
	case subject.Completed:
		result.Reason = models.ReasonAlreadyCompleted
	case result.DaysRemaining >= 0:
		result.Allowed = true
		result.Reason = models.ReasonWithinWindow
	case ext.Open != nil:
		result.Reason = models.ReasonExtensionPending
	case subject.Extensible:
		result.Reason = models.ReasonCanRequestExtension
	default:
		result.Reason = models.ReasonWindowClosed
	}
	return result
}
