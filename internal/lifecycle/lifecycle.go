// Package lifecycle defines which status changes a calendar entry may go
// through and what each change writes.
//
// A Transition carries the set of statuses it may start from. Callers hand
// that set to the store's conditional update so the precondition is checked
// again at write time, not only when the entry was read.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"content-calendar/internal/model"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMissingDate       = errors.New("planned date is required")
	ErrAlreadyGenerating = errors.New("entry is already generating")
	ErrImmutable         = errors.New("published entries are immutable")
)

// Transition is a status change guarded by the statuses it may start from.
type Transition struct {
	Name   string
	From   []model.Status
	Target model.Status
	Patch  model.Patch
}

// Allows reports whether the transition may start from s.
func (t Transition) Allows(s model.Status) bool {
	for _, from := range t.From {
		if from == s {
			return true
		}
	}
	return false
}

// Check returns nil when the transition may start from current.
func (t Transition) Check(current model.Status) error {
	if t.Target == model.StatusGenerating && current == model.StatusGenerating {
		return ErrAlreadyGenerating
	}
	if t.Allows(current) {
		return nil
	}
	if t.Target == "" && current == model.StatusPublished {
		return ErrImmutable
	}
	return fmt.Errorf("%w: cannot %s an entry that is %s (allowed from %s)",
		ErrInvalidTransition, t.Name, current, joinStatuses(t.From))
}

// Approve moves a suggested or rejected entry to approved and stamps the approver.
func Approve(actor string, now time.Time) Transition {
	status := model.StatusApproved
	return Transition{
		Name:   "approve",
		From:   []model.Status{model.StatusSuggested, model.StatusRejected},
		Target: status,
		Patch: model.Patch{
			Status:           &status,
			ApprovedAt:       &now,
			ApprovedBy:       &actor,
			ClearPlannedDate: true,
		},
	}
}

// Reject clears the approval stamp. The decline reason is only written when
// one is given; an earlier reason is otherwise kept.
func Reject(reason *string) Transition {
	status := model.StatusRejected
	p := model.Patch{
		Status:           &status,
		ClearApproval:    true,
		ClearPlannedDate: true,
	}
	if reason != nil && strings.TrimSpace(*reason) != "" {
		r := strings.TrimSpace(*reason)
		p.DeclineReason = &r
	}
	return Transition{
		Name:   "reject",
		From:   []model.Status{model.StatusSuggested, model.StatusApproved},
		Target: status,
		Patch:  p,
	}
}

// Reschedule places an approved or scheduled entry on date.
func Reschedule(date *model.Date) (Transition, error) {
	if date == nil || date.IsZero() {
		return Transition{}, ErrMissingDate
	}
	status := model.StatusScheduled
	d := *date
	return Transition{
		Name:   "reschedule",
		From:   []model.Status{model.StatusApproved, model.StatusScheduled},
		Target: status,
		Patch: model.Patch{
			Status:      &status,
			PlannedDate: &d,
		},
	}, nil
}

// StartGeneration marks an entry as handed to the generation workflow.
func StartGeneration(now time.Time) Transition {
	status := model.StatusGenerating
	return Transition{
		Name:   "generate",
		From:   []model.Status{model.StatusSuggested, model.StatusApproved, model.StatusScheduled},
		Target: status,
		Patch: model.Patch{
			Status:              &status,
			GenerationStartedAt: &now,
		},
	}
}

// Outcome records progress reported by the generation workflow.
func Outcome(status model.Status, message string) (Transition, error) {
	t := Transition{Name: "report " + string(status) + " for", Target: status}
	switch status {
	case model.StatusInProgress:
		t.From = []model.Status{model.StatusGenerating}
		t.Patch = model.Patch{Status: &status}
	case model.StatusPublished:
		empty := ""
		t.From = []model.Status{model.StatusGenerating, model.StatusInProgress}
		t.Patch = model.Patch{Status: &status, ErrorMessage: &empty}
	case model.StatusFailed:
		msg := strings.TrimSpace(message)
		if msg == "" {
			msg = "generation failed"
		}
		t.From = []model.Status{model.StatusGenerating, model.StatusInProgress}
		t.Patch = model.Patch{Status: &status, ErrorMessage: &msg, ClearPlannedDate: true}
	default:
		return Transition{}, fmt.Errorf("%w: %q is not a workflow outcome", ErrInvalidTransition, status)
	}
	return t, nil
}

// Edit applies field changes that do not move the entry through the lifecycle.
// Everything except a published entry may be edited.
func Edit(p model.Patch) Transition {
	return Transition{
		Name:  "edit",
		From:  Mutable(),
		Patch: p,
	}
}

// Mutable lists the statuses an entry may be edited or deleted in.
func Mutable() []model.Status {
	var out []model.Status
	for _, s := range model.Statuses {
		if s != model.StatusPublished {
			out = append(out, s)
		}
	}
	return out
}

// CheckDelete refuses deletion of published entries.
func CheckDelete(current model.Status) error {
	if current == model.StatusPublished {
		return ErrImmutable
	}
	return nil
}

func joinStatuses(statuses []model.Status) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
