package booking

import (
	"fmt"
	"slices"

	"booking-api/internal/apperr"
	"booking-api/internal/auth"
	"booking-api/internal/model"
)

type Action string

const (
	ActionCancel  Action = "cancel"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionReset   Action = "reset"
)

type transition struct {
	to    model.Status
	from  []model.Status // a status outside this list makes the move a Conflict
	roles []model.Role
	owner bool // the appointment's owner may invoke it regardless of role
}

// Every action is allowed from every state; the last call applied decides
// the final status.
var transitions = map[Action]transition{
	ActionCancel:  {to: model.StatusCancelled, from: model.Statuses, roles: []model.Role{model.RoleAdmin}, owner: true},
	ActionApprove: {to: model.StatusConfirmed, from: model.Statuses, roles: []model.Role{model.RoleAdmin}},
	ActionReject:  {to: model.StatusCancelled, from: model.Statuses, roles: []model.Role{model.RoleAdmin}},
	ActionReset:   {to: model.StatusPending, from: model.Statuses, roles: []model.Role{model.RoleAdmin}},
}

// permit checks the caller before any storage access.
func (t transition) permit(caller auth.Identity) error {
	if t.owner {
		return nil
	}
	return auth.Authorize(caller, t.roles...)
}

// check validates a loaded appointment against the transition.
func (t transition) check(caller auth.Identity, a *model.Appointment) error {
	if t.owner && a.UserID != caller.UserID {
		if err := auth.Authorize(caller, t.roles...); err != nil {
			return fmt.Errorf("appointment %s not owned by caller: %w", a.ID, apperr.ErrForbidden)
		}
	}
	if !slices.Contains(t.from, a.Status) {
		return fmt.Errorf("cannot move %s from %s to %s: %w", a.ID, a.Status, t.to, apperr.ErrConflict)
	}
	return nil
}
