package policy

import (
	"context"
	"fmt"

	"github.com/diewo77/taskflow/gate"
	"github.com/diewo77/taskflow/internal/models"
)

// TaskPolicy decides single-task actions once the role permission passed.
type TaskPolicy struct {
	vis Visibility
}

func (p *TaskPolicy) Authorize(ctx context.Context, a models.Actor, action gate.Action, resource any) error {
	task, ok := resource.(*models.Task)
	if !ok {
		// list/create: the role permission is the whole check
		return nil
	}
	switch action {
	case gate.ActionComplete:
		if task.AssignedTo != a.UserID {
			return gate.Deny("Only the assignee can mark this task as done.")
		}
		return nil
	case gate.ActionView, gate.ActionComment, gate.ActionAttach:
		if a.IsManager() || task.AssignedTo == a.UserID || task.CreatedBy == a.UserID {
			return nil
		}
		// Same-tenant tasks the actor may not see are reported as missing.
		return gate.ErrNotFound
	case gate.ActionUpdate:
		if a.IsAdmin() || task.CreatedBy == a.UserID {
			return nil
		}
		visible, err := p.vis.CanSee(ctx, a, task.AssignedTo)
		if err != nil {
			return fmt.Errorf("task visibility: %w", err)
		}
		if !visible {
			return gate.Deny("This task is assigned outside your teams.")
		}
		return nil
	}
	return nil
}

// UserPolicy keeps admins from demoting or deleting their own account.
type UserPolicy struct{}

func (UserPolicy) Authorize(_ context.Context, a models.Actor, action gate.Action, resource any) error {
	u, ok := resource.(*models.User)
	if !ok || u.ID != a.UserID {
		return nil
	}
	switch action {
	case gate.ActionUpdate:
		return gate.Deny("You cannot change your own role.")
	case gate.ActionDelete:
		return gate.Deny("You cannot delete yourself.")
	}
	return nil
}

// subjectOf returns the user a report, leave request or profile belongs to.
func subjectOf(resource any) (uint, bool) {
	switch r := resource.(type) {
	case *models.DailyReport:
		return r.UserID, true
	case *models.LeaveRequest:
		return r.UserID, true
	case *models.EmployeeProfile:
		return r.UserID, true
	case *models.User:
		return r.ID, true
	}
	return 0, false
}

// canOversee reports whether a may act on records of userID as a supervisor:
// admins for the whole tenant, managers for their teams.
func canOversee(ctx context.Context, vis Visibility, a models.Actor, userID uint) (bool, error) {
	if a.IsAdmin() {
		return true, nil
	}
	if !a.IsManager() {
		return false, nil
	}
	return vis.CanSee(ctx, a, userID)
}

// OwnerPolicy lets everybody write only their own records and lets
// supervisors read the records of the users they oversee.
type OwnerPolicy struct {
	vis   Visibility
	label string
}

func (p *OwnerPolicy) Authorize(ctx context.Context, a models.Actor, action gate.Action, resource any) error {
	owner, ok := subjectOf(resource)
	if !ok || owner == a.UserID {
		return nil
	}
	if action != gate.ActionView && action != gate.ActionList {
		return gate.Deny("You can only manage your own " + p.label + ".")
	}
	allowed, err := canOversee(ctx, p.vis, a, owner)
	if err != nil {
		return err
	}
	if !allowed {
		return gate.ErrNotFound
	}
	return nil
}

// LeavePolicy: requests are filed by their owner and decided by a supervisor.
type LeavePolicy struct {
	vis Visibility
}

func (p *LeavePolicy) Authorize(ctx context.Context, a models.Actor, action gate.Action, resource any) error {
	owner, ok := subjectOf(resource)
	if !ok {
		return nil
	}
	switch action {
	case gate.ActionCreate:
		if owner != a.UserID {
			return gate.Deny("You can only request leave for yourself.")
		}
		return nil
	case gate.ActionDecide:
		allowed, err := canOversee(ctx, p.vis, a, owner)
		if err != nil {
			return err
		}
		if !allowed {
			return gate.Deny("This employee is outside your teams.")
		}
		return nil
	}
	if owner == a.UserID {
		return nil
	}
	allowed, err := canOversee(ctx, p.vis, a, owner)
	if err != nil {
		return err
	}
	if !allowed {
		return gate.ErrNotFound
	}
	return nil
}

// HRProfilePolicy: employees read their own profile, supervisors maintain
// the profiles of the users they oversee.
type HRProfilePolicy struct {
	vis Visibility
}

func (p *HRProfilePolicy) Authorize(ctx context.Context, a models.Actor, action gate.Action, resource any) error {
	owner, ok := subjectOf(resource)
	if !ok {
		return nil
	}
	if action == gate.ActionView && owner == a.UserID {
		return nil
	}
	allowed, err := canOversee(ctx, p.vis, a, owner)
	if err != nil {
		return err
	}
	if !allowed {
		if action == gate.ActionView {
			return gate.ErrNotFound
		}
		return gate.Deny("This employee is outside your teams.")
	}
	return nil
}
