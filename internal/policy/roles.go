package policy

import (
	"context"

	"github.com/diewo77/taskflow/gate"
	"github.com/diewo77/taskflow/internal/models"
)

var (
	userProfile = gate.NewStaticProfile(string(models.RoleUser),
		gate.NewPermission(ResourceTask, gate.ActionView),
		gate.NewPermission(ResourceTask, gate.ActionList),
		gate.NewPermission(ResourceTask, gate.ActionComplete),
		gate.NewPermission(ResourceTask, gate.ActionComment),
		gate.NewPermission(ResourceTask, gate.ActionAttach),
		gate.NewPermission(ResourceReport, gate.WildcardAll),
		gate.NewPermission(ResourceLeave, gate.ActionCreate),
		gate.NewPermission(ResourceLeave, gate.ActionList),
		gate.NewPermission(ResourceHRProfile, gate.ActionView),
	)
	managerProfile = userProfile.Extend(string(models.RoleManager),
		gate.NewPermission(ResourceTask, gate.ActionCreate),
		gate.NewPermission(ResourceTask, gate.ActionUpdate),
		gate.NewPermission(ResourceUser, gate.ActionList),
		gate.NewPermission(ResourceTeam, gate.ActionView),
		gate.NewPermission(ResourceTeam, gate.ActionList),
		gate.NewPermission(ResourceProject, gate.ActionList),
		gate.NewPermission(ResourceTeamReport, gate.ActionList),
		gate.NewPermission(ResourceLeave, gate.ActionDecide),
		gate.NewPermission(ResourceHRProfile, gate.ActionList),
		gate.NewPermission(ResourceHRProfile, gate.ActionUpdate),
		gate.NewPermission(ResourceAI, gate.ActionCreate),
	)
	adminProfile = managerProfile.Extend(string(models.RoleAdmin), gate.PermissionSuperAdmin)
)

// ProfileFor returns the permission profile of a role, nil for unknown roles.
func ProfileFor(r models.Role) *gate.StaticProfile {
	switch r {
	case models.RoleAdmin:
		return adminProfile
	case models.RoleManager:
		return managerProfile
	case models.RoleUser:
		return userProfile
	}
	return nil
}

// RoleResolver maps an actor to the static profile of its role.
type RoleResolver struct{}

func (RoleResolver) Resolve(_ context.Context, a models.Actor) (gate.Profile, error) {
	if p := ProfileFor(a.Role); p != nil {
		return p, nil
	}
	return nil, nil
}
