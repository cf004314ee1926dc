package condo

import (
	"github.com/acastellana/clawcondos/internal/config"
	apperrors "github.com/acastellana/clawcondos/internal/errors"
)

// RoleResolver maps board roles ("pm", "dev", ...) to agent ids. Bindings
// come from configuration and are fixed for the process lifetime.
type RoleResolver struct {
	byRole map[string]string
}

// NewRoleResolver builds a resolver from config bindings.
func NewRoleResolver(bindings []config.RoleBinding) *RoleResolver {
	byRole := make(map[string]string, len(bindings))
	for _, b := range bindings {
		byRole[b.Role] = b.AgentID
	}
	return &RoleResolver{byRole: byRole}
}

// Resolve returns the agent id bound to the role.
func (r *RoleResolver) Resolve(role string) (string, error) {
	agentID, ok := r.byRole[role]
	if !ok {
		return "", apperrors.NewNotFound("role", role)
	}
	return agentID, nil
}

// Roles returns every configured role.
func (r *RoleResolver) Roles() []string {
	out := make([]string, 0, len(r.byRole))
	for role := range r.byRole {
		out = append(out, role)
	}
	return out
}
