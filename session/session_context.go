package session

import (
	"context"
	"strings"

	"github.com/fundwit/go-commons/types"
)

const (
	SystemAdminPerm    = "system:admin"
	ProjectManagerRole = "manager"
)

// Context is the acting user of an operation. It is built by the
// authentication collaborator and carried into every manager call.
type Context struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
	Perms    []string `json:"perms"`

	Context context.Context `json:"-"`
}

type Identity struct {
	ID   types.ID `json:"id"`
	Name string   `json:"name"`
}

// SystemContext is the actor used for events that do not come from a user,
// such as e-signature webhooks.
func SystemContext(name string) *Context {
	return &Context{Identity: Identity{Name: name}, Perms: []string{SystemAdminPerm}, Context: context.Background()}
}

func (c *Context) HasRole(role string) bool {
	if c == nil {
		return false
	}
	for _, v := range c.Perms {
		if strings.EqualFold(v, role) {
			return true
		}
	}
	return false
}

func (c *Context) IsAdmin() bool {
	return c.HasRole(SystemAdminPerm)
}

// CanManageProject grants system admins and the manager of the project.
func (c *Context) CanManageProject(projectID types.ID) bool {
	return c.IsAdmin() || c.HasRole(ProjectManagerRole+"_"+projectID.String())
}

// ManagedProjectIDs lists the projects granted by "manager_<id>" permissions.
func (c *Context) ManagedProjectIDs() []types.ID {
	if c == nil {
		return nil
	}
	var ids []types.ID
	for _, perm := range c.Perms {
		if !strings.HasPrefix(perm, ProjectManagerRole+"_") {
			continue
		}
		if id, err := types.ParseID(strings.TrimPrefix(perm, ProjectManagerRole+"_")); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Context) ActorName() string {
	if c == nil {
		return ""
	}
	return c.Identity.Name
}

func (c *Context) ActorID() types.ID {
	if c == nil {
		return 0
	}
	return c.Identity.ID
}

func (c *Context) TraceContext() context.Context {
	if c == nil || c.Context == nil {
		return context.Background()
	}
	return c.Context
}

func (c *Context) Clone() Context {
	perms := make([]string, len(c.Perms))
	copy(perms, c.Perms)
	return Context{Token: c.Token, Identity: c.Identity, Perms: perms, Context: c.Context}
}
