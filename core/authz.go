package core

type Action string

const (
	GroupCreate   Action = "group_create"
	GroupRead     Action = "group_read"
	GroupUpdate   Action = "group_update"
	GroupDelete   Action = "group_delete"
	PackageCreate Action = "package_create"
	RoleChange    Action = "role_change"
)

// Authorizer decides whether an actor may perform an action. The actor is nil for anonymous users.
// The object is nil for create actions. CheckAccess returns nil or an error which wraps ErrNotAuthorized.
type Authorizer interface {
	CheckAccess(action Action, actor *User, object Object) error
}

// RoleAuthorizer is the default Authorizer. It decides by role grants:
//
//   group_create, package_create: logged in
//   group_read:                   group is active, or editor of the group
//   group_update:                 editor of the group, admin if the group has been deleted
//   group_delete, role_change:    admin of the object
//
// Sysadmins may do everything.
type RoleAuthorizer struct {
	RoleDB RoleDB
}

func (a *RoleAuthorizer) CheckAccess(action Action, actor *User, object Object) error {

	switch action {
	case GroupCreate, PackageCreate:
		if actor == nil {
			return ErrNotAuthorized
		}
		return nil
	case GroupRead:
		if g, ok := object.(*Group); ok && g.IsActive() {
			return nil
		}
		return a.requireRole(Editor, actor, object)
	case GroupUpdate:
		if g, ok := object.(*Group); ok && !g.IsActive() {
			return a.requireRole(Admin, actor, object)
		}
		return a.requireRole(Editor, actor, object)
	case GroupDelete, RoleChange:
		return a.requireRole(Admin, actor, object)
	}

	return ErrNotAuthorized
}

func (a *RoleAuthorizer) requireRole(required Role, actor *User, object Object) error {

	if actor == nil {
		return ErrNotAuthorized
	}

	if actor.Sysadmin {
		return nil
	}

	if object == nil {
		return ErrNotAuthorized
	}

	grants, err := a.RoleDB.GetRoles(object.ObjectType(), object.ObjectID())
	if err != nil {
		return err
	}

	for _, grant := range grants {
		if grant.UserID != actor.ID {
			continue
		}
		if grant.Role >= required {
			return nil
		}
	}

	return ErrNotAuthorized
}
