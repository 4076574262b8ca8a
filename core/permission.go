package core

import (
	"fmt"
	"strings"
)

// Higher roles include lower roles.
type Role int

const (
	Reader Role = 100
	Editor Role = 200 // edit the object and its memberships
	Admin  Role = 500 // delete the object, change its roles
)

func (r Role) String() string {
	switch r {
	case Reader:
		return "reader"
	case Editor:
		return "editor"
	case Admin:
		return "admin"
	}
	return "unknown"
}

func (r Role) Valid() bool {
	switch r {
	case Reader, Editor, Admin:
		return true
	default:
		return false
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reader":
		return Reader, nil
	case "editor":
		return Editor, nil
	case "admin":
		return Admin, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

type ObjectType string

const (
	GroupObject   ObjectType = "group"
	PackageObject ObjectType = "package"
)

// Object is something role grants can refer to.
type Object interface {
	ObjectType() ObjectType
	ObjectID() string
}

// RoleGrant associates a user with an object and a role.
type RoleGrant struct {
	UserID     int        `db:"usr" json:"user_id"`
	ObjectType ObjectType `db:"object_type" json:"object_type"`
	ObjectID   string     `db:"object_id" json:"object_id"`
	Role       Role       `db:"role" json:"role"`
}

func (g *RoleGrant) String() string {
	return fmt.Sprintf("user %d is %s of %s %s", g.UserID, g.Role, g.ObjectType, g.ObjectID)
}

// RoleDB stores role grants. InsertRole replaces an existing grant of the same user on the same object.
type RoleDB interface {
	GetRoles(t ObjectType, objectID string) ([]*RoleGrant, error)
	InsertRole(g *RoleGrant) error
	RemoveRole(g *RoleGrant) error
}
