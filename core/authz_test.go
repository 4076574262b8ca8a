package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type roleMap map[string][]*RoleGrant // object id -> grants

func (m roleMap) GetRoles(t ObjectType, objectID string) ([]*RoleGrant, error) {
	return m[objectID], nil
}

func (m roleMap) InsertRole(g *RoleGrant) error {
	m[g.ObjectID] = append(m[g.ObjectID], g)
	return nil
}

func (m roleMap) RemoveRole(g *RoleGrant) error {
	return errors.New("not implemented")
}

func TestRoleAuthorizer(t *testing.T) {

	var (
		admin    = &User{ID: 1, Name: "admin"}
		editor   = &User{ID: 2, Name: "editor"}
		reader   = &User{ID: 3, Name: "reader"}
		sysadmin = &User{ID: 4, Name: "sysadmin", Sysadmin: true}
		active   = &Group{ID: "g1", State: Active}
		deleted  = &Group{ID: "g1", State: Deleted}
	)

	var authz = &RoleAuthorizer{RoleDB: roleMap{
		"g1": {
			{UserID: 1, ObjectType: GroupObject, ObjectID: "g1", Role: Admin},
			{UserID: 2, ObjectType: GroupObject, ObjectID: "g1", Role: Editor},
			{UserID: 3, ObjectType: GroupObject, ObjectID: "g1", Role: Reader},
		},
	}}

	var tests = []struct {
		action  Action
		actor   *User
		object  Object
		allowed bool
	}{
		{GroupCreate, nil, nil, false},
		{GroupCreate, reader, nil, true},
		{PackageCreate, nil, nil, false},
		{GroupRead, nil, active, true},
		{GroupRead, nil, deleted, false},
		{GroupRead, reader, deleted, false},
		{GroupRead, editor, deleted, true},
		{GroupUpdate, nil, active, false},
		{GroupUpdate, reader, active, false},
		{GroupUpdate, editor, active, true},
		{GroupUpdate, editor, deleted, false},
		{GroupUpdate, admin, deleted, true},
		{GroupDelete, editor, active, false},
		{GroupDelete, admin, active, true},
		{RoleChange, editor, active, false},
		{RoleChange, admin, active, true},
		{GroupDelete, sysadmin, active, true},
		{RoleChange, sysadmin, deleted, true},
		{Action("bogus"), sysadmin, active, false},
	}

	for _, tt := range tests {
		err := authz.CheckAccess(tt.action, tt.actor, tt.object)
		if tt.allowed {
			assert.NoError(t, err, "%s %v %v", tt.action, tt.actor, tt.object)
		} else {
			assert.True(t, errors.Is(err, ErrNotAuthorized), "%s %v %v", tt.action, tt.actor, tt.object)
		}
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" Editor ")
	assert.NoError(t, err)
	assert.Equal(t, Editor, role)
	assert.Equal(t, "editor", role.String())

	_, err = ParseRole("owner")
	assert.Error(t, err)
}
