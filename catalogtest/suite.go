package catalogtest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wansing/datacat/core"
)

// Run runs the conformance suite. Open must return a new, empty CatalogDB on each call.
func Run(t *testing.T, open func(t *testing.T) *core.CatalogDB) {

	var tests = []struct {
		name string
		test func(t *testing.T, f *Fixture)
	}{
		{"ActivePackages", testActivePackages},
		{"DuplicateAddsCollapse", testDuplicateAddsCollapse},
		{"AddRemoveLastWins", testAddRemoveLastWins},
		{"ReAddKeepsPosition", testReAddKeepsPosition},
		{"UnknownPackage", testUnknownPackage},
		{"OneRevisionPerEdit", testOneRevisionPerEdit},
		{"DuplicateName", testDuplicateName},
		{"RenameCollision", testRenameCollision},
		{"Delete", testDelete},
		{"DeleteByEditState", testDeleteByEditState},
		{"Rename", testRename},
		{"History", testHistory},
		{"GroupAt", testGroupAt},
		{"Hooks", testHooks},
		{"BeforeView", testBeforeView},
		{"IntegrityError", testIntegrityError},
		{"NotFound", testNotFound},
		{"Roles", testRoles},
		{"ListGroups", testListGroups},
		{"SearchPackages", testSearchPackages},
		{"Login", testLogin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.test(t, Setup(t, open(t)))
		})
	}
}

func requireFieldError(t *testing.T, err error, field string) string {
	t.Helper()
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	msg, ok := verr.Fields()[field]
	require.True(t, ok, "expected error on field %s, got %v", field, verr.Fields())
	return msg
}

func activeNames(t *testing.T, c *core.CatalogDB, ref string) []string {
	t.Helper()
	packages, err := c.ActivePackages(ref)
	require.NoError(t, err)
	return packageNames(packages)
}

func historyLen(t *testing.T, c *core.CatalogDB, ref string) int {
	t.Helper()
	history, err := c.History(ref)
	require.NoError(t, err)
	return len(history)
}

func testActivePackages(t *testing.T, f *Fixture) {
	assert.Equal(t, []string{"annakarenina", "warandpeace"}, activeNames(t, f.Catalog, "david"))
	assert.Equal(t, []string{"annakarenina"}, activeNames(t, f.Catalog, f.Roger.ID))
}

func testDuplicateAddsCollapse(t *testing.T, f *Fixture) {

	_, err := f.Catalog.EditGroup(f.Sysadmin, "roger", nil, []core.MembershipOp{
		core.AddPackage("warandpeace"),
		core.AddPackage(f.WarAndPeace.ID),
		core.AddPackage(" WarAndPeace "),
		core.AddPackage("annakarenina"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"annakarenina", "warandpeace"}, activeNames(t, f.Catalog, "roger"))

	changes, err := f.Catalog.MembershipHistory("roger")
	require.NoError(t, err)
	require.Len(t, changes, 2) // annakarenina on creation, warandpeace once
	assert.Equal(t, f.WarAndPeace.ID, changes[0].PackageID)
	assert.Equal(t, core.Active, changes[0].State)
}

func testAddRemoveLastWins(t *testing.T, f *Fixture) {

	_, err := f.Catalog.EditGroup(f.Sysadmin, "roger", nil, []core.MembershipOp{
		core.AddPackage("warandpeace"),
		core.RemovePackage("warandpeace"),
		core.RemovePackage("annakarenina"),
		core.AddPackage("annakarenina"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"annakarenina"}, activeNames(t, f.Catalog, "roger"))

	changes, err := f.Catalog.MembershipHistory("roger")
	require.NoError(t, err)
	assert.Len(t, changes, 1) // nothing changed
}

func testReAddKeepsPosition(t *testing.T, f *Fixture) {

	_, err := f.Catalog.EditGroup(f.RussianFan, "david", nil, []core.MembershipOp{core.RemovePackage("annakarenina")})
	require.NoError(t, err)
	assert.Equal(t, []string{"warandpeace"}, activeNames(t, f.Catalog, "david"))

	_, err = f.Catalog.EditGroup(f.RussianFan, "david", nil, []core.MembershipOp{core.AddPackage("annakarenina")})
	require.NoError(t, err)
	assert.Equal(t, []string{"annakarenina", "warandpeace"}, activeNames(t, f.Catalog, "david"))

	changes, err := f.Catalog.MembershipHistory("david")
	require.NoError(t, err)
	require.Len(t, changes, 4)
	assert.Equal(t, core.Active, changes[0].State)
	assert.Equal(t, core.Deleted, changes[1].State)
	assert.Greater(t, changes[0].RevisionID, changes[1].RevisionID)
}

func testUnknownPackage(t *testing.T, f *Fixture) {

	var before = historyLen(t, f.Catalog, "david")

	_, err := f.Catalog.EditGroup(f.RussianFan, "david", core.Attrs{"title": "Changed"}, []core.MembershipOp{core.AddPackage("nosuchpackage")})
	assert.Contains(t, requireFieldError(t, err, "packages"), "nosuchpackage")

	g, err := f.Catalog.GetGroupByRef("david")
	require.NoError(t, err)
	assert.Equal(t, "Dave's books", g.Title)
	assert.Equal(t, before, historyLen(t, f.Catalog, "david"))
}

func testOneRevisionPerEdit(t *testing.T, f *Fixture) {

	var before = historyLen(t, f.Catalog, "david")

	g, err := f.Catalog.EditGroup(f.RussianFan, "david", core.Attrs{
		"title":       "Dave's great books",
		"description": "These are books that David likes.", // unchanged
	}, []core.MembershipOp{core.RemovePackage("warandpeace")})
	require.NoError(t, err)
	assert.Equal(t, "Dave's great books", g.Title)

	history, err := f.Catalog.History("david")
	require.NoError(t, err)
	require.Len(t, history, before+1)
	assert.Equal(t, g.RevisionID, history[0].ID)
	assert.Equal(t, []string{"title"}, history[0].Changed)
	assert.Equal(t, "russianfan", history[0].Author)

	diff, err := f.Catalog.Diff("david", history[1].ID, history[0].ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]core.Change{
		"title": {Old: "Dave's books", New: "Dave's great books"},
	}, diff)

	// the membership change is in the same revision
	changes, err := f.Catalog.MembershipHistory("david")
	require.NoError(t, err)
	assert.Equal(t, g.RevisionID, changes[0].RevisionID)
	assert.Equal(t, core.Deleted, changes[0].State)
}

func testDuplicateName(t *testing.T, f *Fixture) {

	first, err := f.Catalog.CreateGroup(f.RussianFan, core.Attrs{"name": "testgrp1", "title": "First"}, nil)
	require.NoError(t, err)
	assert.Equal(t, core.Active, first.State)

	_, err = f.Catalog.CreateGroup(f.RussianFan, core.Attrs{"name": "testgrp1", "title": "Second"}, nil)
	assert.Contains(t, requireFieldError(t, err, "name"), "Group name already exists")

	g, err := f.Catalog.GetGroupByRef("testgrp1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, g.ID)
	assert.Equal(t, "First", g.Title)
	assert.Equal(t, 1, historyLen(t, f.Catalog, "testgrp1"))
}

func testRenameCollision(t *testing.T, f *Fixture) {

	_, err := f.Catalog.EditGroup(f.Sysadmin, "roger", core.Attrs{"name": "david"}, nil)
	assert.Contains(t, requireFieldError(t, err, "name"), "Group name already exists")

	g, err := f.Catalog.GetGroupByRef(f.Roger.ID)
	require.NoError(t, err)
	assert.Equal(t, "roger", g.Name)
}

func testDelete(t *testing.T, f *Fixture) {

	var obs = &CountingObserver{}
	f.Catalog.Observers.Register(obs)

	require.NoError(t, f.Catalog.DeleteGroup(f.RussianFan, "david"))

	g, err := f.Catalog.GetGroupByRef("david")
	require.NoError(t, err)
	assert.Equal(t, core.Deleted, g.State)
	assert.Equal(t, 1, obs.Count("delete"))

	var before = historyLen(t, f.Catalog, "david")
	require.NoError(t, f.Catalog.DeleteGroup(f.RussianFan, "david")) // no-op
	assert.Equal(t, before, historyLen(t, f.Catalog, "david"))
	assert.Equal(t, 1, obs.Count("delete"))

	// anonymous users can neither edit nor read it
	_, err = f.Catalog.EditGroup(nil, "david", core.Attrs{"title": "Hacked"}, nil)
	assert.True(t, errors.Is(err, core.ErrNotAuthorized))
	_, err = f.Catalog.ReadGroup(nil, "david")
	assert.True(t, errors.Is(err, core.ErrNotAuthorized))

	// the admin still can
	_, err = f.Catalog.ReadGroup(f.RussianFan, "david")
	assert.NoError(t, err)

	// packages and memberships are untouched
	p, err := f.Catalog.GetPackageByRef("annakarenina")
	require.NoError(t, err)
	assert.Equal(t, core.Active, p.State)
	assert.Equal(t, []string{"annakarenina", "warandpeace"}, activeNames(t, f.Catalog, "david"))
}

func testDeleteByEditState(t *testing.T, f *Fixture) {

	var editor = User(t, f.Catalog, "editor")
	require.NoError(t, f.Catalog.AddRole(f.RussianFan, &core.RoleGrant{UserID: editor.ID, ObjectType: core.GroupObject, ObjectID: "david", Role: core.Editor}))

	_, err := f.Catalog.EditGroup(editor, "david", core.Attrs{"state": "deleted"}, nil)
	assert.True(t, errors.Is(err, core.ErrNotAuthorized))

	var obs = &CountingObserver{}
	f.Catalog.Observers.Register(obs)

	g, err := f.Catalog.EditGroup(f.RussianFan, "david", core.Attrs{"state": "deleted"}, nil)
	require.NoError(t, err)
	assert.Equal(t, core.Deleted, g.State)
	assert.Equal(t, 1, obs.Count("edit"))
	assert.Equal(t, 0, obs.Count("delete"))
}

func testRename(t *testing.T, f *Fixture) {

	before, err := f.Catalog.ActivePackages("david")
	require.NoError(t, err)

	g, err := f.Catalog.EditGroup(f.RussianFan, "david", core.Attrs{"name": "newname"}, nil)
	require.NoError(t, err)
	assert.Equal(t, f.David.ID, g.ID)

	after, err := f.Catalog.ActivePackages("newname")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = f.Catalog.GetGroupByRef("david")
	var nf *core.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func testHistory(t *testing.T, f *Fixture) {

	_, err := f.Catalog.CreateGroup(f.RussianFan, core.Attrs{"name": "puccini", "description": "Written by Puccini"}, nil)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		var description = fmt.Sprintf("Written by Puccini, edit %d", i)
		if i == 5 {
			description = "Written off"
		}
		_, err := f.Catalog.EditGroup(f.RussianFan, "puccini", core.Attrs{
			"description": description,
			"log_message": fmt.Sprintf("Edit %d", i),
		}, nil)
		require.NoError(t, err)
	}

	history, err := f.Catalog.History("puccini")
	require.NoError(t, err)
	require.Len(t, history, 6)

	var newest, oldest = history[0], history[len(history)-1]
	assert.Equal(t, "Edit 5", newest.Message)
	assert.Equal(t, "Create group puccini", oldest.Message)
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i-1].ID, history[i].ID)
	}

	diff, err := f.Catalog.Diff("puccini", oldest.ID, newest.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]core.Change{
		"description": {Old: "Written by Puccini", New: "Written off"},
	}, diff)

	// reversed arguments swap old and new
	diff, err = f.Catalog.Diff("puccini", newest.ID, oldest.ID)
	require.NoError(t, err)
	assert.Equal(t, "Written off", diff["description"].Old)
}

func testGroupAt(t *testing.T, f *Fixture) {

	var created = f.David.RevisionID

	_, err := f.Catalog.EditGroup(f.RussianFan, "david", core.Attrs{"title": "Changed"}, nil)
	require.NoError(t, err)

	g, err := f.Catalog.GroupAt("david", created)
	require.NoError(t, err)
	assert.Equal(t, "Dave's books", g.Title)
	assert.Equal(t, f.David.TsCreated, g.TsCreated)

	// a later revision of another entity yields the latest snapshot before it
	g, err = f.Catalog.GroupAt("david", f.Roger.RevisionID)
	require.NoError(t, err)
	assert.Equal(t, "Dave's books", g.Title)

	_, err = f.Catalog.GroupAt("david", created-1)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func testHooks(t *testing.T, f *Fixture) {

	var obs = &CountingObserver{}
	f.Catalog.Observers.Register(obs)

	_, err := f.Catalog.CreateGroup(f.RussianFan, core.Attrs{"name": "hooked"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, obs.Count("create"))
	assert.Equal(t, 1, obs.Count("authz_add_role"))

	_, err = f.Catalog.EditGroup(f.RussianFan, "hooked", core.Attrs{"title": "Hooked"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, obs.Count("edit"))

	_, err = f.Catalog.EditGroup(f.RussianFan, "hooked", core.Attrs{"name": "x"}, nil) // too short
	requireFieldError(t, err, "name")
	assert.Equal(t, 1, obs.Count("edit"))

	_, err = f.Catalog.ReadGroup(nil, "hooked")
	require.NoError(t, err)
	assert.Equal(t, 1, obs.Count("read"))
	assert.Equal(t, 1, obs.Count("before_view"))

	assert.True(t, f.Catalog.Observers.Unregister(obs))
	_, err = f.Catalog.ReadGroup(nil, "hooked")
	require.NoError(t, err)
	assert.Equal(t, 1, obs.Count("read"))
}

type viewDecorator struct {
	core.NopObserver
	key string
}

func (d *viewDecorator) BeforeView(data map[string]interface{}) map[string]interface{} {
	data[d.key] = len(data)
	return data
}

func testBeforeView(t *testing.T, f *Fixture) {

	f.Catalog.Observers.Register(&viewDecorator{key: "first"})
	f.Catalog.Observers.Register(&viewDecorator{key: "second"})

	data, err := f.Catalog.ReadGroup(nil, "david")
	require.NoError(t, err)

	assert.Equal(t, 2, data["package_count"])
	assert.Equal(t, []string{"russianfan"}, data["admins"])
	assert.Equal(t, false, data["can_edit"])
	assert.Equal(t, data["first"].(int)+1, data["second"]) // registration order
}

func testIntegrityError(t *testing.T, f *Fixture) {

	var before = historyLen(t, f.Catalog, "david")

	_, err := f.Catalog.EditGroup(f.RussianFan, "david", core.Attrs{"title": "Changed", "foo": "bar"}, nil)
	var ierr *core.IntegrityError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, []string{"foo"}, ierr.Params)

	_, err = f.Catalog.CreateGroup(f.RussianFan, core.Attrs{"name": "injected", "id": "abc"}, nil)
	assert.True(t, errors.As(err, &ierr))

	g, err := f.Catalog.GetGroupByRef("david")
	require.NoError(t, err)
	assert.Equal(t, "Dave's books", g.Title)
	assert.Equal(t, before, historyLen(t, f.Catalog, "david"))
}

func testNotFound(t *testing.T, f *Fixture) {

	_, err := f.Catalog.EditGroup(f.Sysadmin, "nonexistent", core.Attrs{"title": "x"}, nil)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	_, err = f.Catalog.ReadGroup(f.Sysadmin, "00000000-0000-0000-0000-000000000000")
	var nf *core.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "group", nf.Kind)

	assert.True(t, errors.Is(f.Catalog.DeleteGroup(f.Sysadmin, "nonexistent"), core.ErrNotFound))
}

func testRoles(t *testing.T, f *Fixture) {

	var obs = &CountingObserver{}
	f.Catalog.Observers.Register(obs)

	var editor = User(t, f.Catalog, "editor")
	var grant = &core.RoleGrant{UserID: editor.ID, ObjectType: core.GroupObject, ObjectID: "david", Role: core.Editor}

	// only admins can grant roles
	assert.True(t, errors.Is(f.Catalog.AddRole(editor, grant), core.ErrNotAuthorized))

	_, err := f.Catalog.EditGroup(editor, "david", core.Attrs{"title": "By editor"}, nil)
	assert.True(t, errors.Is(err, core.ErrNotAuthorized))

	require.NoError(t, f.Catalog.AddRole(f.RussianFan, grant))
	assert.Equal(t, f.David.ID, grant.ObjectID)
	assert.Equal(t, 1, obs.Count("authz_add_role"))

	_, err = f.Catalog.EditGroup(editor, "david", core.Attrs{"title": "By editor"}, nil)
	require.NoError(t, err)
	assert.True(t, errors.Is(f.Catalog.DeleteGroup(editor, "david"), core.ErrNotAuthorized))

	require.NoError(t, f.Catalog.RemoveRole(f.RussianFan, grant))
	assert.Equal(t, 1, obs.Count("authz_remove_role"))

	_, err = f.Catalog.EditGroup(editor, "david", core.Attrs{"title": "Again"}, nil)
	assert.True(t, errors.Is(err, core.ErrNotAuthorized))

	// sysadmins may do everything
	_, err = f.Catalog.EditGroup(f.Sysadmin, "david", core.Attrs{"title": "By sysadmin"}, nil)
	assert.NoError(t, err)
}

func testListGroups(t *testing.T, f *Fixture) {

	_, err := f.Catalog.CreateGroup(f.Sysadmin, core.Attrs{"name": "an-org", "type": "organization"}, nil)
	require.NoError(t, err)

	groups, err := f.Catalog.ListGroups(core.TypeGroup, -1, 0)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "david", groups[0].Name)
	assert.Equal(t, "roger", groups[1].Name)

	require.NoError(t, f.Catalog.DeleteGroup(f.Sysadmin, "david"))
	groups, err = f.Catalog.ListGroups(core.TypeGroup, 10, 0)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "roger", groups[0].Name)

	orgs, err := f.Catalog.ListGroups(core.TypeOrganization, 10, 0)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "an-org", orgs[0].Name)
}

func testSearchPackages(t *testing.T, f *Fixture) {

	packages, err := f.Catalog.SearchPackages("war", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"warandpeace"}, packageNames(packages))

	packages, err = f.Catalog.SearchPackages("a", 10) // annakarenina by name, warandpeace by title
	require.NoError(t, err)
	assert.Equal(t, []string{"annakarenina", "warandpeace"}, packageNames(packages))

	packages, err = f.Catalog.SearchPackages("a", 1)
	require.NoError(t, err)
	assert.Len(t, packages, 1)

	packages, err = f.Catalog.SearchPackages("zzz", 10)
	require.NoError(t, err)
	assert.Empty(t, packages)
}

func testLogin(t *testing.T, f *Fixture) {

	u, err := f.Catalog.LoginUser("russianfan", Password)
	require.NoError(t, err)
	assert.Equal(t, f.RussianFan.ID, u.ID)
	assert.False(t, u.Sysadmin)

	_, err = f.Catalog.LoginUser("russianfan", "wrong")
	assert.True(t, errors.Is(err, core.ErrAuth))

	_, err = f.Catalog.LoginUser("nobody", Password)
	assert.True(t, errors.Is(err, core.ErrAuth))

	u, err = f.Catalog.GetUser(f.Sysadmin.ID)
	require.NoError(t, err)
	assert.True(t, u.Sysadmin)

	_, err = f.Catalog.InsertUser("russianfan")
	assert.True(t, errors.Is(err, core.ErrDuplicate))
}
