// Package catalogtest provides a fixture and a conformance suite for implementations of the core stores.
package catalogtest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wansing/datacat/core"
)

const Password = "pass"

// Fixture is a small catalog:
//
//	russianfan is admin of the group david, testsysadmin is a sysadmin
//	david ("Dave's books") contains annakarenina and warandpeace
//	roger ("Roger's books") contains annakarenina
type Fixture struct {
	Catalog      *core.CatalogDB
	Sysadmin     *core.User
	RussianFan   *core.User
	AnnaKarenina *core.Package
	WarAndPeace  *core.Package
	David        *core.Group
	Roger        *core.Group
}

// Setup initializes catalog and fills it.
func Setup(t testing.TB, catalog *core.CatalogDB) *Fixture {

	t.Helper()

	require.NoError(t, catalog.Init())

	var f = &Fixture{
		Catalog: catalog,
	}

	f.Sysadmin = User(t, catalog, "testsysadmin")
	require.NoError(t, catalog.SetSysadmin(f.Sysadmin, true))

	f.RussianFan = User(t, catalog, "russianfan")

	var err error

	f.AnnaKarenina, err = catalog.CreatePackage(f.Sysadmin, core.Attrs{"name": "annakarenina", "title": "A Novel By Tolstoy"})
	require.NoError(t, err)

	f.WarAndPeace, err = catalog.CreatePackage(f.Sysadmin, core.Attrs{"name": "warandpeace", "title": "A Wonderful Story"})
	require.NoError(t, err)

	f.David, err = catalog.CreateGroup(f.RussianFan, core.Attrs{
		"name":        "david",
		"title":       "Dave's books",
		"description": "These are books that David likes.",
	}, []core.MembershipOp{
		core.AddPackage("annakarenina"),
		core.AddPackage("warandpeace"),
	})
	require.NoError(t, err)

	f.Roger, err = catalog.CreateGroup(f.Sysadmin, core.Attrs{
		"name":        "roger",
		"title":       "Roger's books",
		"description": "Roger likes these books.",
	}, []core.MembershipOp{
		core.AddPackage("annakarenina"),
	})
	require.NoError(t, err)

	return f
}

// User creates a user with the password Password.
func User(t testing.TB, catalog *core.CatalogDB, name string) *core.User {
	t.Helper()
	u, err := catalog.InsertUser(name)
	require.NoError(t, err)
	require.NoError(t, catalog.SetPassword(u, Password))
	return u
}

// CountingObserver counts the calls of each hook.
type CountingObserver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (o *CountingObserver) inc(hook string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = make(map[string]int)
	}
	o.calls[hook]++
}

// Count returns the number of calls of the hook, like "create" or "before_view".
func (o *CountingObserver) Count(hook string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[hook]
}

func (o *CountingObserver) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = nil
}

func (o *CountingObserver) Read(*core.Group)                { o.inc("read") }
func (o *CountingObserver) Create(*core.Group)              { o.inc("create") }
func (o *CountingObserver) Edit(*core.Group)                { o.inc("edit") }
func (o *CountingObserver) Delete(*core.Group)              { o.inc("delete") }
func (o *CountingObserver) AuthzAddRole(*core.RoleGrant)    { o.inc("authz_add_role") }
func (o *CountingObserver) AuthzRemoveRole(*core.RoleGrant) { o.inc("authz_remove_role") }

func (o *CountingObserver) BeforeView(data map[string]interface{}) map[string]interface{} {
	o.inc("before_view")
	return data
}

// packageNames returns the names of the packages.
func packageNames(packages []*core.Package) []string {
	var names = make([]string, len(packages))
	for i, p := range packages {
		names[i] = p.Name
	}
	return names
}
