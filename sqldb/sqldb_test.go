package sqldb

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wansing/datacat/catalogtest"
	"github.com/wansing/datacat/core"
)

func openTestDB(t *testing.T) *sqlx.DB {
	var dsn = filepath.Join(t.TempDir(), "datacat.sqlite3") + "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	db, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCatalog(t *testing.T) {
	catalogtest.Run(t, func(t *testing.T) *core.CatalogDB {
		return Catalog(openTestDB(t))
	})
}

func TestMigrateTwice(t *testing.T) {
	var db = openTestDB(t)
	require.NoError(t, Migrate(db))

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM grp"))
	assert.Equal(t, 0, count)
}

func TestDuplicateName(t *testing.T) {

	var db = openTestDB(t)
	var groupDB = NewGroupDB(db)

	var g = &core.Group{ID: "a", Name: "same", Type: core.TypeGroup, State: core.Active}
	require.NoError(t, groupDB.InsertGroup(g, nil, nil, &core.Revision{}))

	var other = &core.Group{ID: "b", Name: "same", Type: core.TypeGroup, State: core.Active}
	err := groupDB.InsertGroup(other, nil, nil, &core.Revision{})
	assert.True(t, errors.Is(err, core.ErrDuplicate))

	// the failed transaction has been rolled back
	var revisions int
	require.NoError(t, db.Get(&revisions, "SELECT COUNT(*) FROM revision"))
	assert.Equal(t, 1, revisions)

	_, err = groupDB.GetGroup("b")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestUpdateUnknownGroup(t *testing.T) {
	var groupDB = NewGroupDB(openTestDB(t))
	err := groupDB.UpdateGroup(&core.Group{ID: "nope", Name: "nope"}, nil, &core.Revision{})
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestMembershipSeq(t *testing.T) {

	var db = openTestDB(t)
	var f = catalogtest.Setup(t, Catalog(db))

	_, err := f.Catalog.EditGroup(f.RussianFan, "david", nil, []core.MembershipOp{core.RemovePackage("annakarenina")})
	require.NoError(t, err)
	_, err = f.Catalog.EditGroup(f.RussianFan, "david", nil, []core.MembershipOp{core.AddPackage("annakarenina")})
	require.NoError(t, err)

	var seqs []int
	require.NoError(t, db.Select(&seqs, "SELECT seq FROM membership WHERE grp = ? ORDER BY seq", f.David.ID))
	assert.Equal(t, []int{1, 2}, seqs)
}

func TestSearchEscapesLike(t *testing.T) {

	var f = catalogtest.Setup(t, Catalog(openTestDB(t)))

	packages, err := f.Catalog.SearchPackages("%", 10)
	require.NoError(t, err)
	assert.Empty(t, packages)

	packages, err = f.Catalog.SearchPackages("_nna", 10)
	require.NoError(t, err)
	assert.Empty(t, packages)
}

func TestSessionStore(t *testing.T) {

	var store = NewSessionStore(openTestDB(t))

	require.NoError(t, store.Commit("token", []byte("data"), time.Now().Add(time.Hour)))

	data, found, err := store.Find("token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("data"), data)

	require.NoError(t, store.Delete("token"))
	_, found, err = store.Find("token")
	require.NoError(t, err)
	assert.False(t, found)
}
