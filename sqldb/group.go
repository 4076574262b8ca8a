package sqldb

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/wansing/datacat/core"
)

const groupColumns = "id, name, title, description, image_url, type, state, ts_created, revision_id"

// groupRevisionRow is a joined row of revision and grp_revision.
type groupRevisionRow struct {
	RevisionID  int64          `db:"revision_id"`
	Ts          int64          `db:"ts"`
	Author      string         `db:"author"`
	Message     string         `db:"message"`
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	ImageURL    string         `db:"image_url"`
	Type        core.GroupType `db:"type"`
	State       core.State     `db:"state"`
}

type GroupDB struct {
	*sqlx.DB
	revisions *revisions

	activePackages      *sqlx.Stmt
	get                 *sqlx.Stmt
	getAll              *sqlx.Stmt
	getByName           *sqlx.Stmt
	groupRevisions      *sqlx.Stmt
	insert              *sqlx.Stmt
	insertGrant         *sqlx.Stmt
	insertRevision      *sqlx.Stmt
	membershipRevisions *sqlx.Stmt
	membershipState     *sqlx.Stmt
	update              *sqlx.Stmt
	upsertMembership    *sqlx.Stmt
	insertMembershipRev *sqlx.Stmt
}

func NewGroupDB(db *sqlx.DB) *GroupDB {
	var groupDB = &GroupDB{}
	groupDB.DB = db
	groupDB.revisions = newRevisions(db)
	groupDB.activePackages = mustPrepare(db, "SELECT p.id, p.name, p.title, p.state, p.ts_created, p.revision_id FROM membership m, package p WHERE m.grp = ? AND m.package = p.id AND m.state = 'active' AND p.state = 'active' ORDER BY m.seq")
	groupDB.get = mustPrepare(db, "SELECT "+groupColumns+" FROM grp WHERE id = ? LIMIT 1")
	groupDB.getAll = mustPrepare(db, "SELECT "+groupColumns+" FROM grp WHERE type = ? AND state = 'active' ORDER BY name LIMIT ? OFFSET ?")
	groupDB.getByName = mustPrepare(db, "SELECT "+groupColumns+" FROM grp WHERE name = ? LIMIT 1")
	groupDB.groupRevisions = mustPrepare(db, "SELECT r.id AS revision_id, r.ts, r.author, r.message, g.id, g.name, g.title, g.description, g.image_url, g.type, g.state FROM grp_revision g, revision r WHERE g.id = ? AND g.revision_id = r.id ORDER BY r.id DESC")
	groupDB.insert = mustPrepare(db, "INSERT INTO grp ("+groupColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	groupDB.insertGrant = mustPrepare(db, "INSERT INTO role_grant (usr, object_type, object_id, role) VALUES (?, ?, ?, ?) ON CONFLICT (usr, object_type, object_id) DO UPDATE SET role = excluded.role")
	groupDB.insertRevision = mustPrepare(db, "INSERT INTO grp_revision (id, revision_id, name, title, description, image_url, type, state) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	groupDB.membershipRevisions = mustPrepare(db, "SELECT grp, package, revision_id, state FROM membership_revision WHERE grp = ? ORDER BY revision_id DESC, package")
	groupDB.membershipState = mustPrepare(db, "SELECT state FROM membership WHERE grp = ? AND package = ?")
	groupDB.update = mustPrepare(db, "UPDATE grp SET name = ?, title = ?, description = ?, image_url = ?, type = ?, state = ?, revision_id = ? WHERE id = ?")
	groupDB.upsertMembership = mustPrepare(db, "INSERT INTO membership (grp, package, seq, state, revision_id) VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM membership WHERE grp = ?), ?, ?) ON CONFLICT (grp, package) DO UPDATE SET state = excluded.state, revision_id = excluded.revision_id")
	groupDB.insertMembershipRev = mustPrepare(db, "INSERT INTO membership_revision (grp, package, revision_id, state) VALUES (?, ?, ?, ?)")
	return groupDB
}

func (db *GroupDB) ActivePackages(groupID string) ([]*core.Package, error) {
	var packages = []*core.Package{}
	return packages, db.activePackages.Select(&packages, groupID)
}

func (db *GroupDB) GetAllGroups(t core.GroupType, limit, offset int) ([]*core.Group, error) {
	var groups = []*core.Group{}
	return groups, db.getAll.Select(&groups, t, limit, offset)
}

func (db *GroupDB) GetGroup(id string) (*core.Group, error) {
	var g = &core.Group{}
	if err := db.get.Get(g, id); err != nil {
		return nil, notFound(err, "group", id)
	}
	return g, nil
}

func (db *GroupDB) GetGroupByName(name string) (*core.Group, error) {
	var g = &core.Group{}
	if err := db.getByName.Get(g, name); err != nil {
		return nil, notFound(err, "group", name)
	}
	return g, nil
}

func (db *GroupDB) GroupRevisions(groupID string) ([]*core.GroupRevision, error) {

	var rows = []groupRevisionRow{}
	if err := db.groupRevisions.Select(&rows, groupID); err != nil {
		return nil, err
	}

	var result = make([]*core.GroupRevision, 0, len(rows))
	for _, row := range rows {
		result = append(result, &core.GroupRevision{
			Revision: &core.Revision{
				ID:        row.RevisionID,
				Timestamp: row.Ts,
				Author:    row.Author,
				Message:   row.Message,
			},
			Group: &core.Group{
				ID:          row.ID,
				Name:        row.Name,
				Title:       row.Title,
				Description: row.Description,
				ImageURL:    row.ImageURL,
				Type:        row.Type,
				State:       row.State,
				RevisionID:  row.RevisionID,
			},
		})
	}
	return result, nil
}

func (db *GroupDB) MembershipRevisions(groupID string) ([]*core.MembershipRevision, error) {
	var revs = []*core.MembershipRevision{}
	return revs, db.membershipRevisions.Select(&revs, groupID)
}

func (db *GroupDB) InsertGroup(g *core.Group, changes []core.MembershipChange, owner *core.RoleGrant, rev *core.Revision) error {

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback() // no-op after commit

	if err := db.revisions.add(tx, rev); err != nil {
		return err
	}

	_, err = tx.Stmtx(db.insert).Exec(g.ID, g.Name, g.Title, g.Description, g.ImageURL, g.Type, g.State, g.TsCreated, rev.ID)
	if err != nil {
		return duplicate(err)
	}

	if err := db.snapshot(tx, g, rev); err != nil {
		return err
	}

	if err := db.applyMemberships(tx, g.ID, changes, rev); err != nil {
		return err
	}

	if owner != nil {
		if _, err := tx.Stmtx(db.insertGrant).Exec(owner.UserID, owner.ObjectType, owner.ObjectID, owner.Role); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	g.RevisionID = rev.ID
	return nil
}

func (db *GroupDB) UpdateGroup(g *core.Group, changes []core.MembershipChange, rev *core.Revision) error {

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := db.revisions.add(tx, rev); err != nil {
		return err
	}

	res, err := tx.Stmtx(db.update).Exec(g.Name, g.Title, g.Description, g.ImageURL, g.Type, g.State, rev.ID, g.ID)
	if err != nil {
		return duplicate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(sql.ErrNoRows, "group", g.ID)
	}

	if err := db.snapshot(tx, g, rev); err != nil {
		return err
	}

	if err := db.applyMemberships(tx, g.ID, changes, rev); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	g.RevisionID = rev.ID
	return nil
}

func (db *GroupDB) snapshot(tx *sqlx.Tx, g *core.Group, rev *core.Revision) error {
	_, err := tx.Stmtx(db.insertRevision).Exec(g.ID, rev.ID, g.Name, g.Title, g.Description, g.ImageURL, g.Type, g.State)
	return err
}

// applyMemberships writes only changes which actually change the membership state.
func (db *GroupDB) applyMemberships(tx *sqlx.Tx, groupID string, changes []core.MembershipChange, rev *core.Revision) error {

	for _, change := range changes {

		var current core.State
		err := tx.Stmtx(db.membershipState).Get(&current, groupID, change.PackageID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if change.State != core.Active {
				continue // removing a package which has never been added
			}
		case err != nil:
			return err
		case current == change.State:
			continue
		}

		if _, err := tx.Stmtx(db.upsertMembership).Exec(groupID, change.PackageID, groupID, change.State, rev.ID); err != nil {
			return err
		}

		if _, err := tx.Stmtx(db.insertMembershipRev).Exec(groupID, change.PackageID, rev.ID, change.State); err != nil {
			return err
		}
	}

	return nil
}
