package sqldb

import (
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/wansing/datacat/core"
)

const packageColumns = "id, name, title, state, ts_created, revision_id"

type PackageDB struct {
	*sqlx.DB
	revisions *revisions

	get            *sqlx.Stmt
	getByName      *sqlx.Stmt
	insert         *sqlx.Stmt
	insertGrant    *sqlx.Stmt
	insertRevision *sqlx.Stmt
	search         *sqlx.Stmt
}

func NewPackageDB(db *sqlx.DB) *PackageDB {
	var packageDB = &PackageDB{}
	packageDB.DB = db
	packageDB.revisions = newRevisions(db)
	packageDB.get = mustPrepare(db, "SELECT "+packageColumns+" FROM package WHERE id = ? LIMIT 1")
	packageDB.getByName = mustPrepare(db, "SELECT "+packageColumns+" FROM package WHERE name = ? LIMIT 1")
	packageDB.insert = mustPrepare(db, "INSERT INTO package ("+packageColumns+") VALUES (?, ?, ?, ?, ?, ?)")
	packageDB.insertGrant = mustPrepare(db, "INSERT INTO role_grant (usr, object_type, object_id, role) VALUES (?, ?, ?, ?) ON CONFLICT (usr, object_type, object_id) DO UPDATE SET role = excluded.role")
	packageDB.insertRevision = mustPrepare(db, "INSERT INTO package_revision (id, revision_id, name, title, state) VALUES (?, ?, ?, ?, ?)")
	packageDB.search = mustPrepare(db, `SELECT `+packageColumns+` FROM package WHERE state = 'active' AND (name LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\') ORDER BY name LIMIT ?`)
	return packageDB
}

func (db *PackageDB) GetPackage(id string) (*core.Package, error) {
	var p = &core.Package{}
	if err := db.get.Get(p, id); err != nil {
		return nil, notFound(err, "package", id)
	}
	return p, nil
}

func (db *PackageDB) GetPackageByName(name string) (*core.Package, error) {
	var p = &core.Package{}
	if err := db.getByName.Get(p, name); err != nil {
		return nil, notFound(err, "package", name)
	}
	return p, nil
}

func (db *PackageDB) InsertPackage(p *core.Package, owner *core.RoleGrant, rev *core.Revision) error {

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := db.revisions.add(tx, rev); err != nil {
		return err
	}

	if _, err := tx.Stmtx(db.insert).Exec(p.ID, p.Name, p.Title, p.State, p.TsCreated, rev.ID); err != nil {
		return duplicate(err)
	}

	if _, err := tx.Stmtx(db.insertRevision).Exec(p.ID, rev.ID, p.Name, p.Title, p.State); err != nil {
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

	p.RevisionID = rev.ID
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (db *PackageDB) SearchPackages(prefix string, limit int) ([]*core.Package, error) {
	var pattern = likeEscaper.Replace(strings.TrimSpace(prefix)) + "%"
	var packages = []*core.Package{}
	return packages, db.search.Select(&packages, pattern, pattern, limit)
}
