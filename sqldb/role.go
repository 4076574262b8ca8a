package sqldb

import (
	"github.com/jmoiron/sqlx"
	"github.com/wansing/datacat/core"
)

type RoleDB struct {
	*sqlx.DB
	get    *sqlx.Stmt
	insert *sqlx.Stmt
	remove *sqlx.Stmt
}

func NewRoleDB(db *sqlx.DB) *RoleDB {
	var roleDB = &RoleDB{}
	roleDB.DB = db
	roleDB.get = mustPrepare(db, "SELECT usr, object_type, object_id, role FROM role_grant WHERE object_type = ? AND object_id = ? ORDER BY usr")
	roleDB.insert = mustPrepare(db, "INSERT INTO role_grant (usr, object_type, object_id, role) VALUES (?, ?, ?, ?) ON CONFLICT (usr, object_type, object_id) DO UPDATE SET role = excluded.role")
	roleDB.remove = mustPrepare(db, "DELETE FROM role_grant WHERE usr = ? AND object_type = ? AND object_id = ?")
	return roleDB
}

func (db *RoleDB) GetRoles(t core.ObjectType, objectID string) ([]*core.RoleGrant, error) {
	var grants = []*core.RoleGrant{}
	return grants, db.get.Select(&grants, t, objectID)
}

func (db *RoleDB) InsertRole(g *core.RoleGrant) error {
	_, err := db.insert.Exec(g.UserID, g.ObjectType, g.ObjectID, g.Role)
	return err
}

func (db *RoleDB) RemoveRole(g *core.RoleGrant) error {
	_, err := db.remove.Exec(g.UserID, g.ObjectType, g.ObjectID)
	return err
}
