package memstore

import (
	"sort"

	"github.com/hashicorp/go-memdb"
	"github.com/wansing/datacat/core"
)

type roleGrant struct {
	Key    string // user, object type and object id
	Object string // object type and object id
	core.RoleGrant
}

func newRoleGrant(g *core.RoleGrant) *roleGrant {
	return &roleGrant{
		Key:       key(g.UserID, g.ObjectType, g.ObjectID),
		Object:    key(g.ObjectType, g.ObjectID),
		RoleGrant: *g,
	}
}

// insertGrant inserts or replaces a role grant.
func insertGrant(txn *memdb.Txn, g *core.RoleGrant) error {
	return txn.Insert(roleGrantTable, newRoleGrant(g))
}

type RoleDB struct {
	*Store
}

func NewRoleDB(s *Store) *RoleDB {
	return &RoleDB{s}
}

func (db *RoleDB) GetRoles(t core.ObjectType, objectID string) ([]*core.RoleGrant, error) {

	objs, err := all(db.db.Txn(false), roleGrantTable, objectIndex, key(t, objectID))
	if err != nil {
		return nil, err
	}

	var grants = make([]*core.RoleGrant, 0, len(objs))
	for _, obj := range objs {
		var g = obj.(*roleGrant).RoleGrant
		grants = append(grants, &g)
	}
	sort.Slice(grants, func(i, j int) bool {
		return grants[i].UserID < grants[j].UserID
	})
	return grants, nil
}

func (db *RoleDB) InsertRole(g *core.RoleGrant) error {
	txn := db.db.Txn(true)
	defer txn.Abort()
	if err := insertGrant(txn, g); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// RemoveRole removes the grant. Removing a grant which does not exist is not an error.
func (db *RoleDB) RemoveRole(g *core.RoleGrant) error {
	txn := db.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(roleGrantTable, idIndex, key(g.UserID, g.ObjectType, g.ObjectID)); err != nil {
		return err
	}
	txn.Commit()
	return nil
}
