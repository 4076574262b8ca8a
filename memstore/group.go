package memstore

import (
	"sort"

	"github.com/hashicorp/go-memdb"
	"github.com/wansing/datacat/core"
)

type groupRevision struct {
	Key      string // group id and revision id
	GroupID  string
	Revision core.Revision
	Group    core.Group
}

type membership struct {
	Key        string // group id and package id
	GroupID    string
	PackageID  string
	Seq        int
	State      core.State
	RevisionID int64
}

type membershipRevision struct {
	Key string // group id, package id and revision id
	core.MembershipRevision
}

type GroupDB struct {
	*Store
}

func NewGroupDB(s *Store) *GroupDB {
	return &GroupDB{s}
}

func (db *GroupDB) ActivePackages(groupID string) ([]*core.Package, error) {

	txn := db.db.Txn(false)

	objs, err := all(txn, membershipTable, groupIndex, groupID)
	if err != nil {
		return nil, err
	}

	var memberships = make([]*membership, 0, len(objs))
	for _, obj := range objs {
		if m := obj.(*membership); m.State == core.Active {
			memberships = append(memberships, m)
		}
	}
	sort.Slice(memberships, func(i, j int) bool {
		return memberships[i].Seq < memberships[j].Seq
	})

	var packages = []*core.Package{}
	for _, m := range memberships {
		raw, err := first(txn, packageTable, idIndex, m.PackageID)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		if p := *raw.(*core.Package); p.IsActive() {
			packages = append(packages, &p)
		}
	}
	return packages, nil
}

func (db *GroupDB) GetAllGroups(t core.GroupType, limit, offset int) ([]*core.Group, error) {

	objs, err := all(db.db.Txn(false), groupTable, idIndex+"_prefix", "")
	if err != nil {
		return nil, err
	}

	var groups = []*core.Group{}
	for _, obj := range objs {
		if g := *obj.(*core.Group); g.Type == t && g.IsActive() {
			groups = append(groups, &g)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Name < groups[j].Name
	})

	if offset > len(groups) {
		offset = len(groups)
	}
	groups = groups[offset:]
	if limit >= 0 && limit < len(groups) {
		groups = groups[:limit]
	}
	return groups, nil
}

func (db *GroupDB) GetGroup(id string) (*core.Group, error) {
	raw, err := first(db.db.Txn(false), groupTable, idIndex, id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, notFound("group", id)
	}
	var g = *raw.(*core.Group)
	return &g, nil
}

func (db *GroupDB) GetGroupByName(name string) (*core.Group, error) {
	raw, err := first(db.db.Txn(false), groupTable, nameIndex, name)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, notFound("group", name)
	}
	var g = *raw.(*core.Group)
	return &g, nil
}

func (db *GroupDB) GroupRevisions(groupID string) ([]*core.GroupRevision, error) {

	objs, err := all(db.db.Txn(false), groupRevisionTable, groupIndex, groupID)
	if err != nil {
		return nil, err
	}

	var result = make([]*core.GroupRevision, 0, len(objs))
	for _, obj := range objs {
		var gr = obj.(*groupRevision)
		var rev = gr.Revision
		var g = gr.Group
		result = append(result, &core.GroupRevision{
			Revision: &rev,
			Group:    &g,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Revision.ID > result[j].Revision.ID
	})
	return result, nil
}

func (db *GroupDB) MembershipRevisions(groupID string) ([]*core.MembershipRevision, error) {

	objs, err := all(db.db.Txn(false), membershipRevisionTable, groupIndex, groupID)
	if err != nil {
		return nil, err
	}

	var revs = make([]*core.MembershipRevision, 0, len(objs))
	for _, obj := range objs {
		var mr = obj.(*membershipRevision).MembershipRevision
		revs = append(revs, &mr)
	}
	sort.Slice(revs, func(i, j int) bool {
		if revs[i].RevisionID != revs[j].RevisionID {
			return revs[i].RevisionID > revs[j].RevisionID
		}
		return revs[i].PackageID < revs[j].PackageID
	})
	return revs, nil
}

func (db *GroupDB) InsertGroup(g *core.Group, changes []core.MembershipChange, owner *core.RoleGrant, rev *core.Revision) error {

	txn := db.db.Txn(true)
	defer txn.Abort() // no-op after commit

	existing, err := first(txn, groupTable, idIndex, g.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return duplicate("group", g.ID)
	}

	if err := db.checkName(txn, g); err != nil {
		return err
	}

	if err := addRevision(txn, rev); err != nil {
		return err
	}

	if err := db.write(txn, g, changes, rev); err != nil {
		return err
	}

	if owner != nil {
		if err := insertGrant(txn, owner); err != nil {
			return err
		}
	}

	txn.Commit()
	g.RevisionID = rev.ID
	return nil
}

func (db *GroupDB) UpdateGroup(g *core.Group, changes []core.MembershipChange, rev *core.Revision) error {

	txn := db.db.Txn(true)
	defer txn.Abort()

	existing, err := first(txn, groupTable, idIndex, g.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return notFound("group", g.ID)
	}

	if err := db.checkName(txn, g); err != nil {
		return err
	}

	if err := addRevision(txn, rev); err != nil {
		return err
	}

	if err := db.write(txn, g, changes, rev); err != nil {
		return err
	}

	txn.Commit()
	g.RevisionID = rev.ID
	return nil
}

func (db *GroupDB) checkName(txn *memdb.Txn, g *core.Group) error {
	raw, err := first(txn, groupTable, nameIndex, g.Name)
	if err != nil {
		return err
	}
	if raw != nil && raw.(*core.Group).ID != g.ID {
		return duplicate("group", g.Name)
	}
	return nil
}

// write stores the group, a snapshot and the memberships which actually change.
func (db *GroupDB) write(txn *memdb.Txn, g *core.Group, changes []core.MembershipChange, rev *core.Revision) error {

	var stored = *g
	stored.RevisionID = rev.ID
	if err := txn.Insert(groupTable, &stored); err != nil {
		return err
	}

	var snapshot = stored
	snapshot.TsCreated = 0
	if err := txn.Insert(groupRevisionTable, &groupRevision{
		Key:      key(g.ID, rev.ID),
		GroupID:  g.ID,
		Revision: *rev,
		Group:    snapshot,
	}); err != nil {
		return err
	}

	for _, change := range changes {

		raw, err := first(txn, membershipTable, idIndex, key(g.ID, change.PackageID))
		if err != nil {
			return err
		}

		var m membership
		if raw == nil {
			if change.State != core.Active {
				continue // removing a package which has never been added
			}
			seq, err := next(txn, key("membership", g.ID))
			if err != nil {
				return err
			}
			m = membership{
				Key:       key(g.ID, change.PackageID),
				GroupID:   g.ID,
				PackageID: change.PackageID,
				Seq:       int(seq),
			}
		} else {
			m = *raw.(*membership)
			if m.State == change.State {
				continue
			}
		}

		m.State = change.State
		m.RevisionID = rev.ID
		if err := txn.Insert(membershipTable, &m); err != nil {
			return err
		}

		if err := txn.Insert(membershipRevisionTable, &membershipRevision{
			Key: key(g.ID, change.PackageID, rev.ID),
			MembershipRevision: core.MembershipRevision{
				GroupID:    g.ID,
				PackageID:  change.PackageID,
				RevisionID: rev.ID,
				State:      change.State,
			},
		}); err != nil {
			return err
		}
	}

	return nil
}
