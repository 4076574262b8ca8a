package memstore

import (
	"sort"
	"strings"

	"github.com/wansing/datacat/core"
)

type packageRevision struct {
	Key      string // package id and revision id
	Revision core.Revision
	Package  core.Package
}

type PackageDB struct {
	*Store
}

func NewPackageDB(s *Store) *PackageDB {
	return &PackageDB{s}
}

func (db *PackageDB) GetPackage(id string) (*core.Package, error) {
	raw, err := first(db.db.Txn(false), packageTable, idIndex, id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, notFound("package", id)
	}
	var p = *raw.(*core.Package)
	return &p, nil
}

func (db *PackageDB) GetPackageByName(name string) (*core.Package, error) {
	raw, err := first(db.db.Txn(false), packageTable, nameIndex, name)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, notFound("package", name)
	}
	var p = *raw.(*core.Package)
	return &p, nil
}

func (db *PackageDB) InsertPackage(p *core.Package, owner *core.RoleGrant, rev *core.Revision) error {

	txn := db.db.Txn(true)
	defer txn.Abort()

	for _, idx := range []struct{ index, value string }{{idIndex, p.ID}, {nameIndex, p.Name}} {
		existing, err := first(txn, packageTable, idx.index, idx.value)
		if err != nil {
			return err
		}
		if existing != nil {
			return duplicate("package", idx.value)
		}
	}

	if err := addRevision(txn, rev); err != nil {
		return err
	}

	var stored = *p
	stored.RevisionID = rev.ID
	if err := txn.Insert(packageTable, &stored); err != nil {
		return err
	}

	var snapshot = stored
	snapshot.TsCreated = 0
	if err := txn.Insert(packageRevisionTable, &packageRevision{
		Key:      key(p.ID, rev.ID),
		Revision: *rev,
		Package:  snapshot,
	}); err != nil {
		return err
	}

	if owner != nil {
		if err := insertGrant(txn, owner); err != nil {
			return err
		}
	}

	txn.Commit()
	p.RevisionID = rev.ID
	return nil
}

// SearchPackages returns active packages whose name or title starts with prefix, case-insensitively, ordered by name.
func (db *PackageDB) SearchPackages(prefix string, limit int) ([]*core.Package, error) {

	objs, err := all(db.db.Txn(false), packageTable, idIndex+"_prefix", "")
	if err != nil {
		return nil, err
	}

	prefix = strings.ToLower(strings.TrimSpace(prefix))

	var packages = []*core.Package{}
	for _, obj := range objs {
		var p = *obj.(*core.Package)
		if !p.IsActive() {
			continue
		}
		if strings.HasPrefix(p.Name, prefix) || strings.HasPrefix(strings.ToLower(p.Title), prefix) {
			packages = append(packages, &p)
		}
	}
	sort.Slice(packages, func(i, j int) bool {
		return packages[i].Name < packages[j].Name
	})

	if limit >= 0 && limit < len(packages) {
		packages = packages[:limit]
	}
	return packages, nil
}
