// Package memstore implements the stores of package core in memory, using go-memdb.
// Nothing is persisted. All stores of a Store share one database, so a write transaction spans all tables.
package memstore

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/go-memdb"
	"github.com/wansing/datacat/core"
)

const (
	counterTable            = "counter"
	groupTable              = "group"
	groupRevisionTable      = "group_revision"
	membershipTable         = "membership"
	membershipRevisionTable = "membership_revision"
	packageTable            = "package"
	packageRevisionTable    = "package_revision"
	roleGrantTable          = "role_grant"
	userTable               = "user"

	idIndex     = "id"
	nameIndex   = "name"
	groupIndex  = "group"
	objectIndex = "object"
)

func uniqueIndex(field string) *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:    idIndex,
		Unique:  true,
		Indexer: &memdb.StringFieldIndex{Field: field},
	}
}

func index(name, field string) *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:    name,
		Indexer: &memdb.StringFieldIndex{Field: field},
	}
}

func table(name string, indexes ...*memdb.IndexSchema) *memdb.TableSchema {
	var t = &memdb.TableSchema{
		Name:    name,
		Indexes: make(map[string]*memdb.IndexSchema),
	}
	for _, i := range indexes {
		t.Indexes[i.Name] = i
	}
	return t
}

// Schema returns the database schema. Unique names are not enforced by go-memdb, the stores check them.
func Schema() *memdb.DBSchema {
	var schema = &memdb.DBSchema{
		Tables: make(map[string]*memdb.TableSchema),
	}
	for _, t := range []*memdb.TableSchema{
		table(counterTable, uniqueIndex("Name")),
		table(groupTable, uniqueIndex("ID"), index(nameIndex, "Name")),
		table(groupRevisionTable, uniqueIndex("Key"), index(groupIndex, "GroupID")),
		table(membershipTable, uniqueIndex("Key"), index(groupIndex, "GroupID")),
		table(membershipRevisionTable, uniqueIndex("Key"), index(groupIndex, "GroupID")),
		table(packageTable, uniqueIndex("ID"), index(nameIndex, "Name")),
		table(packageRevisionTable, uniqueIndex("Key")),
		table(roleGrantTable, uniqueIndex("Key"), index(objectIndex, "Object")),
		table(userTable, uniqueIndex("Key"), index(nameIndex, "Name")),
	} {
		schema.Tables[t.Name] = t
	}
	return schema
}

// Store is an in-memory database.
type Store struct {
	db *memdb.MemDB
}

func New() (*Store, error) {
	db, err := memdb.NewMemDB(Schema())
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Catalog returns a CatalogDB whose stores all use s.
func (s *Store) Catalog() *core.CatalogDB {
	return &core.CatalogDB{
		GroupDB:   &GroupDB{s},
		PackageDB: &PackageDB{s},
		RoleDB:    &RoleDB{s},
		UserDB:    &UserDB{s},
	}
}

type counter struct {
	Name  string
	Value int64
}

// next increments and returns the named counter. It starts at 1.
func next(txn *memdb.Txn, name string) (int64, error) {
	var value int64 = 1
	raw, err := txn.First(counterTable, idIndex, name)
	if err != nil {
		return 0, err
	}
	if raw != nil {
		value = raw.(*counter).Value + 1
	}
	return value, txn.Insert(counterTable, &counter{Name: name, Value: value})
}

// addRevision sets rev.ID.
func addRevision(txn *memdb.Txn, rev *core.Revision) error {
	id, err := next(txn, "revision")
	if err != nil {
		return err
	}
	rev.ID = id
	return nil
}

func key(parts ...interface{}) string {
	var k string
	for i, p := range parts {
		if i > 0 {
			k += "/"
		}
		switch p := p.(type) {
		case int64:
			k += strconv.FormatInt(p, 10)
		case int:
			k += strconv.Itoa(p)
		default:
			k += fmt.Sprint(p)
		}
	}
	return k
}

func notFound(kind, ref string) error {
	return fmt.Errorf("%s %s: %w", kind, ref, core.ErrNotFound)
}

func duplicate(kind, name string) error {
	return fmt.Errorf("%s name %s: %w", kind, name, core.ErrDuplicate)
}

// first returns the first object of the index which matches args, or nil.
func first(txn *memdb.Txn, table, index string, args ...interface{}) (interface{}, error) {
	raw, err := txn.First(table, index, args...)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", table, index, err)
	}
	return raw, nil
}

// all returns all objects of the index which match args.
func all(txn *memdb.Txn, table, index string, args ...interface{}) ([]interface{}, error) {
	it, err := txn.Get(table, index, args...)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", table, index, err)
	}
	var result []interface{}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		result = append(result, raw)
	}
	return result, nil
}
