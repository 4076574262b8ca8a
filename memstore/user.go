package memstore

import (
	"errors"
	"strconv"

	"github.com/hashicorp/go-memdb"
	"github.com/wansing/datacat/core"
	"golang.org/x/crypto/bcrypt"
)

type user struct {
	Key string // id
	core.User
	Password []byte // bcrypt hash
}

type UserDB struct {
	*Store
}

func NewUserDB(s *Store) *UserDB {
	return &UserDB{s}
}

func (db *UserDB) getUser(txn *memdb.Txn, id int) (*user, error) {
	raw, err := first(txn, userTable, idIndex, strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, notFound("user", strconv.Itoa(id))
	}
	return raw.(*user), nil
}

func (db *UserDB) GetUser(id int) (*core.User, error) {
	u, err := db.getUser(db.db.Txn(false), id)
	if err != nil {
		return nil, err
	}
	var result = u.User
	return &result, nil
}

func (db *UserDB) GetUserByName(name string) (*core.User, error) {
	raw, err := first(db.db.Txn(false), userTable, nameIndex, name)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, notFound("user", name)
	}
	var result = raw.(*user).User
	return &result, nil
}

func (db *UserDB) InsertUser(name string) (*core.User, error) {

	txn := db.db.Txn(true)
	defer txn.Abort()

	existing, err := first(txn, userTable, nameIndex, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, duplicate("user", name)
	}

	id, err := next(txn, userTable)
	if err != nil {
		return nil, err
	}

	var u = &user{
		Key: strconv.FormatInt(id, 10),
		User: core.User{
			ID:   int(id),
			Name: name,
		},
	}
	if err := txn.Insert(userTable, u); err != nil {
		return nil, err
	}

	txn.Commit()
	var result = u.User
	return &result, nil
}

func (db *UserDB) LoginUser(name, password string) (*core.User, error) {

	raw, err := first(db.db.Txn(false), userTable, nameIndex, name)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, core.ErrAuth // user not found
	}

	var u = raw.(*user)
	if len(u.Password) == 0 {
		return nil, core.ErrAuth // no password set
	}
	if err := bcrypt.CompareHashAndPassword(u.Password, []byte(password)); err != nil {
		return nil, core.ErrAuth // wrong password
	}

	var result = u.User
	return &result, nil
}

func (db *UserDB) SetPassword(u *core.User, password string) error {

	if u.ID == 0 {
		return errors.New("can't set password of user 0")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.update(u.ID, func(stored *user) {
		stored.Password = hash
	})
}

func (db *UserDB) SetSysadmin(u *core.User, sysadmin bool) error {
	if err := db.update(u.ID, func(stored *user) {
		stored.Sysadmin = sysadmin
	}); err != nil {
		return err
	}
	u.Sysadmin = sysadmin
	return nil
}

// update modifies a copy of the stored user and replaces it.
func (db *UserDB) update(id int, modify func(*user)) error {

	txn := db.db.Txn(true)
	defer txn.Abort()

	stored, err := db.getUser(txn, id)
	if err != nil {
		return err
	}

	var u = *stored
	modify(&u)
	if err := txn.Insert(userTable, &u); err != nil {
		return err
	}

	txn.Commit()
	return nil
}
