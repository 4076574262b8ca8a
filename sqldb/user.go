package sqldb

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/wansing/datacat/core"
	"golang.org/x/crypto/bcrypt"
)

type UserDB struct {
	*sqlx.DB
	get         *sqlx.Stmt
	getByName   *sqlx.Stmt
	insert      *sqlx.Stmt
	login       *sqlx.Stmt
	setPassword *sqlx.Stmt
	setSysadmin *sqlx.Stmt
}

func NewUserDB(db *sqlx.DB) *UserDB {
	var userDB = &UserDB{}
	userDB.DB = db
	userDB.get = mustPrepare(db, "SELECT id, name, sysadmin FROM usr WHERE id = ? LIMIT 1")
	userDB.getByName = mustPrepare(db, "SELECT id, name, sysadmin FROM usr WHERE name = ? LIMIT 1")
	userDB.insert = mustPrepare(db, "INSERT INTO usr (name) VALUES (?)") // empty password field is safe because no bcrypt hash equals it
	userDB.login = mustPrepare(db, "SELECT id, name, sysadmin, password FROM usr WHERE name = ? LIMIT 1")
	userDB.setPassword = mustPrepare(db, "UPDATE usr SET password = ? WHERE id = ?")
	userDB.setSysadmin = mustPrepare(db, "UPDATE usr SET sysadmin = ? WHERE id = ?")
	return userDB
}

func (db *UserDB) GetUser(id int) (*core.User, error) {
	var u = &core.User{}
	if err := db.get.Get(u, id); err != nil {
		return nil, notFound(err, "user", strconv.Itoa(id))
	}
	return u, nil
}

func (db *UserDB) GetUserByName(name string) (*core.User, error) {
	var u = &core.User{}
	if err := db.getByName.Get(u, name); err != nil {
		return nil, notFound(err, "user", name)
	}
	return u, nil
}

func (db *UserDB) InsertUser(name string) (*core.User, error) {
	res, err := db.insert.Exec(name)
	if err != nil {
		return nil, duplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &core.User{
		ID:   int(id),
		Name: name,
	}, nil
}

type loginRow struct {
	core.User
	Password string `db:"password"`
}

func (db *UserDB) LoginUser(name, password string) (*core.User, error) {

	var row = &loginRow{}
	err := db.login.Get(row, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrAuth // user not found
	}
	if err != nil {
		return nil, err
	}

	if row.Password == "" {
		return nil, core.ErrAuth // no password set
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.Password), []byte(password)); err != nil {
		return nil, core.ErrAuth // wrong password
	}

	return &row.User, nil
}

func (db *UserDB) SetPassword(u *core.User, password string) error {

	if u.ID == 0 {
		return errors.New("can't set password of user 0")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	res, err := db.setPassword.Exec(string(hash), u.ID)
	if err != nil {
		return err
	}
	return affected(res, "user", strconv.Itoa(u.ID))
}

func (db *UserDB) SetSysadmin(u *core.User, sysadmin bool) error {
	res, err := db.setSysadmin.Exec(sysadmin, u.ID)
	if err != nil {
		return err
	}
	if err := affected(res, "user", strconv.Itoa(u.ID)); err != nil {
		return err
	}
	u.Sysadmin = sysadmin
	return nil
}

// affected returns a not found error if no row has been affected.
func affected(res sql.Result, kind, ref string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, ref, core.ErrNotFound)
	}
	return nil
}
