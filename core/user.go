package core

import (
	"errors"
)

type User struct {
	ID       int    `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Sysadmin bool   `db:"sysadmin" json:"sysadmin"`
}

// UserDB stores users. LoginUser returns ErrAuth if the name or password is wrong.
type UserDB interface {
	GetUser(id int) (*User, error)
	GetUserByName(name string) (*User, error)
	InsertUser(name string) (*User, error)
	LoginUser(name, password string) (*User, error)
	SetPassword(u *User, password string) error
	SetSysadmin(u *User, sysadmin bool) error
}

var (
	ErrAuth          = errors.New("wrong username or password")
	ErrEmptyPassword = errors.New("refusing to set empty password")
)

// SetPassword shadows UserDB.SetPassword.
func (c *CatalogDB) SetPassword(u *User, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	return c.UserDB.SetPassword(u, password)
}

// InsertUser shadows UserDB.InsertUser.
func (c *CatalogDB) InsertUser(name string) (*User, error) {
	name = NormalizeName(name)
	var v validation
	validateName(&v, name)
	if err := v.err(); err != nil {
		return nil, err
	}
	return c.UserDB.InsertUser(name)
}
