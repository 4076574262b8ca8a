package sqldb

import (
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
)

// NewSessionStore returns a session store which uses the sessions table of the initial migration.
func NewSessionStore(db *sqlx.DB) scs.Store {
	return sqlite3store.New(db.DB)
}
