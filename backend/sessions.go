package backend

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
)

// NewSessions returns a session manager whose cookie is restricted to the given path prefix.
func NewSessions(store scs.Store, cookiePath string, lifetime time.Duration) *scs.SessionManager {
	var sessions = scs.New()
	sessions.Store = store
	sessions.Cookie.Path = cookiePath + "/"
	sessions.Cookie.Persist = false                 // don't store cookie across browser sessions
	sessions.Cookie.SameSite = http.SameSiteLaxMode // HTTP GET doesn't modify anything
	sessions.Cookie.Secure = false                  // else running on localhost or behind a http proxy fails
	sessions.IdleTimeout = 12 * time.Hour
	sessions.Lifetime = lifetime
	return sessions
}
