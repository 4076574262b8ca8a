package backend

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/sirupsen/logrus"
	"github.com/wansing/datacat/core"
)

type Notification struct {
	Message string `json:"message"`
	Style   string `json:"style"`
}

func init() {
	gob.Register([]Notification{}) // required for storing Notifications in a session
}

// context is created for each request by the middleware.
type context struct {
	*Backend
	User *core.User // nil if not logged in

	writer  http.ResponseWriter
	request *http.Request

	statusWritten bool
}

func (b *Backend) newContext(w http.ResponseWriter, httpreq *http.Request) *context {

	var ctx = &context{
		Backend: b,
		writer:  w,
		request: httpreq,
	}

	if uid := b.Sessions.GetInt(httpreq.Context(), "uid"); uid != 0 {
		u, err := b.DB.GetUser(uid)
		if err == nil {
			ctx.User = u
		}
		// ignore errors, the user might have been deleted
	}

	return ctx
}

// Danger adds a "danger" notification to the session.
func (ctx *context) Danger(err error) {
	ctx.addNotification(err.Error(), "danger")
}

// Success adds a "success" notification to the session.
func (ctx *context) Success(format string, args ...interface{}) {
	ctx.addNotification(fmt.Sprintf(format, args...), "success")
}

func (ctx *context) addNotification(message, style string) {
	notifications, _ := ctx.Sessions.Get(ctx.request.Context(), "notifications").([]Notification)
	notifications = append(notifications, Notification{message, style})
	ctx.Sessions.Put(ctx.request.Context(), "notifications", notifications)
}

// popNotifications removes all notifications from the session and returns them.
func (ctx *context) popNotifications() []Notification {
	notifications, _ := ctx.Sessions.Pop(ctx.request.Context(), "notifications").([]Notification)
	if notifications == nil {
		notifications = []Notification{}
	}
	return notifications
}

// Cleanup destroys the session (which means re-setting the cookie with zero lifetime) if the session has been modified and is empty now.
func (ctx *context) Cleanup() {
	if ctx.Sessions.Status(ctx.request.Context()) == scs.Modified && len(ctx.Sessions.Keys(ctx.request.Context())) == 0 {
		_ = ctx.Sessions.Destroy(ctx.request.Context())
	}
}

// Found redirects with HTTP status 302. The location is relative to the prefix.
func (ctx *context) Found(format string, args ...interface{}) {
	if ctx.statusWritten {
		return
	}
	http.Redirect(ctx.writer, ctx.request, fmt.Sprintf(format, args...), http.StatusFound)
	ctx.statusWritten = true
}

// JSON writes v with the given status code.
func (ctx *context) JSON(status int, v interface{}) error {
	if ctx.statusWritten {
		return nil
	}
	ctx.writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	ctx.writer.WriteHeader(status)
	ctx.statusWritten = true
	return json.NewEncoder(ctx.writer).Encode(v)
}

// Login tries to log in a user. On success, the user id is stored in the session.
func (ctx *context) Login(name string, enteredPass string) error {
	if ctx.LoggedIn() {
		return nil
	}
	u, err := ctx.DB.LoginUser(core.NormalizeName(name), enteredPass)
	if err != nil {
		return err // is core.ErrAuth if name or enteredPass is wrong
	}
	// renew token on privilege change
	if err := ctx.Sessions.RenewToken(ctx.request.Context()); err != nil {
		return err
	}
	ctx.User = u
	ctx.Success("Welcome %s!", u.Name)
	ctx.Sessions.Put(ctx.request.Context(), "uid", u.ID)
	logrus.WithField("user", u.Name).Info("login")
	return nil
}

func (ctx *context) LoggedIn() bool {
	return ctx.User != nil
}

// Logout removes the user id from the session.
func (ctx *context) Logout() {
	if ctx.LoggedIn() {
		ctx.Sessions.Remove(ctx.request.Context(), "uid")
		logrus.WithField("user", ctx.User.Name).Info("logout")
		ctx.User = nil
	}
}
