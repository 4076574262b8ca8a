// Package backend serves the catalog over HTTP. Views are rendered as JSON, the group history as an Atom feed, too.
package backend

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/alexedwards/scs/v2"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"github.com/wansing/datacat/core"
)

type Backend struct {
	DB       *core.CatalogDB
	Sessions *scs.SessionManager
	Prefix   string // without trailing slash, prepended to links in feeds
}

type handlerFunc func(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error

func (b *Backend) middleware(requireLoggedIn bool, f handlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {

		var ctx = b.newContext(w, req)
		defer ctx.Cleanup()

		if requireLoggedIn && !ctx.LoggedIn() {
			ctx.Found("/user/login?came_from=%s", url.QueryEscape(req.URL.Path))
			return
		}

		if err := f(w, req, ctx, params); err != nil {
			ctx.fail(err)
		}
	}
}

// fail maps err to a HTTP response.
func (ctx *context) fail(err error) {

	var verr *core.ValidationError
	var ierr *core.IntegrityError

	switch {
	case errors.Is(err, core.ErrNotAuthorized):
		if ctx.LoggedIn() {
			ctx.error(http.StatusUnauthorized, "Unauthorized")
		} else {
			ctx.Found("/user/login?came_from=%s", url.QueryEscape(ctx.request.URL.Path))
		}
	case errors.As(err, &verr):
		// like a form which is rendered again, with annotations
		_ = ctx.JSON(http.StatusOK, map[string]interface{}{
			"has-errors": true,
			"errors":     verr.Fields(),
		})
	case errors.As(err, &ierr):
		logrus.WithError(err).Warn("integrity error")
		ctx.error(http.StatusBadRequest, "Integrity Error")
	case errors.Is(err, core.ErrNotFound):
		ctx.error(http.StatusNotFound, err.Error())
	case errors.Is(err, errBadRequest):
		ctx.error(http.StatusBadRequest, err.Error())
	default:
		logrus.WithError(err).WithField("path", ctx.request.URL.Path).Error("internal error")
		ctx.error(http.StatusInternalServerError, "Internal Server Error")
	}
}

func (ctx *context) error(status int, message string) {
	_ = ctx.JSON(status, map[string]string{
		"error": message,
	})
}

var errBadRequest = errors.New("bad request")

func groupAction(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	switch action := params.ByName("id"); {
	case action == "edit":
		return editGroup(w, req, ctx, params)
	case action == "history" && req.Method == http.MethodGet:
		return history(w, req, ctx, params)
	case action == "diff" && req.Method == http.MethodGet:
		return diff(w, req, ctx, params)
	}
	http.NotFound(w, req)
	ctx.statusWritten = true
	return nil
}

// NewRouter returns the HTTP handler. It must be wrapped by Sessions.LoadAndSave.
func (b *Backend) NewRouter() http.Handler {

	var router = httprouter.New()

	var GETAndPOST = func(path string, handle httprouter.Handle) {
		router.GET(path, handle)
		router.POST(path, handle)
	}

	// httprouter does not allow "/group/:id" next to "/group/edit/:id", so we dispatch by hand
	router.GET("/group", b.middleware(false, listGroups))
	router.GET("/group/:id", b.middleware(false, readGroup))
	router.POST("/group/:id", b.middleware(true, newGroup)) // "/group/new" only
	GETAndPOST("/group/:id/:ref", b.middleware(false, groupAction))
	router.GET("/package/autocomplete", b.middleware(false, autocomplete))
	GETAndPOST("/user/login", b.middleware(false, login))
	router.GET("/user/logout", b.middleware(true, logout))

	return router
}
