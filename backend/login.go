package backend

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/wansing/datacat/core"
)

var ErrLogin = errors.New("wrong username or password")

func login(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var cameFrom = req.FormValue("came_from")
	if !strings.HasPrefix(cameFrom, "/") || strings.HasPrefix(cameFrom, "//") {
		cameFrom = "/group" // no open redirects
	}

	if req.Method == http.MethodPost {

		name := req.PostFormValue("login")
		password := req.PostFormValue("password")

		err := ctx.Login(name, password)
		switch {
		case err == nil:
			ctx.Found("%s", cameFrom)
			return nil
		case errors.Is(err, core.ErrAuth):
			ctx.Danger(ErrLogin)
			// keep POST data for login field
		default:
			return err
		}

		return ctx.JSON(http.StatusOK, map[string]interface{}{
			"has-errors":    true,
			"login":         name,
			"came_from":     cameFrom,
			"notifications": ctx.popNotifications(),
		})
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"logged_in":     ctx.LoggedIn(),
		"came_from":     cameFrom,
		"notifications": ctx.popNotifications(),
	})
}
