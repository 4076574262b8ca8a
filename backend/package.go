package backend

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
)

// autocomplete returns the active packages whose name or title starts with the query.
func autocomplete(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var limit = 10
	if l, err := strconv.Atoi(req.URL.Query().Get("limit")); err == nil && l > 0 && l <= listLimit {
		limit = l
	}

	packages, err := ctx.DB.SearchPackages(req.URL.Query().Get("q"), limit)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"packages": packages,
	})
}
