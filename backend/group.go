package backend

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/wansing/datacat/core"
)

const listLimit = 100

func listGroups(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var t = core.TypeGroup
	if typ := req.URL.Query().Get("type"); typ != "" {
		t = core.GroupType(typ)
	}

	var page = 1
	if p, err := strconv.Atoi(req.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}

	groups, err := ctx.DB.ListGroups(t, listLimit, (page-1)*listLimit)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"groups":        groups,
		"page":          page,
		"notifications": ctx.popNotifications(),
	})
}

func readGroup(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	if params.ByName("id") == "new" {
		return newGroupForm(ctx)
	}

	data, err := ctx.DB.ReadGroup(ctx.User, params.ByName("id"))
	if err != nil {
		return err
	}

	data["notifications"] = ctx.popNotifications()
	return ctx.JSON(http.StatusOK, data)
}

// newGroupForm returns the defaults of a new group.
func newGroupForm(ctx *context) error {

	if err := ctx.DB.CheckAccess(core.GroupCreate, ctx.User, nil); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"group": &core.Group{
			Type:  core.TypeGroup,
			State: core.Active,
		},
		"packages":      []*core.Package{},
		"notifications": ctx.popNotifications(),
	})
}

func newGroup(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	if params.ByName("id") != "new" {
		http.NotFound(w, req)
		ctx.statusWritten = true
		return nil
	}

	if err := req.ParseForm(); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	// query parameters are form parameters, too
	attrs, ops := parseGroupForm(req.Form)

	g, err := ctx.DB.CreateGroup(ctx.User, attrs, ops)
	if err != nil {
		return err
	}

	ctx.Success("Group %s has been created", g.DisplayName())
	ctx.Found("/group/%s", g.Name)
	return nil
}

func editGroup(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var ref = params.ByName("ref")

	if req.Method == http.MethodPost {

		if err := req.ParseForm(); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}

		attrs, ops := parseGroupForm(req.Form)

		g, err := ctx.DB.EditGroup(ctx.User, ref, attrs, ops)
		if err != nil {
			return err
		}

		ctx.Success("Group %s has been saved", g.DisplayName())
		ctx.Found("/group/%s", g.Name)
		return nil
	}

	g, err := ctx.DB.GetGroupByRef(ref)
	if err != nil {
		return err
	}

	if err := ctx.DB.CheckAccess(core.GroupUpdate, ctx.User, g); err != nil {
		return err
	}

	packages, err := ctx.DB.ActivePackages(g.ID)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"group":         g,
		"packages":      packages,
		"notifications": ctx.popNotifications(),
	})
}

// readableGroup resolves the group and checks the read permission.
func readableGroup(ctx *context, ref string) (*core.Group, error) {
	g, err := ctx.DB.GetGroupByRef(ref)
	if err != nil {
		return nil, err
	}
	if err := ctx.DB.CheckAccess(core.GroupRead, ctx.User, g); err != nil {
		return nil, err
	}
	return g, nil
}

func history(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	g, err := readableGroup(ctx, params.ByName("ref"))
	if err != nil {
		return err
	}

	revisions, err := ctx.DB.History(g.ID)
	if err != nil {
		return err
	}

	if req.URL.Query().Get("format") == "atom" {
		return ctx.atom(g, revisions)
	}

	memberships, err := ctx.DB.MembershipHistory(g.ID)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"group":       g,
		"revisions":   revisions,
		"memberships": memberships,
	})
}

func diff(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	g, err := readableGroup(ctx, params.ByName("ref"))
	if err != nil {
		return err
	}

	revA, err := strconv.ParseInt(req.URL.Query().Get("rev_a"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: rev_a: %v", errBadRequest, err)
	}

	revB, err := strconv.ParseInt(req.URL.Query().Get("rev_b"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: rev_b: %v", errBadRequest, err)
	}

	changes, err := ctx.DB.Diff(g.ID, revA, revB)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"group": g,
		"rev_a": revA,
		"rev_b": revB,
		"diff":  changes,
	})
}
