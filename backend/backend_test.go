package backend

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wansing/datacat/catalogtest"
	"github.com/wansing/datacat/memstore"
)

func newTestServer(t *testing.T) (*catalogtest.Fixture, *httptest.Server) {

	store, err := memstore.New()
	require.NoError(t, err)

	var f = catalogtest.Setup(t, store.Catalog())

	var b = &Backend{
		DB:       f.Catalog,
		Sessions: scs.New(),
	}

	var srv = httptest.NewServer(b.Sessions.LoadAndSave(b.NewRouter()))
	t.Cleanup(srv.Close)
	return f, srv
}

// newClient returns a client with a cookie jar which does not follow redirects.
func newClient(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, client *http.Client, u string) *http.Response {
	t.Helper()
	resp, err := client.Get(u)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func post(t *testing.T, client *http.Client, u string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(u, form)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	return data
}

func loggedIn(t *testing.T, srv *httptest.Server, name string) *http.Client {
	t.Helper()
	var client = newClient(t)
	resp := post(t, client, srv.URL+"/user/login", url.Values{"login": {name}, "password": {catalogtest.Password}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/group", resp.Header.Get("Location"))
	return client
}

func TestReadGroup(t *testing.T) {

	var obs = &catalogtest.CountingObserver{}
	f, srv := newTestServer(t)
	f.Catalog.Observers.Register(obs)

	resp := get(t, newClient(t), srv.URL+"/group/david")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data = decode(t, resp)
	assert.Equal(t, "david", data["group"].(map[string]interface{})["name"])
	assert.Equal(t, float64(2), data["package_count"])
	assert.Equal(t, 1, obs.Count("read"))
	assert.Equal(t, 1, obs.Count("before_view"))

	resp = get(t, newClient(t), srv.URL+"/group/nonexistent")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListGroups(t *testing.T) {

	_, srv := newTestServer(t)

	resp := get(t, newClient(t), srv.URL+"/group")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode(t, resp)["groups"], 2)

	resp = get(t, newClient(t), srv.URL+"/group?type=organization")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode(t, resp)["groups"], 0)
}

func TestNewGroupRequiresLogin(t *testing.T) {

	_, srv := newTestServer(t)

	resp := post(t, newClient(t), srv.URL+"/group/new", url.Values{"name": {"testgrp1"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/user/login"))
}

func TestNewGroupForm(t *testing.T) {

	_, srv := newTestServer(t)

	resp := get(t, newClient(t), srv.URL+"/group/new")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/user/login"))

	resp = get(t, loggedIn(t, srv, "russianfan"), srv.URL+"/group/new")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data = decode(t, resp)
	var group = data["group"].(map[string]interface{})
	assert.Equal(t, "group", group["type"])
	assert.Equal(t, "active", group["state"])
	assert.Empty(t, data["packages"])
}

func TestNewGroupQueryParam(t *testing.T) {

	f, srv := newTestServer(t)
	var client = loggedIn(t, srv, "russianfan")

	resp := post(t, client, srv.URL+"/group/new?__bad_parameter=value", url.Values{"save": {"1"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Integrity Error", decode(t, resp)["error"])

	resp = post(t, client, srv.URL+"/group/new?name=testgrp2", url.Values{"save": {"1"}, "title": {"Test Group 2"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	groups, err := f.Catalog.ListGroups("group", 10, 0)
	require.NoError(t, err)
	assert.Len(t, groups, 3)
}

func TestNewGroupReservedName(t *testing.T) {

	_, srv := newTestServer(t)

	resp := post(t, loggedIn(t, srv, "russianfan"), srv.URL+"/group/new", url.Values{"name": {"new"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data = decode(t, resp)
	assert.Equal(t, true, data["has-errors"])
	assert.Contains(t, data["errors"].(map[string]interface{})["name"], "reserved")
}

func TestLoginFails(t *testing.T) {

	_, srv := newTestServer(t)

	resp := post(t, newClient(t), srv.URL+"/user/login", url.Values{"login": {"russianfan"}, "password": {"wrong"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data = decode(t, resp)
	assert.Equal(t, true, data["has-errors"])
	assert.Equal(t, "russianfan", data["login"])
}

func TestNewGroup(t *testing.T) {

	f, srv := newTestServer(t)
	var client = loggedIn(t, srv, "russianfan")

	var form = url.Values{
		"name":     {"testgrp1"},
		"title":    {"Test Group 1"},
		"packages": {"annakarenina", "annakarenina"},
		"save":     {"save"},
	}

	resp := post(t, client, srv.URL+"/group/new", form)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/group/testgrp1", resp.Header.Get("Location"))

	packages, err := f.Catalog.ActivePackages("testgrp1")
	require.NoError(t, err)
	assert.Len(t, packages, 1)

	// the second time, the form is returned with annotations
	resp = post(t, client, srv.URL+"/group/new", form)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data = decode(t, resp)
	assert.Equal(t, true, data["has-errors"])
	assert.Contains(t, data["errors"].(map[string]interface{})["name"], "Group name already exists")

	// notifications are shown once
	resp = get(t, client, srv.URL+"/group/testgrp1")
	notifications := decode(t, resp)["notifications"].([]interface{})
	require.NotEmpty(t, notifications)
	resp = get(t, client, srv.URL+"/group/testgrp1")
	assert.Empty(t, decode(t, resp)["notifications"])
}

func TestEditGroup(t *testing.T) {

	var obs = &catalogtest.CountingObserver{}
	f, srv := newTestServer(t)
	f.Catalog.Observers.Register(obs)
	var client = loggedIn(t, srv, "russianfan")

	resp := get(t, client, srv.URL+"/group/edit/david")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, client, srv.URL+"/group/edit/david", url.Values{
		"name":            {"newname"},
		"remove_packages": {"warandpeace"},
		"save":            {"save"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/group/newname", resp.Header.Get("Location"))
	assert.Equal(t, 1, obs.Count("edit"))

	packages, err := f.Catalog.ActivePackages("newname")
	require.NoError(t, err)
	require.Len(t, packages, 1)
	assert.Equal(t, "annakarenina", packages[0].Name)
}

func TestEditDescriptionVerbatim(t *testing.T) {

	f, srv := newTestServer(t)
	var client = loggedIn(t, srv, "russianfan")

	var description = "### Lots of stuff here\n\nHo ho ho\n"
	resp := post(t, client, srv.URL+"/group/edit/david", url.Values{
		"title":       {"  Dave's books  "},
		"description": {description},
		"save":        {"save"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	g, err := f.Catalog.GetGroupByRef("david")
	require.NoError(t, err)
	assert.Equal(t, description, g.Description)
	assert.Equal(t, "  Dave's books  ", g.Title)

	history, err := f.Catalog.History("david")
	require.NoError(t, err)
	require.Len(t, history, 2)

	old, err := f.Catalog.GroupAt("david", history[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "These are books that David likes.", old.Description)
}

func TestEditIntegrityError(t *testing.T) {

	f, srv := newTestServer(t)
	var client = loggedIn(t, srv, "russianfan")

	resp := post(t, client, srv.URL+"/group/edit/david", url.Values{"title": {"x"}, "foo": {"bar"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Integrity Error", decode(t, resp)["error"])

	resp = post(t, client, srv.URL+"/group/edit/david?foo=bar", url.Values{"title": {"x"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	g, err := f.Catalog.GetGroupByRef("david")
	require.NoError(t, err)
	assert.Equal(t, "Dave's books", g.Title)
}

func TestEditDeletedGroup(t *testing.T) {

	f, srv := newTestServer(t)
	var admin = loggedIn(t, srv, "russianfan")

	resp := post(t, admin, srv.URL+"/group/edit/david", url.Values{"state": {"deleted"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	g, err := f.Catalog.GetGroupByRef("david")
	require.NoError(t, err)
	assert.Equal(t, "deleted", string(g.State))

	// anonymous users are redirected to the login page
	resp = post(t, newClient(t), srv.URL+"/group/edit/david", url.Values{"title": {"x"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/user/login"))

	// other users are rejected
	catalogtest.User(t, f.Catalog, "other")
	resp = post(t, loggedIn(t, srv, "other"), srv.URL+"/group/edit/david", url.Values{"title": {"x"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHistoryAndDiff(t *testing.T) {

	f, srv := newTestServer(t)
	var client = loggedIn(t, srv, "russianfan")

	resp := post(t, client, srv.URL+"/group/edit/david", url.Values{"description": {"Written off"}, "log_message": {"Changed the description"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	history, err := f.Catalog.History("david")
	require.NoError(t, err)
	require.Len(t, history, 2)

	resp = get(t, client, srv.URL+"/group/history/david?format=atom")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/atom+xml")

	var feed atomFeed
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&feed))
	require.Len(t, feed.Entries, 2)
	assert.Contains(t, feed.Entries[0].Title, "Changed the description")
	assert.Equal(t, "Changed: description", feed.Entries[0].Summary)
	assert.Contains(t, feed.Entries[0].Link.Href, "/group/diff/david?rev_a=")

	resp = get(t, client, srv.URL+"/group/diff/david?rev_a="+strconv.FormatInt(history[1].ID, 10)+"&rev_b="+strconv.FormatInt(history[0].ID, 10))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var changes = decode(t, resp)["diff"].(map[string]interface{})
	require.Len(t, changes, 1)
	assert.Equal(t, "Written off", changes["description"].(map[string]interface{})["new"])

	resp = get(t, client, srv.URL+"/group/diff/david?rev_a=x&rev_b=1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = get(t, client, srv.URL+"/group/bogus/david")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAutocomplete(t *testing.T) {

	_, srv := newTestServer(t)

	resp := get(t, newClient(t), srv.URL+"/package/autocomplete?q=war")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var packages = decode(t, resp)["packages"].([]interface{})
	require.Len(t, packages, 1)
	assert.Equal(t, "warandpeace", packages[0].(map[string]interface{})["name"])
}

func TestLogout(t *testing.T) {

	_, srv := newTestServer(t)
	var client = loggedIn(t, srv, "russianfan")

	resp := get(t, client, srv.URL+"/user/logout")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/user/login", resp.Header.Get("Location"))

	resp = post(t, client, srv.URL+"/group/new", url.Values{"name": {"testgrp1"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/user/login"))
}

func TestParseGroupForm(t *testing.T) {

	attrs, ops := parseGroupForm(url.Values{
		"name":            {" david "},
		"description":     {"Ho ho ho\n"},
		"save":            {"save"},
		"packages":        {"a", "b"},
		"remove_packages": {"a"},
	})

	assert.Equal(t, " david ", attrs["name"]) // normalized by the catalog
	assert.Equal(t, "Ho ho ho\n", attrs["description"])
	assert.NotContains(t, attrs, "save")
	require.Len(t, ops, 3)
	assert.False(t, ops[0].Remove)
	assert.True(t, ops[2].Remove)
	assert.Equal(t, "a", ops[2].Package)
}
