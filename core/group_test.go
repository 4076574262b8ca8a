package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffGroups(t *testing.T) {

	var a = &Group{Name: "david", Title: "Dave's books", Type: TypeGroup, State: Active}
	var b = *a
	b.Title = "Dave's great books"
	b.State = Deleted

	assert.Equal(t, map[string]Change{
		"title": {Old: "Dave's books", New: "Dave's great books"},
		"state": {Old: "active", New: "deleted"},
	}, diffGroups(a, &b))

	assert.Empty(t, diffGroups(a, a))
	assert.Equal(t, []string{"title", "state"}, changedFields(a, &b))
	assert.Equal(t, []string{"name", "title", "type", "state"}, changedFields(nil, a))
}

func TestGroupApply(t *testing.T) {

	var g = &Group{Name: "david", Title: "Dave's books", Type: TypeGroup, State: Active}
	g.apply(Attrs{"name": " NewName ", "description": "desc\n", "state": " deleted "})

	assert.Equal(t, "newname", g.Name)
	assert.Equal(t, "Dave's books", g.Title)
	assert.Equal(t, "desc\n", g.Description)
	assert.Equal(t, Deleted, g.State)
}

func TestGroupValidate(t *testing.T) {

	var g = &Group{Name: "david", Type: "bogus", State: "gone"}
	err := g.validate().err()
	if assert.Error(t, err) {
		var fields = err.(*ValidationError).Fields()
		assert.Contains(t, fields, "type")
		assert.Contains(t, fields, "state")
		assert.NotContains(t, fields, "name")
	}

	g = &Group{Name: ReservedGroupName, Type: TypeGroup, State: Active}
	err = g.validate().err()
	if assert.Error(t, err) {
		assert.Contains(t, err.(*ValidationError).Fields()["name"], "reserved")
	}
}
