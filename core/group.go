package core

import "strings"

type State string

const (
	Active  State = "active"
	Deleted State = "deleted"
)

func (s State) Valid() bool {
	return s == Active || s == Deleted
}

// GroupType distinguishes catalog semantics on an otherwise identical schema.
type GroupType string

const (
	TypeGroup        GroupType = "group"
	TypeOrganization GroupType = "organization"
)

// ReservedGroupName can't be used because "/group/new" is the form for new groups.
const ReservedGroupName = "new"

func (t GroupType) Valid() bool {
	return t == TypeGroup || t == TypeOrganization
}

type Group struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	Type        GroupType `db:"type" json:"type"`
	State       State     `db:"state" json:"state"`
	TsCreated   int64     `db:"ts_created" json:"created"`
	RevisionID  int64     `db:"revision_id" json:"revision_id"` // revision of the last commit
}

// groupFields are the revisioned fields of a Group, in display order.
var groupFields = []string{"name", "title", "description", "image_url", "type", "state"}

func (g *Group) IsActive() bool {
	return g.State == Active
}

// DisplayName returns the title, or the name if the title is empty.
func (g *Group) DisplayName() string {
	if g.Title != "" {
		return g.Title
	}
	return g.Name
}

func (g *Group) ObjectType() ObjectType {
	return GroupObject
}

func (g *Group) ObjectID() string {
	return g.ID
}

func (g *Group) field(name string) string {
	switch name {
	case "name":
		return g.Name
	case "title":
		return g.Title
	case "description":
		return g.Description
	case "image_url":
		return g.ImageURL
	case "type":
		return string(g.Type)
	case "state":
		return string(g.State)
	}
	return ""
}

// apply copies the revisioned fields from attrs. Keys must have been checked before.
func (g *Group) apply(attrs Attrs) {
	for key, value := range attrs {
		switch key {
		case "name":
			g.Name = NormalizeName(value)
		case "title":
			g.Title = value
		case "description":
			g.Description = value
		case "image_url":
			g.ImageURL = value
		case "type":
			g.Type = GroupType(strings.TrimSpace(value))
		case "state":
			g.State = State(strings.TrimSpace(value))
		}
	}
}

func (g *Group) validate() *validation {
	var v = &validation{}
	validateName(v, g.Name)
	if g.Name == ReservedGroupName {
		v.add("name", "Name %q is reserved", ReservedGroupName)
	}
	if len(g.Title) > 255 {
		v.add("title", "Title is too long")
	}
	if !g.Type.Valid() {
		v.add("type", "Unknown group type %q", g.Type)
	}
	if !g.State.Valid() {
		v.add("state", "Unknown state %q", g.State)
	}
	return v
}

// Change is the old and new value of a field.
type Change struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// diffGroups returns the revisioned fields which differ between a and b.
// If a is nil, all non-empty fields of b are reported.
func diffGroups(a, b *Group) map[string]Change {
	var changes = make(map[string]Change)
	for _, f := range groupFields {
		var old string
		if a != nil {
			old = a.field(f)
		}
		if cur := b.field(f); old != cur {
			changes[f] = Change{Old: old, New: cur}
		}
	}
	return changes
}

// changedFields is diffGroups in display order.
func changedFields(a, b *Group) []string {
	var changes = diffGroups(a, b)
	var fields = []string{}
	for _, f := range groupFields {
		if _, ok := changes[f]; ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// GroupDB stores groups, their memberships and their revisions.
//
// InsertGroup and UpdateGroup must apply the group, the membership changes, the owner grant and the revision in one transaction.
// They set rev.ID and g.RevisionID. Lookups of unknown groups return an error which wraps ErrNotFound,
// writes which violate the unique name constraint return an error which wraps ErrDuplicate.
type GroupDB interface {
	ActivePackages(groupID string) ([]*Package, error)
	GetAllGroups(t GroupType, limit, offset int) ([]*Group, error) // active groups only, ordered by name
	GetGroup(id string) (*Group, error)
	GetGroupByName(name string) (*Group, error)
	GroupRevisions(groupID string) ([]*GroupRevision, error) // newest first
	InsertGroup(g *Group, changes []MembershipChange, owner *RoleGrant, rev *Revision) error
	MembershipRevisions(groupID string) ([]*MembershipRevision, error) // newest first
	UpdateGroup(g *Group, changes []MembershipChange, rev *Revision) error
}
