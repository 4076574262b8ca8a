package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CatalogDB is the revisioned membership store. It validates, authorizes and notifies,
// while the embedded stores do the transactional work.
type CatalogDB struct {
	Authorizer
	GroupDB
	PackageDB
	RoleDB
	UserDB
	Observers Observers
}

// Init sets a RoleAuthorizer if no Authorizer has been set.
func (c *CatalogDB) Init() error {
	if c.GroupDB == nil || c.PackageDB == nil || c.RoleDB == nil || c.UserDB == nil {
		return errors.New("catalog db: missing store")
	}
	if c.Authorizer == nil {
		c.Authorizer = &RoleAuthorizer{RoleDB: c.RoleDB}
	}
	return nil
}

// CheckAccess shadows Authorizer.CheckAccess. It wraps rejections, so errors.Is(err, ErrNotAuthorized) holds.
func (c *CatalogDB) CheckAccess(action Action, actor *User, object Object) error {
	err := c.Authorizer.CheckAccess(action, actor, object)
	if err != nil && errors.Is(err, ErrNotAuthorized) {
		var who = "anonymous"
		if actor != nil {
			who = actor.Name
		}
		return fmt.Errorf("%s: %s: %w", action, who, err)
	}
	return err
}

// GetGroupByRef resolves a group by id or by its current name. It returns a *NotFoundError if there is no such group.
func (c *CatalogDB) GetGroupByRef(ref string) (*Group, error) {

	ref = strings.TrimSpace(ref)

	if _, err := uuid.Parse(ref); err == nil {
		g, err := c.GroupDB.GetGroup(ref)
		if err == nil {
			return g, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	g, err := c.GroupDB.GetGroupByName(NormalizeName(ref))
	if errors.Is(err, ErrNotFound) {
		return nil, &NotFoundError{Kind: "group", Ref: ref}
	}
	return g, err
}

// GetPackageByRef resolves a package by id or name. It returns a *NotFoundError if there is no such package.
func (c *CatalogDB) GetPackageByRef(ref string) (*Package, error) {

	ref = strings.TrimSpace(ref)

	if _, err := uuid.Parse(ref); err == nil {
		p, err := c.PackageDB.GetPackage(ref)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	p, err := c.PackageDB.GetPackageByName(NormalizeName(ref))
	if errors.Is(err, ErrNotFound) {
		return nil, &NotFoundError{Kind: "package", Ref: ref}
	}
	return p, err
}

// checkGroupName returns a ValidationError if another group has the given name.
func (c *CatalogDB) checkGroupName(g *Group) error {
	other, err := c.GroupDB.GetGroupByName(g.Name)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != g.ID:
		return fieldError("name", "Group name already exists in database")
	}
	return nil
}

// CreateGroup creates a group with one revision. The creator becomes admin of the group.
func (c *CatalogDB) CreateGroup(actor *User, attrs Attrs, ops []MembershipOp) (*Group, error) {

	if err := attrs.check(groupFields); err != nil {
		return nil, err
	}

	if err := c.CheckAccess(GroupCreate, actor, nil); err != nil {
		return nil, err
	}

	var g = &Group{
		ID:        uuid.NewString(),
		Type:      TypeGroup,
		State:     Active,
		TsCreated: time.Now().Unix(),
	}
	g.apply(attrs)

	var v = g.validate()
	if g.State != Active {
		v.add("state", "New groups must be active")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	if err := c.checkGroupName(g); err != nil {
		return nil, err
	}

	changes, err := c.resolveMembershipOps(ops)
	if err != nil {
		return nil, err
	}

	var owner *RoleGrant
	if actor != nil {
		owner = &RoleGrant{
			UserID:     actor.ID,
			ObjectType: GroupObject,
			ObjectID:   g.ID,
			Role:       Admin,
		}
	}

	var message = attrs.message()
	if message == "" {
		message = fmt.Sprintf("Create group %s", g.Name)
	}
	var rev = newRevision(actor, message)

	if err := c.GroupDB.InsertGroup(g, changes, owner, rev); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, fieldError("name", "Group name already exists in database")
		}
		return nil, fmt.Errorf("inserting group %s: %w", g.Name, err)
	}

	logrus.WithFields(logrus.Fields{
		"group":    g.Name,
		"revision": rev.ID,
		"packages": len(changes),
	}).Debug("created group")

	c.Observers.each(func(obs Observer) { obs.Create(g) })
	if owner != nil {
		c.Observers.each(func(obs Observer) { obs.AuthzAddRole(owner) })
	}

	return g, nil
}

// EditGroup applies attribute changes and membership ops in one transaction which creates exactly one revision.
// Setting the state to deleted requires the permission to delete the group.
func (c *CatalogDB) EditGroup(actor *User, ref string, attrs Attrs, ops []MembershipOp) (*Group, error) {

	if err := attrs.check(groupFields); err != nil {
		return nil, err
	}

	g, err := c.GetGroupByRef(ref)
	if err != nil {
		return nil, err
	}

	var action = GroupUpdate
	if g.IsActive() && State(strings.TrimSpace(attrs["state"])) == Deleted {
		action = GroupDelete
	}

	if err := c.CheckAccess(action, actor, g); err != nil {
		return nil, err
	}

	var updated = *g
	updated.apply(attrs)

	if err := updated.validate().err(); err != nil {
		return nil, err
	}

	if updated.Name != g.Name {
		if err := c.checkGroupName(&updated); err != nil {
			return nil, err
		}
	}

	// resolve package references before the rename is stored
	changes, err := c.resolveMembershipOps(ops)
	if err != nil {
		return nil, err
	}

	var message = attrs.message()
	if message == "" {
		message = fmt.Sprintf("Edit group %s", updated.Name)
	}
	var rev = newRevision(actor, message)

	if err := c.GroupDB.UpdateGroup(&updated, changes, rev); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, fieldError("name", "Group name already exists in database")
		}
		return nil, fmt.Errorf("updating group %s: %w", g.Name, err)
	}

	logrus.WithFields(logrus.Fields{
		"group":    updated.Name,
		"revision": rev.ID,
		"changed":  changedFields(g, &updated),
		"packages": len(changes),
	}).Debug("edited group")

	c.Observers.each(func(obs Observer) { obs.Edit(&updated) })

	return &updated, nil
}

// DeleteGroup sets the state of the group to deleted. Memberships and packages are not touched.
// Deleting a deleted group is a no-op.
func (c *CatalogDB) DeleteGroup(actor *User, ref string) error {

	g, err := c.GetGroupByRef(ref)
	if err != nil {
		return err
	}

	if err := c.CheckAccess(GroupDelete, actor, g); err != nil {
		return err
	}

	if !g.IsActive() {
		return nil
	}

	var updated = *g
	updated.State = Deleted

	var rev = newRevision(actor, fmt.Sprintf("Delete group %s", g.Name))

	if err := c.GroupDB.UpdateGroup(&updated, nil, rev); err != nil {
		return fmt.Errorf("deleting group %s: %w", g.Name, err)
	}

	logrus.WithFields(logrus.Fields{
		"group":    g.Name,
		"revision": rev.ID,
	}).Debug("deleted group")

	c.Observers.each(func(obs Observer) { obs.Delete(&updated) })

	return nil
}

// ActivePackages returns the active packages of the group in insertion order.
func (c *CatalogDB) ActivePackages(ref string) ([]*Package, error) {
	g, err := c.GetGroupByRef(ref)
	if err != nil {
		return nil, err
	}
	return c.GroupDB.ActivePackages(g.ID)
}

// ListGroups returns the active groups of the given type, ordered by name.
func (c *CatalogDB) ListGroups(t GroupType, limit, offset int) ([]*Group, error) {
	if !t.Valid() {
		return nil, fieldError("type", "Unknown group type %q", t)
	}
	return c.GroupDB.GetAllGroups(t, limit, offset)
}

// History returns the revisions of a group, newest first. Revision.Changed lists the fields which differ from the previous revision.
func (c *CatalogDB) History(ref string) ([]*Revision, error) {

	g, err := c.GetGroupByRef(ref)
	if err != nil {
		return nil, err
	}

	snapshots, err := c.GroupDB.GroupRevisions(g.ID)
	if err != nil {
		return nil, err
	}

	var history = make([]*Revision, 0, len(snapshots))
	for i, s := range snapshots {
		var rev = *s.Revision
		var prev *Group
		if i+1 < len(snapshots) {
			prev = snapshots[i+1].Group
		}
		rev.Changed = changedFields(prev, s.Group)
		history = append(history, &rev)
	}

	return history, nil
}

// MembershipHistory returns the membership state changes of a group, newest first.
func (c *CatalogDB) MembershipHistory(ref string) ([]*MembershipRevision, error) {
	g, err := c.GetGroupByRef(ref)
	if err != nil {
		return nil, err
	}
	return c.GroupDB.MembershipRevisions(g.ID)
}

// GroupAt returns the group as it was committed in the given revision, or in the latest revision before.
func (c *CatalogDB) GroupAt(ref string, revisionID int64) (*Group, error) {

	g, err := c.GetGroupByRef(ref)
	if err != nil {
		return nil, err
	}

	return c.groupAt(g, revisionID)
}

func (c *CatalogDB) groupAt(g *Group, revisionID int64) (*Group, error) {

	snapshots, err := c.GroupDB.GroupRevisions(g.ID)
	if err != nil {
		return nil, err
	}

	for _, s := range snapshots { // newest first
		if s.Revision.ID <= revisionID {
			var result = *s.Group
			result.TsCreated = g.TsCreated // immutable, not part of the snapshot
			return &result, nil
		}
	}

	return nil, &NotFoundError{Kind: "revision", Ref: fmt.Sprintf("%s@%d", g.Name, revisionID)}
}

// Diff returns the fields which differ between the group at revision a and at revision b.
func (c *CatalogDB) Diff(ref string, a, b int64) (map[string]Change, error) {

	g, err := c.GetGroupByRef(ref)
	if err != nil {
		return nil, err
	}

	old, err := c.groupAt(g, a)
	if err != nil {
		return nil, err
	}

	cur, err := c.groupAt(g, b)
	if err != nil {
		return nil, err
	}

	return diffGroups(old, cur), nil
}

// ReadGroup returns the data of the read view of a group. The observers are notified and may modify the data.
func (c *CatalogDB) ReadGroup(actor *User, ref string) (map[string]interface{}, error) {

	g, err := c.GetGroupByRef(ref)
	if err != nil {
		return nil, err
	}

	if err := c.CheckAccess(GroupRead, actor, g); err != nil {
		return nil, err
	}

	packages, err := c.GroupDB.ActivePackages(g.ID)
	if err != nil {
		return nil, err
	}

	admins, err := c.roleHolders(g, Admin)
	if err != nil {
		return nil, err
	}

	var data = map[string]interface{}{
		"group":         g,
		"packages":      packages,
		"package_count": len(packages),
		"admins":        admins,
		"can_edit":      c.CheckAccess(GroupUpdate, actor, g) == nil,
	}

	c.Observers.each(func(obs Observer) { obs.Read(g) })

	return c.Observers.beforeView(data), nil
}

// roleHolders returns the names of the users who have at least the given role on the object.
func (c *CatalogDB) roleHolders(object Object, min Role) ([]string, error) {
	grants, err := c.RoleDB.GetRoles(object.ObjectType(), object.ObjectID())
	if err != nil {
		return nil, err
	}
	var names = []string{}
	for _, grant := range grants {
		if grant.Role < min {
			continue
		}
		u, err := c.UserDB.GetUser(grant.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		names = append(names, u.Name)
	}
	return names, nil
}

// CreatePackage creates a package with one revision. The creator becomes admin of the package.
func (c *CatalogDB) CreatePackage(actor *User, attrs Attrs) (*Package, error) {

	if err := attrs.check(packageFields); err != nil {
		return nil, err
	}

	if err := c.CheckAccess(PackageCreate, actor, nil); err != nil {
		return nil, err
	}

	var p = &Package{
		ID:        uuid.NewString(),
		State:     Active,
		TsCreated: time.Now().Unix(),
	}
	p.apply(attrs)

	if err := p.validate().err(); err != nil {
		return nil, err
	}

	var owner *RoleGrant
	if actor != nil {
		owner = &RoleGrant{
			UserID:     actor.ID,
			ObjectType: PackageObject,
			ObjectID:   p.ID,
			Role:       Admin,
		}
	}

	var message = attrs.message()
	if message == "" {
		message = fmt.Sprintf("Create package %s", p.Name)
	}

	if err := c.PackageDB.InsertPackage(p, owner, newRevision(actor, message)); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, fieldError("name", "Package name already exists in database")
		}
		return nil, fmt.Errorf("inserting package %s: %w", p.Name, err)
	}

	if owner != nil {
		c.Observers.each(func(obs Observer) { obs.AuthzAddRole(owner) })
	}

	return p, nil
}

// resolveObject returns the group or package a grant refers to.
func (c *CatalogDB) resolveObject(grant *RoleGrant) (Object, error) {
	switch grant.ObjectType {
	case GroupObject:
		return c.GetGroupByRef(grant.ObjectID)
	case PackageObject:
		return c.GetPackageByRef(grant.ObjectID)
	}
	return nil, fmt.Errorf("unknown object type %q", grant.ObjectType)
}

// AddRole grants a role. The actor must be admin of the object. ObjectID may be a name, it is replaced by the id.
func (c *CatalogDB) AddRole(actor *User, grant *RoleGrant) error {

	if !grant.Role.Valid() {
		return fieldError("role", "Unknown role %d", grant.Role)
	}

	object, err := c.resolveObject(grant)
	if err != nil {
		return err
	}

	if err := c.CheckAccess(RoleChange, actor, object); err != nil {
		return err
	}

	if _, err := c.UserDB.GetUser(grant.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &NotFoundError{Kind: "user", Ref: fmt.Sprint(grant.UserID)}
		}
		return err
	}

	grant.ObjectID = object.ObjectID()

	if err := c.RoleDB.InsertRole(grant); err != nil {
		return err
	}

	c.Observers.each(func(obs Observer) { obs.AuthzAddRole(grant) })
	return nil
}

// RemoveRole removes a role grant. The actor must be admin of the object.
func (c *CatalogDB) RemoveRole(actor *User, grant *RoleGrant) error {

	object, err := c.resolveObject(grant)
	if err != nil {
		return err
	}

	if err := c.CheckAccess(RoleChange, actor, object); err != nil {
		return err
	}

	grant.ObjectID = object.ObjectID()

	if err := c.RoleDB.RemoveRole(grant); err != nil {
		return err
	}

	c.Observers.each(func(obs Observer) { obs.AuthzRemoveRole(grant) })
	return nil
}
