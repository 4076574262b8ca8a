package core

import "strings"

// MembershipOp adds a package to a group or removes it. Package is a package id or name.
type MembershipOp struct {
	Package string
	Remove  bool
}

func AddPackage(ref string) MembershipOp {
	return MembershipOp{Package: ref}
}

func RemovePackage(ref string) MembershipOp {
	return MembershipOp{Package: ref, Remove: true}
}

// MembershipChange is a resolved MembershipOp. The store applies it only if the membership state actually changes.
type MembershipChange struct {
	PackageID string
	State     State
}

// MembershipRevision records a membership state change.
type MembershipRevision struct {
	GroupID    string `db:"grp" json:"group_id"`
	PackageID  string `db:"package" json:"package_id"`
	RevisionID int64  `db:"revision_id" json:"revision_id"`
	State      State  `db:"state" json:"state"`
}

// resolveMembershipOps resolves package references and collapses the ops per package.
// Adding a package twice yields one change. If a package is added and removed, the last op wins.
// The order of the first occurrence is kept.
func (c *CatalogDB) resolveMembershipOps(ops []MembershipOp) ([]MembershipChange, error) {

	var changes = []MembershipChange{}
	var index = make(map[string]int) // package id -> index in changes
	var v validation

	for _, op := range ops {

		var ref = strings.TrimSpace(op.Package)
		if ref == "" {
			continue // empty form slot
		}

		pkg, err := c.GetPackageByRef(ref)
		if err != nil {
			if _, ok := err.(*NotFoundError); ok {
				v.add("packages", "Package %s does not exist", ref)
				continue
			}
			return nil, err
		}

		var state = Active
		if op.Remove {
			state = Deleted
		} else if !pkg.IsActive() {
			v.add("packages", "Package %s has been deleted", ref)
			continue
		}

		if i, ok := index[pkg.ID]; ok {
			changes[i].State = state
			continue
		}

		index[pkg.ID] = len(changes)
		changes = append(changes, MembershipChange{
			PackageID: pkg.ID,
			State:     state,
		})
	}

	if err := v.err(); err != nil {
		return nil, err
	}

	return changes, nil
}
