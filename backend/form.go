package backend

import (
	"net/url"

	"github.com/wansing/datacat/core"
)

// parseGroupForm splits a submitted group form into attributes and membership ops.
// Unknown keys are kept in the attributes, so the catalog can reject them. Values are stored as submitted.
func parseGroupForm(form url.Values) (core.Attrs, []core.MembershipOp) {

	var attrs = core.Attrs{}
	var ops []core.MembershipOp

	for key, values := range form {
		switch key {
		case "save", "packages", "remove_packages":
			// submit button, ops below
		default:
			if len(values) > 0 {
				attrs[key] = values[0]
			}
		}
	}

	// additions first, so a package in both lists ends up removed
	for _, ref := range form["packages"] {
		ops = append(ops, core.AddPackage(ref))
	}
	for _, ref := range form["remove_packages"] {
		ops = append(ops, core.RemovePackage(ref))
	}

	return attrs, ops
}
