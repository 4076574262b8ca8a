package core

import "time"

// Revision is the commit record shared by all entities changed in one transaction.
// IDs are assigned by the store and increase monotonically.
type Revision struct {
	ID        int64    `db:"id" json:"id"`
	Timestamp int64    `db:"ts" json:"timestamp"`
	Author    string   `db:"author" json:"author"`
	Message   string   `db:"message" json:"message"`
	Changed   []string `db:"-" json:"changed,omitempty"` // set by CatalogDB.History
}

func (r *Revision) Time() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// GroupRevision is a snapshot of the revisioned fields of a group.
type GroupRevision struct {
	Revision *Revision
	Group    *Group
}

func newRevision(actor *User, message string) *Revision {
	var rev = &Revision{
		Timestamp: time.Now().Unix(),
		Message:   message,
	}
	if actor != nil {
		rev.Author = actor.Name
	}
	return rev
}
