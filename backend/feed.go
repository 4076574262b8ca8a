package backend

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wansing/datacat/core"
)

type atomFeed struct {
	XMLName xml.Name    `xml:"http://www.w3.org/2005/Atom feed"`
	ID      string      `xml:"id"`
	Title   string      `xml:"title"`
	Updated string      `xml:"updated"`
	Links   []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
}

type atomPerson struct {
	Name string `xml:"name"`
}

type atomEntry struct {
	ID      string      `xml:"id"`
	Title   string      `xml:"title"`
	Updated string      `xml:"updated"`
	Author  *atomPerson `xml:"author,omitempty"`
	Summary string      `xml:"summary,omitempty"`
	Link    atomLink    `xml:"link"`
}

func atomTime(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

// atom writes the revisions (newest first) as an Atom feed. Each entry links to the diff against the previous revision.
func (ctx *context) atom(g *core.Group, revisions []*core.Revision) error {

	var groupURL = fmt.Sprintf("%s/group/%s", ctx.Prefix, g.Name)

	var feed = &atomFeed{
		ID:    "urn:uuid:" + g.ID,
		Title: fmt.Sprintf("%s - revision history", g.DisplayName()),
		Links: []atomLink{
			{Href: groupURL},
			{Href: fmt.Sprintf("%s/group/history/%s?format=atom", ctx.Prefix, g.Name), Rel: "self"},
		},
		Entries: []atomEntry{},
	}

	if len(revisions) > 0 {
		feed.Updated = atomTime(revisions[0].Timestamp)
	} else {
		feed.Updated = atomTime(g.TsCreated)
	}

	for i, rev := range revisions {

		var entry = atomEntry{
			ID:      fmt.Sprintf("urn:uuid:%s:%d", g.ID, rev.ID),
			Title:   fmt.Sprintf("Revision %d: %s", rev.ID, rev.Message),
			Updated: atomTime(rev.Timestamp),
			Link:    atomLink{Href: groupURL},
		}

		if rev.Author != "" {
			entry.Author = &atomPerson{Name: rev.Author}
		}

		if len(rev.Changed) > 0 {
			entry.Summary = "Changed: " + strings.Join(rev.Changed, ", ")
		}

		if i+1 < len(revisions) {
			entry.Link.Href = fmt.Sprintf("%s/group/diff/%s?rev_a=%d&rev_b=%d", ctx.Prefix, g.Name, revisions[i+1].ID, rev.ID)
		}

		feed.Entries = append(feed.Entries, entry)
	}

	ctx.writer.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	ctx.writer.WriteHeader(http.StatusOK)
	ctx.statusWritten = true

	if _, err := ctx.writer.Write([]byte(xml.Header)); err != nil {
		return err
	}
	var enc = xml.NewEncoder(ctx.writer)
	enc.Indent("", "  ")
	return enc.Encode(feed)
}
