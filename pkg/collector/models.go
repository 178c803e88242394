package collector

import (
	"encoding/json"
)

// Item is one post record as returned by the item endpoint or listed in a
// remix page. Raw keeps the complete record so snapshots carry every field,
// not only the typed ones.
type Item struct {
	Post    Post    `json:"post"`
	Profile Profile `json:"profile"`

	// HasChildren is set when the record carries a top-level children field
	HasChildren bool            `json:"-"`
	Raw         json.RawMessage `json:"-"`
}

// Post holds the fields of a post used for collection and download
type Post struct {
	ID          string       `json:"id"`
	RemixCount  int          `json:"remix_count"`
	Attachments []Attachment `json:"attachments"`
	RemixPosts  *PageListing `json:"remix_posts,omitempty"`
}

// Attachment is a media file attached to a post
type Attachment struct {
	DownloadableURL string `json:"downloadable_url"`
	Prompt          string `json:"prompt,omitempty"`
}

// Profile identifies the author of a post
type Profile struct {
	Username string `json:"username"`
	UserID   string `json:"user_id"`
}

// PageListing is one page of related items. A nil Items slice means the
// page had no items field at all; an empty Cursor marks the last page.
type PageListing struct {
	Items  []Item `json:"items"`
	Cursor string `json:"cursor"`
}

// UnmarshalJSON decodes the typed fields and keeps a copy of the raw record
func (i *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return err
	}
	_, decoded.HasChildren = top["children"]

	decoded.Raw = append(json.RawMessage(nil), data...)
	*i = Item(decoded)
	return nil
}

// Author returns the name used in output file names
func (i *Item) Author() string {
	switch {
	case i.Profile.Username != "":
		return i.Profile.Username
	case i.Profile.UserID != "":
		return i.Profile.UserID
	default:
		return "unknown"
	}
}

// MediaURL returns the first attachment's download URL, or "" when the post has none
func (i *Item) MediaURL() string {
	if len(i.Post.Attachments) == 0 {
		return ""
	}
	return i.Post.Attachments[0].DownloadableURL
}

// Snapshot returns the record to write as metadata
func (i *Item) Snapshot() json.RawMessage {
	if len(i.Raw) > 0 {
		return i.Raw
	}
	data, _ := json.Marshal(i)
	return data
}

// Entry is an item with its progress label counter
type Entry struct {
	Counter int
	Item    *Item
}

// FirstCounter labels the root item; related items count up from it
const FirstCounter = 11

// Collection is a root item and its related items in listing order
type Collection struct {
	Root    *Item
	Related []Item
	// Pages is the number of listing pages fetched after the root
	Pages int
}

// Entries returns the root followed by the related items, each with its counter
func (c *Collection) Entries() []Entry {
	if c.Root == nil {
		return nil
	}
	entries := make([]Entry, 0, len(c.Related)+1)
	entries = append(entries, Entry{Counter: FirstCounter, Item: c.Root})
	for i := range c.Related {
		entries = append(entries, Entry{Counter: FirstCounter + 1 + i, Item: &c.Related[i]})
	}
	return entries
}
