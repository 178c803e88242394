package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"clipvault/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves a root item and pages keyed by cursor
type fakeSource struct {
	root      *Item
	rootErr   error
	pages     map[string]*PageListing
	pageErr   error
	endless   bool
	pageCalls []string
}

func (f *fakeSource) FetchRoot(ctx context.Context, ref string) (*Item, error) {
	return f.root, f.rootErr
}

func (f *fakeSource) FetchPage(ctx context.Context, ref, cursor string) (*PageListing, error) {
	f.pageCalls = append(f.pageCalls, cursor)
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	if f.endless {
		n := len(f.pageCalls)
		return &PageListing{
			Items:  []Item{item(fmt.Sprintf("s_e%d", n), "u")},
			Cursor: fmt.Sprintf("c%d", n+1),
		}, nil
	}
	return f.pages[cursor], nil
}

func item(id, author string) Item {
	return Item{
		Post:    Post{ID: id, Attachments: []Attachment{{DownloadableURL: "https://cdn.example.test/" + id + ".mp4"}}},
		Profile: Profile{Username: author},
	}
}

func rootWith(cursor string, seeded ...Item) *Item {
	root := item("s_root", "alice")
	root.Post.RemixPosts = &PageListing{Items: seeded, Cursor: cursor}
	return &root
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Post.ID
	}
	return out
}

func TestCollectFollowsCursorUntilExhausted(t *testing.T) {
	src := &fakeSource{
		root: rootWith("c1", item("s_a", "bob")),
		pages: map[string]*PageListing{
			"c1": {Items: []Item{item("s_b", "carol")}, Cursor: "c2"},
			"c2": {Items: []Item{item("s_c", "dave")}},
		},
	}

	collection, err := New(src, 0, logger.NewNopLogger()).Collect(context.Background(), "s_root")
	require.NoError(t, err)

	assert.Equal(t, []string{"s_a", "s_b", "s_c"}, ids(collection.Related))
	assert.Equal(t, 2, collection.Pages)
	assert.Equal(t, []string{"c1", "c2"}, src.pageCalls)
}

func TestCollectStopsAtPageCap(t *testing.T) {
	src := &fakeSource{root: rootWith("c1"), endless: true}

	collection, err := New(src, 0, nil).Collect(context.Background(), "s_root")
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxPages, collection.Pages)
	assert.Len(t, src.pageCalls, 20)
	assert.Len(t, collection.Related, 20)
}

func TestCollectCustomPageCap(t *testing.T) {
	src := &fakeSource{root: rootWith("c1"), endless: true}

	collection, err := New(src, 3, nil).Collect(context.Background(), "s_root")
	require.NoError(t, err)
	assert.Equal(t, 3, collection.Pages)
}

func TestCollectMissingItemsStopsWithWarning(t *testing.T) {
	tl := logger.NewTestLogger()
	src := &fakeSource{
		root: rootWith("c1", item("s_a", "bob")),
		pages: map[string]*PageListing{
			"c1": {Cursor: "c2"},
			"c2": {Items: []Item{item("s_never", "x")}},
		},
	}

	collection, err := New(src, 0, tl).Collect(context.Background(), "s_root")
	require.NoError(t, err)

	assert.Equal(t, []string{"s_a"}, ids(collection.Related))
	assert.Equal(t, []string{"c1"}, src.pageCalls)
	assert.True(t, tl.HasMessage("no items"))
}

func TestCollectSkipsSeedWhenChildrenPresent(t *testing.T) {
	root := rootWith("c1", item("s_a", "bob"))
	root.HasChildren = true
	src := &fakeSource{root: root}

	collection, err := New(src, 0, nil).Collect(context.Background(), "s_root")
	require.NoError(t, err)

	assert.Empty(t, collection.Related)
	assert.Empty(t, src.pageCalls)
}

func TestCollectWithoutListing(t *testing.T) {
	root := item("s_root", "alice")
	src := &fakeSource{root: &root}

	collection, err := New(src, 0, nil).Collect(context.Background(), "s_root")
	require.NoError(t, err)
	assert.Empty(t, collection.Related)
	assert.Len(t, collection.Entries(), 1)
}

func TestCollectErrors(t *testing.T) {
	boom := errors.New("boom")

	_, err := New(&fakeSource{rootErr: boom}, 0, nil).Collect(context.Background(), "s_root")
	assert.ErrorIs(t, err, boom)

	_, err = New(&fakeSource{root: rootWith("c1"), pageErr: boom}, 0, nil).Collect(context.Background(), "s_root")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "page 1")
}

func TestEntriesCounters(t *testing.T) {
	root := item("s_root", "alice")
	collection := &Collection{Root: &root, Related: []Item{item("s_a", "b"), item("s_b", "c")}}

	entries := collection.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, 11, entries[0].Counter)
	assert.Equal(t, "s_root", entries[0].Item.Post.ID)
	assert.Equal(t, 12, entries[1].Counter)
	assert.Equal(t, 13, entries[2].Counter)
	assert.Equal(t, "s_b", entries[2].Item.Post.ID)
}

func TestItemUnmarshalKeepsRawRecord(t *testing.T) {
	payload := `{
		"post": {
			"id": "s_abc",
			"remix_count": 2,
			"attachments": [{"downloadable_url": "https://cdn.example.test/v.mp4", "prompt": "a cat", "width": 480}],
			"remix_posts": {"items": [{"post": {"id": "s_def"}, "profile": {"user_id": "user-9"}}], "cursor": "next"}
		},
		"profile": {"username": "alice"},
		"extra": {"likes": 5}
	}`

	var it Item
	require.NoError(t, json.Unmarshal([]byte(payload), &it))

	assert.Equal(t, "s_abc", it.Post.ID)
	assert.Equal(t, "alice", it.Author())
	assert.Equal(t, "https://cdn.example.test/v.mp4", it.MediaURL())
	assert.False(t, it.HasChildren)
	require.NotNil(t, it.Post.RemixPosts)
	assert.Equal(t, "next", it.Post.RemixPosts.Cursor)

	nested := it.Post.RemixPosts.Items[0]
	assert.Equal(t, "user-9", nested.Author())
	assert.JSONEq(t, `{"post": {"id": "s_def"}, "profile": {"user_id": "user-9"}}`, string(nested.Raw))

	assert.JSONEq(t, payload, string(it.Snapshot()), "snapshot carries untyped fields")
}

func TestItemChildrenDetection(t *testing.T) {
	var it Item
	require.NoError(t, json.Unmarshal([]byte(`{"post": {"id": "s_1"}, "children": null}`), &it))
	assert.True(t, it.HasChildren)
	assert.Equal(t, "unknown", it.Author())
	assert.Empty(t, it.MediaURL())
}

func TestPageListingMissingItems(t *testing.T) {
	var page PageListing
	require.NoError(t, json.Unmarshal([]byte(`{"cursor": "x"}`), &page))
	assert.Nil(t, page.Items)

	var last PageListing
	require.NoError(t, json.Unmarshal([]byte(`{"items": []}`), &last))
	assert.NotNil(t, last.Items)
	assert.Empty(t, last.Cursor)
}
