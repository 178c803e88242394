package asset

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	errs "clipvault/pkg/errors"
	"clipvault/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2025, 10, 8, 12, 0, 0, 0, time.Local) }

func baseHeaders() http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer secret")
	h.Set("oai-device-id", "dev-1")
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", "clipvault-test")
	h.Set("Accept", "*/*")
	h.Set("Cookie", "sid=1")
	return h
}

func newMediaServer(t *testing.T, body string, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchWritesSnapshotAndMedia(t *testing.T) {
	var hits int32
	server := newMediaServer(t, "VIDEOBYTES", &hits)
	dest := filepath.Join(t.TempDir(), "20251008_s_root_alice")

	var progress bytes.Buffer
	f := NewFetcher(Options{Headers: baseHeaders(), Now: fixedNow, Progress: &progress, Logger: logger.NewTestLogger()})

	job := Job{
		ID:       "s_abc",
		AuthorID: "bob",
		URL:      server.URL + "/files/clip.mov?sig=1",
		Dest:     dest,
		Metadata: []byte(`{"post":{"id":"s_abc"},"profile":{"username":"bob"}}`),
	}

	result, err := f.Fetch(context.Background(), job)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, int64(10), result.Bytes)
	assert.Equal(t, filepath.Join(dest, "20251008_s_abc_bob.mov"), result.MediaPath)
	assert.Equal(t, filepath.Join(dest, "20251008_s_abc_bob.json"), result.MetadataPath)

	media, err := os.ReadFile(result.MediaPath)
	require.NoError(t, err)
	assert.Equal(t, "VIDEOBYTES", string(media))

	meta, err := os.ReadFile(result.MetadataPath)
	require.NoError(t, err)
	assert.Contains(t, string(meta), "\n    \"post\": {", "four-space indent")

	parts, err := filepath.Glob(filepath.Join(dest, "*.part"))
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestFetchTwiceSkipsMediaButRewritesSnapshot(t *testing.T) {
	var hits int32
	server := newMediaServer(t, "VIDEOBYTES", &hits)
	dest := t.TempDir()
	f := NewFetcher(Options{Now: fixedNow})

	job := Job{ID: "s_abc", AuthorID: "bob", URL: server.URL + "/v.mp4", Dest: dest, Metadata: []byte(`{"v":1}`)}
	first, err := f.Fetch(context.Background(), job)
	require.NoError(t, err)
	require.False(t, first.Skipped)

	job.Metadata = []byte(`{"v":2}`)
	second, err := f.Fetch(context.Background(), job)
	require.NoError(t, err)

	assert.True(t, second.Skipped)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "binary fetched once")

	meta, err := os.ReadFile(second.MetadataPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(meta))
}

func TestFetchHTTPErrorLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	dest := t.TempDir()
	f := NewFetcher(Options{Now: fixedNow})
	result, err := f.Fetch(context.Background(), Job{ID: "s_x", AuthorID: "a", URL: server.URL + "/v.mp4", Dest: dest, Metadata: []byte(`{}`)})

	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeAuth, errs.TypeOf(err))
	assert.NoFileExists(t, result.MediaPath)
	assert.FileExists(t, result.MetadataPath, "snapshot is written before the download")
}

func TestFetchInvalidMetadata(t *testing.T) {
	f := NewFetcher(Options{Now: fixedNow})
	_, err := f.Fetch(context.Background(), Job{ID: "s_x", AuthorID: "a", URL: "http://unused/v.mp4", Dest: t.TempDir(), Metadata: []byte(`{broken`)})
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
}

func TestDownloadHeadersSanitizing(t *testing.T) {
	f := NewFetcher(Options{Headers: baseHeaders(), APIHost: "api.example.test"})

	foreign := f.DownloadHeaders("https://cdn.other.test/v.mp4")
	assert.Empty(t, foreign.Get("Authorization"))
	assert.Empty(t, foreign.Get("oai-device-id"))
	assert.Empty(t, foreign.Get("Content-Type"))
	assert.Empty(t, foreign.Get("Cookie"))
	assert.Equal(t, MediaAccept, foreign.Get("Accept"))
	assert.Equal(t, "clipvault-test", foreign.Get("User-Agent"))

	same := f.DownloadHeaders("https://api.example.test/media/v.mp4")
	assert.Equal(t, "Bearer secret", same.Get("Authorization"))
	assert.Equal(t, "dev-1", same.Get("oai-device-id"))
	assert.Equal(t, "sid=1", same.Get("Cookie"))
	assert.Equal(t, MediaAccept, same.Get("Accept"))

	sub := f.DownloadHeaders("https://videos.api.example.test/v.mp4")
	assert.Equal(t, "Bearer secret", sub.Get("Authorization"))

	lookalike := f.DownloadHeaders("https://evilapi.example.test/v.mp4")
	assert.Empty(t, lookalike.Get("Authorization"))

	// base headers are not mutated
	assert.Equal(t, "Bearer secret", f.headers.Get("Authorization"))
}

func TestDownloadHeadersDropRenamedDeviceHeader(t *testing.T) {
	h := make(http.Header)
	h.Set("Authorization", "Bearer secret")
	h.Set("X-Client-Device", "dev-1")
	h.Set("Cookie", "sid=1")

	f := NewFetcher(Options{Headers: h, APIHost: "api.example.test", DeviceHeader: "X-Client-Device"})

	foreign := f.DownloadHeaders("https://cdn.other.test/v.mp4")
	assert.Empty(t, foreign.Get("X-Client-Device"))
	assert.Empty(t, foreign.Get("Cookie"))
	assert.Empty(t, foreign.Get("Authorization"))

	same := f.DownloadHeaders("https://api.example.test/v.mp4")
	assert.Equal(t, "dev-1", same.Get("X-Client-Device"))
}

func TestDownloadedRequestCarriesSanitizedHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, MediaAccept, r.Header.Get("Accept"))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewFetcher(Options{Headers: baseHeaders(), APIHost: "api.example.test", Now: fixedNow})
	_, err := f.Fetch(context.Background(), Job{ID: "s_1", AuthorID: "a", URL: server.URL + "/v.mp4", Dest: t.TempDir(), Metadata: []byte(`{}`)})
	require.NoError(t, err)
}

func TestResolveMediaPath(t *testing.T) {
	root := t.TempDir()

	existingFile := filepath.Join(root, "picked.mp4")
	require.NoError(t, os.WriteFile(existingFile, []byte("x"), 0644))

	tests := []struct {
		name     string
		dest     string
		wantPath string
		wantDir  string
	}{
		{"existing directory", root, filepath.Join(root, "gen.mp4"), root},
		{"existing file", existingFile, existingFile, root},
		{"missing with extension", filepath.Join(root, "new", "out.webm"), filepath.Join(root, "new", "out.webm"), filepath.Join(root, "new")},
		{"missing without extension", filepath.Join(root, "folder"), filepath.Join(root, "folder", "gen.mp4"), filepath.Join(root, "folder")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, dir, err := ResolveMediaPath(tt.dest, "gen.mp4")
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantDir, dir)
		})
	}
}

func TestFetchToExplicitFilePath(t *testing.T) {
	server := newMediaServer(t, "DATA", nil)
	target := filepath.Join(t.TempDir(), "clips", "mine.mp4")

	result, err := NewFetcher(Options{Now: fixedNow}).Fetch(context.Background(),
		Job{ID: "s_1", AuthorID: "a", URL: server.URL + "/v.mp4", Dest: target, Metadata: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, target, result.MediaPath)
	assert.Equal(t, filepath.Join(filepath.Dir(target), "20251008_s_1_a.json"), result.MetadataPath)
}

func TestFetchIntoExistingDottedDirectory(t *testing.T) {
	server := newMediaServer(t, "DATA", nil)
	dest := filepath.Join(t.TempDir(), "vault.v1")
	require.NoError(t, os.MkdirAll(dest, 0755))

	result, err := NewFetcher(Options{Now: fixedNow}).Fetch(context.Background(),
		Job{ID: "s_1", AuthorID: "a", URL: server.URL + "/v.mp4", Dest: dest, Metadata: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "20251008_s_1_a.mp4"), result.MediaPath)
	assert.Equal(t, filepath.Join(dest, "20251008_s_1_a.json"), result.MetadataPath)
}

func TestExtensionFromURL(t *testing.T) {
	assert.Equal(t, ".mov", ExtensionFromURL("https://cdn.example.test/a/b/clip.mov?x=1"))
	assert.Equal(t, ".mp4", ExtensionFromURL("https://cdn.example.test/a/b/clip"))
	assert.Equal(t, ".mp4", ExtensionFromURL("https://cdn.example.test/"))
	assert.Equal(t, ".mp4", ExtensionFromURL("::not a url"))
}

func TestDateStampAndBaseName(t *testing.T) {
	stamp := DateStamp(time.Date(2025, 1, 9, 15, 0, 0, 0, time.Local))
	assert.Equal(t, "20250109", stamp)
	assert.Equal(t, "20250109_s_1_alice", BaseName(stamp, "s_1", "alice"))
	assert.True(t, strings.HasPrefix(BaseName(DateStamp(fixedNow()), "x", "y"), "20251008_"))
}
