package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	errs "clipvault/pkg/errors"
	"clipvault/pkg/logger"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// MediaAccept is the Accept header sent for media downloads
const MediaAccept = "video/*,application/octet-stream;q=0.9,*/*;q=0.8"

// Job describes one item to snapshot and download
type Job struct {
	ID       string
	AuthorID string
	URL      string
	// Dest is a directory or a file path, see ResolveMediaPath
	Dest     string
	Metadata json.RawMessage
	// Label is shown next to the progress bar
	Label string
}

// Result reports what a Fetch did
type Result struct {
	MetadataPath string
	MediaPath    string
	Skipped      bool
	Bytes        int64
}

// Options configure a Fetcher
type Options struct {
	HTTPClient *http.Client
	// Headers is the base request header set; it is sanitized per resource host
	Headers http.Header
	// APIHost keeps credentials on requests to this host and its subdomains
	APIHost string
	// DeviceHeader is the configured device-id header name, dropped for
	// foreign hosts
	DeviceHeader string
	// Timeout bounds a single download; 0 relies on the context alone
	Timeout  time.Duration
	Progress io.Writer
	Now      func() time.Time
	Logger   logger.Logger
}

// Fetcher writes metadata snapshots and downloads media files
type Fetcher struct {
	httpClient *http.Client
	headers    http.Header
	apiHost    string
	deviceHdr  string
	timeout    time.Duration
	progress   io.Writer
	now        func() time.Time
	logger     logger.Logger
}

// NewFetcher creates a Fetcher
func NewFetcher(opts Options) *Fetcher {
	f := &Fetcher{
		httpClient: opts.HTTPClient,
		headers:    opts.Headers.Clone(),
		apiHost:    strings.ToLower(opts.APIHost),
		deviceHdr:  opts.DeviceHeader,
		timeout:    opts.Timeout,
		progress:   opts.Progress,
		now:        opts.Now,
		logger:     opts.Logger,
	}
	if f.httpClient == nil {
		f.httpClient = http.DefaultClient
	}
	if f.headers == nil {
		f.headers = make(http.Header)
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.logger == nil {
		f.logger = logger.NewNopLogger()
	}
	f.logger = f.logger.WithField("component", "asset")
	return f
}

// Fetch writes the metadata snapshot (always) and downloads the media file
// unless it already exists.
func (f *Fetcher) Fetch(ctx context.Context, job Job) (Result, error) {
	var result Result
	base := BaseName(DateStamp(f.now()), job.ID, job.AuthorID)

	// snapshot and media share the directory resolved before anything is created
	mediaPath, dir, err := ResolveMediaPath(job.Dest, base+ExtensionFromURL(job.URL))
	if err != nil {
		return result, errs.Persistence(err, "resolve output path for %s", job.ID)
	}
	result.MediaPath = mediaPath

	metaPath, err := f.writeMetadata(dir, base+".json", job.Metadata)
	if err != nil {
		return result, err
	}
	result.MetadataPath = metaPath

	if _, err := os.Stat(mediaPath); err == nil {
		result.Skipped = true
		f.logger.InfoWithFields("File already exists, skipping download", map[string]interface{}{
			"id":   job.ID,
			"path": mediaPath,
		})
		return result, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return result, errs.Persistence(err, "create output directory %s", dir)
	}

	n, err := f.download(ctx, job, mediaPath)
	if err != nil {
		return result, err
	}
	result.Bytes = n

	f.logger.InfoWithFields("Download completed", map[string]interface{}{
		"id":   job.ID,
		"path": mediaPath,
		"size": humanize.IBytes(uint64(n)),
	})
	return result, nil
}

func (f *Fetcher) writeMetadata(dir, name string, metadata json.RawMessage) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errs.Persistence(err, "create metadata directory %s", dir)
	}

	var pretty bytes.Buffer
	if len(metadata) == 0 {
		metadata = json.RawMessage("null")
	}
	if err := json.Indent(&pretty, metadata, "", "    "); err != nil {
		return "", errs.Wrap(errs.ErrorTypeParsing, err, "metadata for %s is not valid JSON", name)
	}

	metaPath := filepath.Join(dir, name)
	if err := os.WriteFile(metaPath, pretty.Bytes(), 0644); err != nil {
		return "", errs.Persistence(err, "write metadata %s", metaPath)
	}
	f.logger.DebugWithFields("Metadata saved", map[string]interface{}{"path": metaPath})
	return metaPath, nil
}

// DownloadHeaders returns the header set for a media request. Credentials
// (Authorization, Cookie), the device id and body headers are dropped unless
// the resource lives on the API host.
func (f *Fetcher) DownloadHeaders(resourceURL string) http.Header {
	h := f.headers.Clone()
	h.Set("Accept", MediaAccept)

	if f.sameHost(resourceURL) {
		return h
	}
	h.Del("Authorization")
	h.Del("Cookie")
	if f.deviceHdr != "" {
		h.Del(f.deviceHdr)
	}
	h.Del("Content-Type")
	h.Del("Content-Length")
	for name := range h {
		if strings.HasSuffix(strings.ToLower(name), "device-id") {
			h.Del(name)
		}
	}
	return h
}

func (f *Fetcher) sameHost(resourceURL string) bool {
	if f.apiHost == "" {
		return false
	}
	u, err := url.Parse(resourceURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == f.apiHost || strings.HasSuffix(host, "."+f.apiHost)
}

func (f *Fetcher) download(ctx context.Context, job Job, mediaPath string) (int64, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeUnknown, err, "invalid download url for %s", job.ID)
	}
	req.Header = f.DownloadHeaders(job.URL)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeNetwork, err, "download %s", job.ID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return 0, errs.New(errs.FromStatus(resp.StatusCode), resp.StatusCode, "failed to download %s: %s", job.ID, resp.Status)
	}

	if resp.ContentLength > 0 {
		f.logger.InfoWithFields("Downloading", map[string]interface{}{
			"id":   job.ID,
			"size": humanize.IBytes(uint64(resp.ContentLength)),
		})
	}

	tmp, err := os.CreateTemp(filepath.Dir(mediaPath), filepath.Base(mediaPath)+".*.part")
	if err != nil {
		return 0, errs.Persistence(err, "create temporary file for %s", job.ID)
	}
	tmpPath := tmp.Name()

	var sink io.Writer = tmp
	if f.progress != nil {
		bar := newBar(f.progress, resp.ContentLength, job)
		sink = io.MultiWriter(tmp, bar)
		defer bar.Finish()
	}

	n, copyErr := io.Copy(sink, resp.Body)
	if copyErr == nil {
		copyErr = tmp.Sync()
	}
	closeErr := tmp.Close()

	if copyErr != nil {
		os.Remove(tmpPath)
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, errs.Wrap(errs.ErrorTypeNetwork, copyErr, "stream %s", job.ID)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return n, errs.Persistence(closeErr, "close %s", tmpPath)
	}
	if err := os.Rename(tmpPath, mediaPath); err != nil {
		os.Remove(tmpPath)
		return n, errs.Persistence(err, "move download into place")
	}
	return n, nil
}

func newBar(w io.Writer, total int64, job Job) *progressbar.ProgressBar {
	label := job.Label
	if label == "" {
		label = job.ID
	}
	if total <= 0 {
		total = -1
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(fmt.Sprintf("%-8s", label)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}
