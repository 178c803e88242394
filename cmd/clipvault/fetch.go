package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"clipvault/internal/downloader"
	"clipvault/pkg/api"
	"clipvault/pkg/asset"
	"clipvault/pkg/browser"
	"clipvault/pkg/collector"
	"clipvault/pkg/logger"
	"clipvault/pkg/ratelimit"
	"clipvault/pkg/ui"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	outputDir   string
	concurrent  int
	maxPages    int
	useBrowser  bool
	headless    bool
	browserPath string
	baseURL     string
	fetchRPM    int
	noProgress  bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <post-url-or-id>",
	Short: "Download a post and its remixes",
	Long: `Fetch a root post and every related post in its remix listing, then save
each one as a JSON snapshot plus its media file.

Files land in <output>/<date>_<root-id>_<root-author>/ and are named
<date>_<id>_<author>.json and <date>_<id>_<author><ext>. A media file that
already exists is not downloaded again; its snapshot is rewritten.

Credentials are only sent to the configured API host and its subdomains.`,
	Example: `  # Fetch by URL
  clipvault fetch https://items.example.test/p/s_68e1f2a3b4c5d6e7f8091a2b3c4d5e6f

  # Fetch by id into a custom folder, three downloads at a time
  clipvault fetch s_68e1f2a3b4c5d6e7f8091a2b3c4d5e6f -o ./vault --concurrent 3

  # Load item JSON through a headless browser
  clipvault fetch s_68e1f2a3b4c5d6e7f8091a2b3c4d5e6f --browser`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default ./downloads)")
	fetchCmd.Flags().IntVar(&concurrent, "concurrent", 0, "parallel downloads, 1 to 10 (default 1)")
	fetchCmd.Flags().IntVar(&maxPages, "max-pages", 0, "listing pages to follow after the root (default 20)")
	fetchCmd.Flags().BoolVar(&useBrowser, "browser", false, "load item JSON through a browser instead of plain HTTP")
	fetchCmd.Flags().BoolVar(&headless, "headless", true, "run the browser without a window")
	fetchCmd.Flags().StringVar(&browserPath, "browser-path", "", "Chrome/Chromium binary for --browser")
	fetchCmd.Flags().StringVar(&baseURL, "base-url", "", "item endpoint base URL")
	fetchCmd.Flags().IntVar(&fetchRPM, "requests-per-minute", 0, "client-side request limit (0 = none)")
	fetchCmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide download progress bars")
	addIdentityFlags(fetchCmd)
}

func fetchFlags(cmd *cobra.Command) (map[string]interface{}, error) {
	flags := make(map[string]interface{})
	if err := identityFlags(cmd, flags); err != nil {
		return nil, err
	}

	set := cmd.Flags().Changed
	if set("output") {
		flags["output"] = outputDir
	}
	if set("concurrent") {
		flags["concurrent"] = concurrent
	}
	if set("max-pages") {
		flags["max-pages"] = maxPages
	}
	if set("browser") {
		flags["browser"] = useBrowser
	}
	if set("headless") {
		flags["headless"] = headless
	}
	if set("base-url") {
		flags["base-url"] = baseURL
	}
	if set("requests-per-minute") {
		flags["requests-per-minute"] = fetchRPM
	}
	return flags, nil
}

type fetchSummary struct {
	mu      sync.Mutex
	saved   int
	skipped int
	failed  int
	bytes   int64
}

func (s *fetchSummary) add(r downloader.DownloadResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !r.Success:
		s.failed++
	case r.Result.Skipped:
		s.skipped++
	default:
		s.saved++
		s.bytes += r.Result.Bytes
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	id, err := collector.ExtractID(args[0])
	if err != nil {
		return fmt.Errorf("%q: %w", args[0], err)
	}

	flags, err := fetchFlags(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if browserPath != "" {
		cfg.Collect.BrowserPath = browserPath
	}
	if noProgress {
		cfg.Download.ShowProgress = false
	}
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("no item endpoint configured: set --base-url, CLIPVAULT_BASE_URL or api.base_url")
	}

	log := logger.GetLogger()
	applyStoredIdentity(cfg, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var source collector.ItemSource
	if cfg.Collect.UseBrowser {
		bs := browser.New(collector.Endpoint{BaseURL: cfg.API.BaseURL, FeedPath: cfg.API.FeedPath}, browser.Options{
			Headless:          cfg.Collect.Headless,
			BrowserPath:       cfg.Collect.BrowserPath,
			Headers:           api.Headers(cfg.API),
			SkipCertCheck:     cfg.API.SkipCertCheck,
			NavigationTimeout: cfg.API.Timeout,
			Logger:            log,
		})
		if err := bs.Start(ctx); err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		defer func() {
			if err := bs.Close(); err != nil {
				log.WithError(err).Warn("Failed to close browser")
			}
		}()
		source = bs
	} else {
		source = api.NewClient(cfg, log)
	}

	logger.LogComponentStart(log, "fetch", map[string]interface{}{
		"id":          id,
		"output":      cfg.Download.OutputDir,
		"concurrency": cfg.Download.Concurrency,
		"max_pages":   cfg.Collect.MaxPages,
		"browser":     cfg.Collect.UseBrowser,
	})

	collection, err := collector.New(source, cfg.Collect.MaxPages, log).Collect(ctx, id)
	if err != nil {
		return err
	}
	entries := collection.Entries()
	ui.PrintInfo("Items", fmt.Sprintf("%d (root + %d related, %d pages)", len(entries), len(collection.Related), collection.Pages))

	stamp := asset.DateStamp(time.Now())
	destDir := filepath.Join(cfg.Download.OutputDir, asset.BaseName(stamp, collection.Root.Post.ID, collection.Root.Author()))
	ui.PrintInfo("Output", destDir)

	var progress io.Writer
	if cfg.Download.ShowProgress && !quiet && cfg.Download.Concurrency == 1 {
		progress = os.Stderr
	}
	apiHost := ""
	if u, err := url.Parse(cfg.API.BaseURL); err == nil {
		apiHost = u.Hostname()
	}
	fetcher := asset.NewFetcher(asset.Options{
		HTTPClient:   api.NewHTTPClient(0, cfg.API.SkipCertCheck),
		Headers:      api.Headers(cfg.API),
		APIHost:      apiHost,
		DeviceHeader: cfg.API.DeviceHeader,
		Timeout:      cfg.Download.Timeout,
		Progress:     progress,
		Logger:       log,
	})

	summary, err := download(ctx, cfg.Download.Concurrency, fetcher, ratelimit.FromSettings(cfg.RateLimit), entries, destDir, log)
	if err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Saved %d, skipped %d, failed %d (%s)",
		summary.saved, summary.skipped, summary.failed, humanize.IBytes(uint64(summary.bytes))))
	notifier := ui.NewNotifier(cfg.Notifications)
	notifier.Complete("Fetch finished", fmt.Sprintf("%s: %d saved, %d skipped", id, summary.saved, summary.skipped))

	if summary.failed > 0 {
		return fmt.Errorf("%d of %d items failed", summary.failed, len(entries))
	}
	return nil
}

func download(ctx context.Context, workers int, fetcher *asset.Fetcher, limiter ratelimit.Limiter,
	entries []collector.Entry, destDir string, log logger.Logger) (*fetchSummary, error) {
	pool := downloader.NewWorkerPool(ctx, workers, fetcher, limiter, log)
	pool.Start()

	summary := &fetchSummary{}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for r := range pool.Results() {
			summary.add(r)
			logger.LogDownload(log, r.Job.ID, r.Result.MediaPath, r.Result.Skipped, r.Error)
			if r.Error != nil {
				ui.PrintError(r.Job.Label+" "+r.Job.ID, r.Error)
			}
		}
	}()

	var submitErr error
	for _, e := range entries {
		mediaURL := e.Item.MediaURL()
		if mediaURL == "" {
			log.WithField("id", e.Item.Post.ID).Warn("Item has no attachment, skipping")
			continue
		}
		job := asset.Job{
			ID:       e.Item.Post.ID,
			AuthorID: e.Item.Author(),
			URL:      mediaURL,
			Dest:     destDir,
			Metadata: e.Item.Snapshot(),
			Label:    fmt.Sprintf("#%d", e.Counter),
		}
		if err := pool.Submit(job); err != nil {
			submitErr = err
			break
		}
	}

	pool.Stop()
	wg.Wait()
	return summary, submitErr
}
