// Package crawler orchestrates a polite, resumable deep crawl: the engine
// owns the queue, rate limiter, robots policy, response cache, checkpoint
// manager, renderers, and extractors for the lifetime of one run.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/cache"
	"github.com/hojonavi/hojokin-harvester/internal/checkpoint"
	"github.com/hojonavi/hojokin-harvester/internal/config"
	"github.com/hojonavi/hojokin-harvester/internal/extract"
	"github.com/hojonavi/hojokin-harvester/internal/metrics"
	"github.com/hojonavi/hojokin-harvester/internal/models"
	"github.com/hojonavi/hojokin-harvester/internal/queue"
	"github.com/hojonavi/hojokin-harvester/internal/ratelimit"
	"github.com/hojonavi/hojokin-harvester/internal/render"
	"github.com/hojonavi/hojokin-harvester/internal/robots"
)

// ErrAlreadyRunning is returned when Crawl or Resume is called on a busy
// engine. One engine runs one crawl at a time.
var ErrAlreadyRunning = errors.New("engine is already running")

// maxPDFsPerPage bounds inline PDF processing so a links-heavy page cannot
// stall the crawl on document downloads.
const maxPDFsPerPage = 3

// RecordStore persists extracted records. The engine only needs the upsert
// half of the store.
type RecordStore interface {
	UpsertSubsidies(ctx context.Context, records []models.ScrapedSubsidy) (int, error)
}

// Result is what a finished run hands back: everything extracted, the run
// counters, and every per-URL failure. Partial failure still returns all
// successfully extracted records.
type Result struct {
	Subsidies []models.ScrapedSubsidy
	Stats     models.CrawlStats
	Errors    []models.CrawlError
}

// Engine drives the crawl loop. Construct with New, run with Crawl or
// Resume, and Close when done with it.
type Engine struct {
	cfg    config.Config
	logger *zap.Logger

	queue           *queue.Queue
	limiter         *ratelimit.Limiter
	robots          *robots.Policy
	cache           *cache.Cache
	checkpoints     *checkpoint.Manager
	static          render.Renderer
	dynamic         render.Renderer
	staticInjected  bool
	dynamicInjected bool
	wantDynamic     func(html string) bool
	links           *extract.LinkExtractor
	subsidies       *extract.SubsidyExtractor
	pdfs            *extract.PDFExtractor
	store           RecordStore
	httpClient      *http.Client
	events          *broadcaster
	now             func() time.Time

	mu           sync.Mutex
	running      bool
	stats        models.CrawlStats
	results      []models.ScrapedSubsidy
	seen         map[string]bool
	seedHosts    map[string]bool
	errs         []models.CrawlError
	currentDepth int
}

// Option customizes engine construction, mostly to inject fakes in tests.
type Option func(*Engine)

// WithStaticRenderer replaces the colly-backed renderer. Injected renderers
// survive config changes; the engine never rebuilds them.
func WithStaticRenderer(r render.Renderer) Option {
	return func(e *Engine) {
		e.static = r
		e.staticInjected = true
	}
}

// WithDynamicRenderer replaces the headless-browser renderer. Injected
// renderers survive config changes; the engine never rebuilds them.
func WithDynamicRenderer(r render.Renderer) Option {
	return func(e *Engine) {
		e.dynamic = r
		e.dynamicInjected = true
	}
}

// WithDynamicDetector replaces the SPA heuristic.
func WithDynamicDetector(f func(html string) bool) Option {
	return func(e *Engine) { e.wantDynamic = f }
}

// WithRecordStore attaches a persistence collaborator. Without one (or with
// DryRun set) extracted records are only returned in the Result.
func WithRecordStore(s RecordStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New wires an engine from configuration. cfg must already be validated.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		queue:     queue.New(),
		robots:    robots.New(cfg.RespectRobotsTxt, cfg.UserAgent, logger),
		events:    newBroadcaster(logger),
		seen:      make(map[string]bool),
		seedHosts: make(map[string]bool),
		now:       time.Now,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	e.limiter = ratelimit.New(cfg.Concurrency, cfg.RequestDelay)
	var cacheOpts []cache.Option
	if cfg.CacheTTL > 0 {
		cacheOpts = append(cacheOpts, cache.WithDefaultTTL(cfg.CacheTTL))
	}
	e.cache = cache.New(cfg.CacheSize, cacheOpts...)
	if cfg.CachePath != "" {
		if err := e.cache.Load(cfg.CachePath); err != nil {
			logger.Warn("loading response cache", zap.Error(err))
		}
	}
	if cfg.CheckpointDir != "" {
		var cpOpts []checkpoint.Option
		if cfg.CheckpointInterval > 0 {
			cpOpts = append(cpOpts, checkpoint.WithSaveInterval(cfg.CheckpointInterval))
		}
		mgr, err := checkpoint.NewManager(cfg.CheckpointDir, logger, cpOpts...)
		if err != nil {
			return nil, fmt.Errorf("checkpoint manager: %w", err)
		}
		e.checkpoints = mgr
	}

	static, err := render.NewStaticRenderer(render.StaticConfig{
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("static renderer: %w", err)
	}
	e.static = static
	if cfg.UseHeadless != config.HeadlessNever {
		e.dynamic = render.NewDynamicRenderer(render.DynamicConfig{
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
		}, logger)
	}
	e.wantDynamic = render.NeedsDynamic
	e.links = extract.NewLinkExtractor(cfg.MaxLinksPerPage, logger)
	e.subsidies = extract.NewSubsidyExtractor(logger)
	e.pdfs = extract.NewPDFExtractor(logger)

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// AddListener registers a progress listener for all subsequent events.
func (e *Engine) AddListener(l Listener) {
	e.events.add(l)
}

// UpdateConfig replaces the run configuration. Rejected while a crawl is in
// progress.
func (e *Engine) UpdateConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}
	return e.applyConfig(context.Background(), cfg)
}

// applyConfig installs cfg and rebuilds every component derived from it, so
// concurrency, delays, timeouts, and the headless mode all take effect.
// Injected renderers are left alone.
func (e *Engine) applyConfig(ctx context.Context, cfg config.Config) error {
	e.cfg = cfg
	e.limiter = ratelimit.New(cfg.Concurrency, cfg.RequestDelay)
	e.robots = robots.New(cfg.RespectRobotsTxt, cfg.UserAgent, e.logger)
	e.httpClient = &http.Client{Timeout: cfg.Timeout}
	if !e.staticInjected {
		static, err := render.NewStaticRenderer(render.StaticConfig{
			UserAgent:  cfg.UserAgent,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, e.logger)
		if err != nil {
			return fmt.Errorf("static renderer: %w", err)
		}
		e.static = static
	}
	if !e.dynamicInjected {
		if e.dynamic != nil {
			if err := e.dynamic.Close(ctx); err != nil {
				e.logger.Warn("closing headless renderer", zap.Error(err))
			}
			e.dynamic = nil
		}
		if cfg.UseHeadless != config.HeadlessNever {
			e.dynamic = render.NewDynamicRenderer(render.DynamicConfig{
				UserAgent: cfg.UserAgent,
				Timeout:   cfg.Timeout,
			}, e.logger)
		}
	}
	return nil
}

// Stats returns a copy of the run counters.
func (e *Engine) Stats() models.CrawlStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// QueueLen reports the number of pending URLs.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Checkpoints exposes the checkpoint manager, nil when no checkpoint
// directory is configured.
func (e *Engine) Checkpoints() *checkpoint.Manager {
	return e.checkpoints
}

// Running reports whether a crawl is in progress.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Crawl runs a fresh crawl from the given entry URLs until the queue drains,
// the page budget is spent, or ctx is done. Context cancellation stops the
// crawl and returns partial results rather than an error.
func (e *Engine) Crawl(ctx context.Context, entryURLs []string, name string) (*Result, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()

	e.resetState()
	for _, raw := range entryURLs {
		e.noteSeedHost(raw)
		item := queue.Item{
			URL:      raw,
			Depth:    0,
			Priority: queue.PriorityDetail,
			PageType: queue.PageTypeList,
		}
		if !e.queue.Enqueue(item) {
			e.logger.Warn("entry url rejected", zap.String("url", raw))
		}
	}
	if name == "" {
		name = "crawl"
	}
	return e.run(ctx, name)
}

// Resume restores a checkpoint and continues its crawl. The checkpoint's
// config snapshot replaces the engine's current one.
func (e *Engine) Resume(ctx context.Context, checkpointID string) (*Result, error) {
	if e.checkpoints == nil {
		return nil, fmt.Errorf("no checkpoint directory configured")
	}
	cp, err := e.checkpoints.Load(checkpointID)
	if err != nil {
		return nil, err
	}

	if err := e.begin(); err != nil {
		return nil, err
	}
	defer e.end()

	e.resetState()
	if err := e.applyConfig(ctx, cp.Config); err != nil {
		return nil, err
	}
	e.queue.Import(queue.State{
		VisitedURLs: cp.State.VisitedURLs,
		QueuedItems: cp.State.QueuedItems,
	})
	e.mu.Lock()
	e.stats = cp.Results.Stats
	e.results = cp.Results.Subsidies
	e.errs = cp.Results.Errors
	e.currentDepth = cp.State.CurrentDepth
	for _, rec := range cp.Results.Subsidies {
		e.seen[rec.Source+":"+rec.SourceID] = true
	}
	e.mu.Unlock()
	for _, visited := range cp.State.VisitedURLs {
		e.noteSeedHost(visited)
	}
	for _, queued := range cp.State.QueuedItems {
		e.noteSeedHost(queued.URL)
	}

	e.logger.Info("resuming crawl",
		zap.String("checkpoint", checkpointID),
		zap.Int("pending", e.queue.Len()),
		zap.Int("visited", len(cp.State.VisitedURLs)))
	return e.run(ctx, cp.Name)
}

// Close releases renderer and cache resources. The engine must not be
// running.
func (e *Engine) Close(ctx context.Context) error {
	if e.Running() {
		return ErrAlreadyRunning
	}
	var firstErr error
	if e.cfg.CachePath != "" {
		if err := e.cache.Persist(e.cfg.CachePath); err != nil {
			firstErr = err
		}
	}
	if err := e.static.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if e.dynamic != nil {
		if err := e.dynamic.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}
	e.running = true
	return nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

func (e *Engine) resetState() {
	e.queue.Reset()
	e.mu.Lock()
	e.stats = models.CrawlStats{StartTime: e.now()}
	e.results = nil
	e.errs = nil
	e.seen = make(map[string]bool)
	e.seedHosts = make(map[string]bool)
	e.currentDepth = 0
	e.mu.Unlock()
}

// run is the crawl loop. It is serial per page: one processURL at a time,
// with the rate limiter pacing the network inside it.
func (e *Engine) run(ctx context.Context, name string) (*Result, error) {
	var cpID string
	if e.checkpoints != nil {
		cpID = e.checkpoints.StartAutoSave(e.snapshotCheckpoint, name)
		e.logger.Info("autosaving checkpoints", zap.String("id", cpID))
		defer e.checkpoints.StopAutoSave()
	}
	e.events.emit(Event{Type: EventCrawlStarted, Time: e.now()})

loop:
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("crawl stopped by context", zap.Error(ctx.Err()))
			break loop
		default:
		}
		if e.Stats().VisitedURLs >= e.cfg.MaxPages {
			e.logger.Info("page budget exhausted", zap.Int("max_pages", e.cfg.MaxPages))
			break
		}
		item, ok := e.queue.Dequeue()
		if !ok {
			break
		}
		metrics.SetQueueDepth(e.queue.Len())

		if err := e.processURL(ctx, item); err != nil {
			e.recordError(item.URL, err)
			if ctx.Err() == nil && e.queue.RequeueForRetry(item) {
				e.logger.Debug("requeued for retry",
					zap.String("url", item.URL),
					zap.Int("retries", item.RetryCount+1))
			}
		}
	}

	e.finalize(ctx, cpID, name)
	res := e.result()
	e.events.emit(Event{Type: EventCrawlFinished, Time: e.now()})
	return res, nil
}

func (e *Engine) finalize(ctx context.Context, cpID, cpName string) {
	e.mu.Lock()
	e.stats.EndTime = e.now()
	e.stats.DurationMs = e.stats.EndTime.Sub(e.stats.StartTime).Milliseconds()
	records := append([]models.ScrapedSubsidy(nil), e.results...)
	e.mu.Unlock()

	if e.checkpoints != nil && cpID != "" {
		cp := e.snapshotCheckpoint()
		cp.ID = cpID
		cp.Name = cpName
		if err := e.checkpoints.Save(cp); err != nil {
			e.logger.Warn("final checkpoint save failed", zap.Error(err))
		} else {
			metrics.ObserveCheckpoint()
		}
	}
	if e.cfg.CachePath != "" {
		if err := e.cache.Persist(e.cfg.CachePath); err != nil {
			e.logger.Warn("persisting response cache", zap.Error(err))
		}
	}
	if e.store != nil && !e.cfg.DryRun && len(records) > 0 {
		if n, err := e.store.UpsertSubsidies(ctx, records); err != nil {
			e.logger.Error("persisting subsidies", zap.Error(err), zap.Int("written", n))
		} else {
			e.logger.Info("persisted subsidies", zap.Int("count", n))
		}
	}
}

func (e *Engine) result() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &Result{
		Subsidies: append([]models.ScrapedSubsidy(nil), e.results...),
		Stats:     e.stats,
		Errors:    append([]models.CrawlError(nil), e.errs...),
	}
}

func (e *Engine) processURL(ctx context.Context, item queue.Item) error {
	pageURL := item.URL
	domain := hostOf(pageURL)

	if e.cfg.RespectRobotsTxt {
		if !e.robots.IsAllowed(ctx, pageURL) {
			e.queue.MarkVisited(pageURL)
			e.skip(pageURL, "robots")
			return nil
		}
		// The delay from robots.txt only ever raises the pace, never
		// lowers it.
		if d := e.robots.CrawlDelay(ctx, domain); d > 0 {
			e.limiter.SetCrawlDelay(domain, d)
		}
	}

	page, err := e.fetchPage(ctx, pageURL)
	if err != nil {
		return err
	}
	if page == nil {
		e.queue.MarkVisited(pageURL)
		e.skip(pageURL, "not renderable")
		return nil
	}

	e.queue.MarkVisited(pageURL)
	e.mu.Lock()
	e.stats.VisitedURLs++
	if item.Depth > e.currentDepth {
		e.currentDepth = item.Depth
	}
	e.mu.Unlock()
	metrics.ObservePage(pageURL, "visited")
	e.events.emit(Event{Type: EventPageVisited, URL: pageURL, Time: e.now()})

	profile, _ := e.cfg.ProfileFor(domain)
	e.extractSubsidy(page, profile)
	e.processPDFLinks(ctx, page)
	e.discoverLinks(page, item)
	return nil
}

// fetchPage serves from the response cache when possible and otherwise
// renders the page, statically first and headlessly when the mode and the
// SPA heuristic call for it. A nil page with nil error is a normal skip.
func (e *Engine) fetchPage(ctx context.Context, pageURL string) (*render.RenderedPage, error) {
	if entry, ok := e.cache.Get(pageURL); ok {
		metrics.ObserveCacheLookup(true)
		e.mu.Lock()
		e.stats.CacheHits++
		e.mu.Unlock()
		return &render.RenderedPage{
			HTML:        entry.HTML,
			URL:         entry.URL,
			Status:      entry.Status,
			ContentType: entry.ContentType,
		}, nil
	}
	metrics.ObserveCacheLookup(false)

	waitStart := e.now()
	if err := e.limiter.WaitForSlot(ctx, pageURL); err != nil {
		return nil, err
	}
	defer e.limiter.Release()
	metrics.ObserveRateWait(hostOf(pageURL), e.now().Sub(waitStart))
	metrics.IncInFlight()
	defer metrics.DecInFlight()

	var page *render.RenderedPage
	var err error
	renderer := "static"
	switch e.cfg.UseHeadless {
	case config.HeadlessAlways:
		renderer = "dynamic"
		page, err = e.dynamic.Render(ctx, pageURL)
	default:
		start := e.now()
		page, err = e.static.Render(ctx, pageURL)
		if err == nil && page != nil &&
			e.cfg.UseHeadless == config.HeadlessAuto &&
			e.dynamic != nil && e.wantDynamic(page.HTML) {
			metrics.ObserveRender("static", e.now().Sub(start))
			renderer = "dynamic"
			page, err = e.dynamic.Render(ctx, pageURL)
		}
	}
	if err != nil {
		return nil, err
	}
	if page != nil {
		metrics.ObserveRender(renderer, page.LoadTime)
		e.cache.Set(page.URL, page.HTML, page.Status, page.ContentType, 0)
	}
	return page, nil
}

func (e *Engine) extractSubsidy(page *render.RenderedPage, profile config.SiteProfile) {
	info, err := e.subsidies.ExtractSubsidy(page.HTML, page.URL, profile)
	if err != nil {
		e.logger.Debug("subsidy extraction failed", zap.String("url", page.URL), zap.Error(err))
		return
	}
	if info == nil {
		return
	}
	// Listing and index pages pass the keyword gate but carry no facts
	// worth persisting. A record needs at least one concrete field.
	if info.MaxAmount == 0 && info.Deadline == nil && info.SubsidyRate == "" && !info.RecruitmentEnded {
		return
	}
	e.appendRecord(info)
}

// processPDFLinks fetches keyword-boosted PDF documents linked from the page
// and runs extraction over them inline. PDFs never enter the queue; this is
// their only path into the result set.
func (e *Engine) processPDFLinks(ctx context.Context, page *render.RenderedPage) {
	pdfLinks, err := e.links.ExtractPDFLinks(page.HTML, page.URL)
	if err != nil {
		return
	}
	processed := 0
	for _, link := range pdfLinks {
		if processed >= maxPDFsPerPage {
			break
		}
		if link.Priority < queue.PriorityDetail {
			continue
		}
		if !e.domainAllowed(link.URL) {
			continue
		}
		processed++
		info, err := e.fetchAndExtractPDF(ctx, link.URL)
		if err != nil {
			e.logger.Debug("pdf extraction failed", zap.String("url", link.URL), zap.Error(err))
			continue
		}
		if info != nil {
			e.appendRecord(info)
		}
	}
}

func (e *Engine) fetchAndExtractPDF(ctx context.Context, pdfURL string) (*models.ExtractedInfo, error) {
	if err := e.limiter.WaitForSlot(ctx, pdfURL); err != nil {
		return nil, err
	}
	defer e.limiter.Release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching pdf %q: status %d", pdfURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, err
	}
	return e.pdfs.ExtractFromPDF(data, pdfURL)
}

// discoverLinks enqueues outbound links while the depth budget allows.
// Pagination links stay at the current depth but are only followed when the
// pager's detail links would still be within budget.
func (e *Engine) discoverLinks(page *render.RenderedPage, item queue.Item) {
	profile, _ := e.cfg.ProfileFor(hostOf(page.URL))

	if item.Depth < e.cfg.MaxDepth {
		links, err := e.links.ExtractLinks(page.HTML, page.URL, profile)
		if err != nil {
			e.logger.Debug("link extraction failed", zap.String("url", page.URL), zap.Error(err))
		} else {
			for _, link := range links {
				if !e.domainAllowed(link.URL) {
					continue
				}
				if e.queue.Enqueue(queue.Item{
					URL:       link.URL,
					Depth:     item.Depth + 1,
					Priority:  link.Priority,
					SourceURL: page.URL,
					PageType:  link.PageType,
				}) {
					e.mu.Lock()
					e.stats.TotalURLs++
					e.mu.Unlock()
				}
			}
		}
	}

	if item.Depth+1 < e.cfg.MaxDepth {
		pages, err := e.links.ExtractPaginationLinks(page.HTML, page.URL)
		if err != nil {
			return
		}
		for _, pageLink := range pages {
			if !e.domainAllowed(pageLink) {
				continue
			}
			if e.queue.Enqueue(queue.Item{
				URL:       pageLink,
				Depth:     item.Depth,
				Priority:  queue.PriorityListing,
				SourceURL: page.URL,
				PageType:  queue.PageTypeList,
			}) {
				e.mu.Lock()
				e.stats.TotalURLs++
				e.mu.Unlock()
			}
		}
	}
}

func (e *Engine) appendRecord(info *models.ExtractedInfo) {
	rec := e.toRecord(info)
	key := rec.Source + ":" + rec.SourceID

	e.mu.Lock()
	if e.seen[key] {
		e.mu.Unlock()
		return
	}
	e.seen[key] = true
	e.results = append(e.results, rec)
	e.stats.SubsidiesFound++
	e.mu.Unlock()

	metrics.ObserveSubsidy(rec.SourceURL)
	e.events.emit(Event{Type: EventSubsidyFound, URL: rec.SourceURL, Subsidy: &rec, Time: e.now()})
	e.logger.Info("subsidy found",
		zap.String("url", rec.SourceURL),
		zap.String("title", rec.Title),
		zap.Int64("max_amount", rec.MaxAmount))
}

// toRecord converts a transient extraction into a persistable record. The
// natural key is the source host plus a UUID derived from the normalized
// URL, stable across runs.
func (e *Engine) toRecord(info *models.ExtractedInfo) models.ScrapedSubsidy {
	normalized := info.SourceURL
	if n, err := queue.NormalizeURL(info.SourceURL); err == nil {
		normalized = n
	}
	host := hostOf(info.SourceURL)
	targetArea := info.TargetArea
	if targetArea == "" {
		targetArea = host
	}
	active := !info.RecruitmentEnded
	if info.Deadline != nil && info.Deadline.Before(e.now()) {
		active = false
	}
	return models.ScrapedSubsidy{
		Source:       host,
		SourceID:     uuid.NewSHA1(uuid.NameSpaceURL, []byte(normalized)).String(),
		SourceURL:    info.SourceURL,
		Title:        info.Title,
		Description:  info.Description,
		MaxAmount:    info.MaxAmount,
		SubsidyRate:  info.SubsidyRate,
		StartDate:    info.StartDate,
		Deadline:     info.Deadline,
		TargetArea:   targetArea,
		Organization: info.Organization,
		Active:       active,
	}
}

func (e *Engine) domainAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	name := strings.ToLower(u.Hostname())
	if len(e.cfg.AllowedDomains) > 0 {
		for _, d := range e.cfg.AllowedDomains {
			d = strings.ToLower(d)
			if name == d || strings.HasSuffix(name, "."+d) {
				return true
			}
		}
		return false
	}
	if !e.cfg.StayInDomain {
		return true
	}
	// Seeds define the allowed hosts when staying in domain: an exact
	// host match or a subdomain of a seed's hostname.
	e.mu.Lock()
	defer e.mu.Unlock()
	for seed := range e.seedHosts {
		if host == seed {
			return true
		}
		seedName, _, _ := strings.Cut(seed, ":")
		if strings.HasSuffix(name, "."+seedName) {
			return true
		}
	}
	return false
}

func (e *Engine) noteSeedHost(rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return
	}
	e.mu.Lock()
	e.seedHosts[strings.ToLower(u.Host)] = true
	e.mu.Unlock()
}

func (e *Engine) skip(pageURL, reason string) {
	e.mu.Lock()
	e.stats.SkippedURLs++
	e.mu.Unlock()
	metrics.ObserveSkip(reason)
	metrics.ObservePage(pageURL, "skipped")
	e.events.emit(Event{Type: EventPageSkipped, URL: pageURL, Reason: reason, Time: e.now()})
	e.logger.Debug("skipped url", zap.String("url", pageURL), zap.String("reason", reason))
}

func (e *Engine) recordError(pageURL string, err error) {
	e.mu.Lock()
	e.errs = append(e.errs, models.CrawlError{
		URL:       pageURL,
		Message:   err.Error(),
		Timestamp: e.now(),
	})
	e.mu.Unlock()
	metrics.ObserveError(pageURL)
	metrics.ObservePage(pageURL, "failed")
	e.events.emit(Event{Type: EventPageError, URL: pageURL, Reason: err.Error(), Time: e.now()})
	e.logger.Warn("page processing failed", zap.String("url", pageURL), zap.Error(err))
}

// snapshotCheckpoint assembles the stop-the-world snapshot handed to the
// checkpoint manager.
func (e *Engine) snapshotCheckpoint() *checkpoint.Checkpoint {
	state := e.queue.Export()
	e.mu.Lock()
	defer e.mu.Unlock()
	return &checkpoint.Checkpoint{
		Config: e.cfg,
		State: checkpoint.State{
			VisitedURLs:  state.VisitedURLs,
			QueuedItems:  state.QueuedItems,
			CurrentDepth: e.currentDepth,
		},
		Results: checkpoint.Results{
			Subsidies: append([]models.ScrapedSubsidy(nil), e.results...),
			Stats:     e.stats,
			Errors:    append([]models.CrawlError(nil), e.errs...),
		},
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
