package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/config"
	"github.com/hojonavi/hojokin-harvester/internal/models"
)

func fixedNow() time.Time {
	return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		MaxDepth:         1,
		MaxPages:         10,
		RequestDelay:     time.Millisecond,
		Concurrency:      2,
		Timeout:          5 * time.Second,
		MaxRetries:       1,
		RetryDelay:       10 * time.Millisecond,
		StayInDomain:     true,
		UseHeadless:      config.HeadlessNever,
		RespectRobotsTxt: false,
		UserAgent:        "harvester-test",
		CacheSize:        100,
		CacheTTL:         time.Hour,
		MaxLinksPerPage:  100,
	}
}

const listPage = `<html><head><title>補助金一覧 | 例示県</title></head><body>
<main>
<h1>補助金・助成金の公募一覧</h1>
<ul>
<li><a href="/subsidy/1">ものづくり補助金の詳細</a></li>
<li><a href="/subsidy/2">持続化補助金の詳細</a></li>
<li><a href="/subsidy/3">IT導入補助金の詳細</a></li>
</ul>
<nav class="pagination"><a href="/list?page=2">次へ</a></nav>
</main></body></html>`

func detailPage(n int) string {
	return fmt.Sprintf(`<html><head><title>補助金%d | 例示県</title></head><body>
<main>
<h1>例示県テスト補助金第%d号</h1>
<p>中小企業向けの補助金です。補助上限額%d00万円、補助率は3分の2。</p>
<p>申請期間: 令和7年4月1日から令和7年12月31日まで。公募要領により交付します。</p>
</main></body></html>`, n, n, n)
}

func newTestServer(t *testing.T, visits *sync.Map) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	record := func(next func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			visits.Store(r.URL.String(), true)
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			next(w, r)
		}
	}
	mux.HandleFunc("/list", record(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listPage)
	}))
	for i := 1; i <= 3; i++ {
		n := i
		mux.HandleFunc(fmt.Sprintf("/subsidy/%d", n), record(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, detailPage(n))
		}))
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlEndToEnd(t *testing.T) {
	var visits sync.Map
	srv := newTestServer(t, &visits)

	eng, err := New(testConfig(t), zap.NewNop(), WithNowFunc(fixedNow))
	require.NoError(t, err)

	var mu sync.Mutex
	var found []models.ScrapedSubsidy
	eng.AddListener(func(ev Event) {
		if ev.Type == EventSubsidyFound {
			mu.Lock()
			found = append(found, *ev.Subsidy)
			mu.Unlock()
		}
	})

	res, err := eng.Crawl(context.Background(), []string{srv.URL + "/list"}, "e2e")
	require.NoError(t, err)

	require.Equal(t, 4, res.Stats.VisitedURLs, "listing plus three detail pages")
	_, pagedVisited := visits.Load("/list?page=2")
	require.False(t, pagedVisited, "pagination target exceeds the depth budget")

	require.Len(t, res.Subsidies, 3)
	require.Equal(t, 3, res.Stats.SubsidiesFound)
	require.Empty(t, res.Errors)

	byTitle := make(map[string]models.ScrapedSubsidy)
	for _, s := range res.Subsidies {
		byTitle[s.Title] = s
	}
	first, ok := byTitle["例示県テスト補助金第1号"]
	require.True(t, ok)
	require.Equal(t, int64(1_000_000), first.MaxAmount)
	require.Equal(t, "2/3", first.SubsidyRate)
	require.True(t, first.Active)
	require.NotEmpty(t, first.SourceID)

	mu.Lock()
	require.Len(t, found, 3, "every record is announced to listeners")
	mu.Unlock()
}

func TestCrawlRejectedWhileRunning(t *testing.T) {
	var visits sync.Map
	srv := newTestServer(t, &visits)

	eng, err := New(testConfig(t), zap.NewNop(), WithNowFunc(fixedNow))
	require.NoError(t, err)

	var nested error
	var once sync.Once
	eng.AddListener(func(ev Event) {
		if ev.Type == EventPageVisited {
			once.Do(func() {
				_, nested = eng.Crawl(context.Background(), []string{srv.URL + "/list"}, "")
			})
		}
	})

	_, err = eng.Crawl(context.Background(), []string{srv.URL + "/list"}, "")
	require.NoError(t, err)
	require.ErrorIs(t, nested, ErrAlreadyRunning)
}

func TestCrawlSurvivesPanickingListener(t *testing.T) {
	var visits sync.Map
	srv := newTestServer(t, &visits)

	eng, err := New(testConfig(t), zap.NewNop(), WithNowFunc(fixedNow))
	require.NoError(t, err)
	eng.AddListener(func(Event) { panic("buggy observer") })

	res, err := eng.Crawl(context.Background(), []string{srv.URL + "/list"}, "")
	require.NoError(t, err)
	require.Equal(t, 4, res.Stats.VisitedURLs)
}

func TestCrawlRespectsRobots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	var served bool
	mux.HandleFunc("/private/page", func(w http.ResponseWriter, r *http.Request) {
		served = true
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t)
	cfg.RespectRobotsTxt = true
	eng, err := New(cfg, zap.NewNop(), WithNowFunc(fixedNow))
	require.NoError(t, err)

	res, err := eng.Crawl(context.Background(), []string{srv.URL + "/private/page"}, "")
	require.NoError(t, err)
	require.Equal(t, 0, res.Stats.VisitedURLs)
	require.Equal(t, 1, res.Stats.SkippedURLs)
	require.False(t, served, "disallowed page must never be fetched")
}

func TestCrawlStaysInDomain(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("off-domain server must not be fetched")
	}))
	defer other.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><main><h1>補助金・助成金公募の一覧</h1>
<a href="%s/outside">外部の補助金詳細</a></main></body></html>`, other.URL)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	eng, err := New(testConfig(t), zap.NewNop(), WithNowFunc(fixedNow))
	require.NoError(t, err)

	res, err := eng.Crawl(context.Background(), []string{srv.URL + "/list"}, "")
	require.NoError(t, err)
	require.Equal(t, 1, res.Stats.VisitedURLs)
}

func TestCrawlPageBudget(t *testing.T) {
	var visits sync.Map
	srv := newTestServer(t, &visits)

	cfg := testConfig(t)
	cfg.MaxPages = 2
	eng, err := New(cfg, zap.NewNop(), WithNowFunc(fixedNow))
	require.NoError(t, err)

	res, err := eng.Crawl(context.Background(), []string{srv.URL + "/list"}, "")
	require.NoError(t, err)
	require.Equal(t, 2, res.Stats.VisitedURLs)
}

func TestResumeFromCheckpoint(t *testing.T) {
	var visits sync.Map
	srv := newTestServer(t, &visits)

	cfg := testConfig(t)
	cfg.CheckpointDir = t.TempDir()
	cfg.CheckpointInterval = time.Hour

	eng, err := New(cfg, zap.NewNop(), WithNowFunc(fixedNow))
	require.NoError(t, err)

	// First run spends a one-page budget, leaving the detail links queued
	// in the final checkpoint.
	cfg1 := cfg
	cfg1.MaxPages = 1
	require.NoError(t, eng.UpdateConfig(cfg1))
	res, err := eng.Crawl(context.Background(), []string{srv.URL + "/list"}, "partial")
	require.NoError(t, err)
	require.Equal(t, 1, res.Stats.VisitedURLs)

	cps, err := eng.Checkpoints().List()
	require.NoError(t, err)
	require.NotEmpty(t, cps)
	cp := cps[0]
	require.Equal(t, 1, cp.Results.Stats.VisitedURLs)
	require.NotEmpty(t, cp.State.QueuedItems)

	// Raise the budget and resume; the checkpoint's config snapshot is
	// patched the same way an operator would.
	cp.Config.MaxPages = 10
	require.NoError(t, eng.Checkpoints().Save(cp))

	resumed, err := eng.Resume(context.Background(), cp.ID)
	require.NoError(t, err)
	require.Equal(t, 4, resumed.Stats.VisitedURLs, "resume continues the same run")
	require.Len(t, resumed.Subsidies, 3)
}

func TestResumeRebuildsDerivedComponents(t *testing.T) {
	var visits sync.Map
	srv := newTestServer(t, &visits)

	cfg := testConfig(t)
	cfg.MaxPages = 1
	cfg.CheckpointDir = t.TempDir()
	cfg.CheckpointInterval = time.Hour

	eng, err := New(cfg, zap.NewNop(), WithNowFunc(fixedNow))
	require.NoError(t, err)

	_, err = eng.Crawl(context.Background(), []string{srv.URL + "/list"}, "partial")
	require.NoError(t, err)

	cps, err := eng.Checkpoints().List()
	require.NoError(t, err)
	require.NotEmpty(t, cps)
	cp := cps[0]

	// The snapshot carries different pacing; resuming must rebuild the
	// limiter and client from it, not keep the constructor-time ones.
	cp.Config.MaxPages = 10
	cp.Config.Concurrency = 3
	cp.Config.RequestDelay = 2 * time.Millisecond
	cp.Config.Timeout = 9 * time.Second
	require.NoError(t, eng.Checkpoints().Save(cp))

	before := eng.limiter
	resumed, err := eng.Resume(context.Background(), cp.ID)
	require.NoError(t, err)
	require.Equal(t, 4, resumed.Stats.VisitedURLs)
	require.NotSame(t, before, eng.limiter)
	require.Equal(t, 3, eng.cfg.Concurrency)
	require.Equal(t, 2*time.Millisecond, eng.cfg.RequestDelay)
	require.Equal(t, 9*time.Second, eng.httpClient.Timeout)
}

func TestResumeUnknownCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.CheckpointDir = t.TempDir()
	eng, err := New(cfg, zap.NewNop(), WithNowFunc(fixedNow))
	require.NoError(t, err)

	_, err = eng.Resume(context.Background(), "no-such-checkpoint")
	require.Error(t, err)
}

func TestUpdateConfigValidates(t *testing.T) {
	eng, err := New(testConfig(t), zap.NewNop(), WithNowFunc(fixedNow))
	require.NoError(t, err)

	bad := testConfig(t)
	bad.MaxPages = 0
	require.Error(t, eng.UpdateConfig(bad))
}
