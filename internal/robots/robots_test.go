package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDisabledPolicyAllowsEverything(t *testing.T) {
	p := New(false, "harvester", zap.NewNop())
	require.True(t, p.IsAllowed(context.Background(), "https://example.go.jp/anything"))
}

func TestLongestMatchWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /admin\nAllow: /admin/public\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(true, "harvester", zap.NewNop())
	ctx := context.Background()

	require.True(t, p.IsAllowed(ctx, srv.URL+"/admin/public/page"),
		"longer Allow must beat shorter Disallow")
	require.False(t, p.IsAllowed(ctx, srv.URL+"/admin/private"))
	require.True(t, p.IsAllowed(ctx, srv.URL+"/other"))
}

func TestUserAgentGroupSelection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: harvester\nDisallow: /private\n\nUser-agent: *\nDisallow: /\n")
	}))
	defer srv.Close()

	p := New(true, "harvester", zap.NewNop())
	ctx := context.Background()

	// The specific group applies, not the catch-all deny.
	require.True(t, p.IsAllowed(ctx, srv.URL+"/open"))
	require.False(t, p.IsAllowed(ctx, srv.URL+"/private/x"))
}

func TestFailOpenOnFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	srv.Close() // connection refused from here on

	p := New(true, "harvester", zap.NewNop())
	require.True(t, p.IsAllowed(context.Background(), srv.URL+"/page"))
}

func TestMissingRobotsIsPermissive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := New(true, "harvester", zap.NewNop())
	require.True(t, p.IsAllowed(context.Background(), srv.URL+"/page"))
}

func TestCrawlDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nCrawl-delay: 2\nDisallow: /none\n")
	}))
	defer srv.Close()

	p := New(true, "harvester", zap.NewNop())
	host := srv.Listener.Addr().String()

	// temoto parses Crawl-delay seconds into a duration. The test server has
	// no TLS, so prime the cache through IsAllowed first.
	require.True(t, p.IsAllowed(context.Background(), srv.URL+"/page"))
	require.Equal(t, 2*time.Second, p.CrawlDelay(context.Background(), host))
}

func TestConcurrentColdQueriesFetchOnce(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fetches.Add(1)
			time.Sleep(30 * time.Millisecond)
			fmt.Fprint(w, "User-agent: *\nDisallow:\n")
		}
	}))
	defer srv.Close()

	p := New(true, "harvester", zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.IsAllowed(context.Background(), fmt.Sprintf("%s/page/%d", srv.URL, n))
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), fetches.Load(),
		"simultaneous checks against a cold domain must trigger exactly one fetch")
}

func TestTTLExpiryRefetches(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		fmt.Fprint(w, "User-agent: *\nDisallow:\n")
	}))
	defer srv.Close()

	now := time.Now()
	p := New(true, "harvester", zap.NewNop(),
		WithTTL(time.Minute),
		WithNowFunc(func() time.Time { return now }),
	)
	ctx := context.Background()

	p.IsAllowed(ctx, srv.URL+"/a")
	p.IsAllowed(ctx, srv.URL+"/b")
	require.Equal(t, int32(1), fetches.Load())

	now = now.Add(2 * time.Minute)
	p.IsAllowed(ctx, srv.URL+"/c")
	require.Equal(t, int32(2), fetches.Load())
}
