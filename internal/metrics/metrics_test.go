package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.go.jp/subsidy", "example.go.jp"},
		{"standard https", "https://Example.go.jp/subsidy", "example.go.jp"},
		{"no scheme", "example.go.jp/subsidy", "example.go.jp"},
		{"just host", "example.go.jp", "example.go.jp"},
		{"host with port", "example.go.jp:8080", "example.go.jp"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if harvestPagesTotal == nil || harvestQueueDepth == nil ||
		harvestCacheLookupsTotal == nil || harvestRateWaitSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObservePage("https://example.go.jp/list", "visited")
	if val := testutil.ToFloat64(harvestPagesTotal); val != 1 {
		t.Errorf("Expected harvestPagesTotal to be 1, got %f", val)
	}

	SetQueueDepth(42)
	if val := testutil.ToFloat64(harvestQueueDepth); val != 42 {
		t.Errorf("Expected harvestQueueDepth to be 42, got %f", val)
	}
}
