package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.MaxDepth)
	require.Equal(t, 100, cfg.MaxPages)
	require.Equal(t, 2, cfg.Concurrency)
	require.Equal(t, time.Second, cfg.RequestDelay)
	require.Equal(t, HeadlessAuto, cfg.UseHeadless)
	require.True(t, cfg.RespectRobotsTxt)
	require.NotEmpty(t, cfg.UserAgent)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"negative depth", "crawler.max_depth", -1},
		{"zero pages", "crawler.max_pages", 0},
		{"zero delay", "crawler.request_delay", "0s"},
		{"zero concurrency", "crawler.concurrency", 0},
		{"empty user agent", "crawler.user_agent", ""},
		{"bad headless mode", "crawler.use_headless", "sometimes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			require.Error(t, err)
		})
	}
}

func TestLoadTargets(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("targets", []map[string]any{
		{"name": "tokyo", "urls": []string{"https://www.shigotozaidan.or.jp/subsidy/"}},
		{"name": "meti", "urls": []string{"https://www.meti.go.jp/information/publicoffer/"}},
	})

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Len(t, cfg.Targets, 2)

	tgt, ok := cfg.TargetByName("meti")
	require.True(t, ok)
	require.Equal(t, []string{"https://www.meti.go.jp/information/publicoffer/"}, tgt.URLs)

	_, ok = cfg.TargetByName("osaka")
	require.False(t, ok)
}

func TestProfileFor(t *testing.T) {
	cfg := Config{Profiles: []SiteProfile{
		{Domain: "pref.tokyo.lg.jp", DetailLinkSelectors: []string{".subsidy-item a"}},
	}}

	p, ok := cfg.ProfileFor("www.pref.tokyo.lg.jp")
	require.True(t, ok)
	require.Equal(t, []string{".subsidy-item a"}, p.DetailLinkSelectors)

	_, ok = cfg.ProfileFor("example.go.jp")
	require.False(t, ok)
}
