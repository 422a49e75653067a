package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNeedsDynamic(t *testing.T) {
	longText := strings.Repeat("都道府県の補助金制度をまとめた一覧ページです。", 30)

	tests := []struct {
		name string
		html string
		want bool
	}{
		{
			name: "plain server rendered page",
			html: "<html><body><main>" + longText + "</main></body></html>",
			want: false,
		},
		{
			name: "next.js payload",
			html: `<html><body><script id="__NEXT_DATA__" type="application/json">{}</script></body></html>`,
			want: true,
		},
		{
			name: "nuxt bootstrap",
			html: `<html><body><script>window.__NUXT__={}</script></body></html>`,
			want: true,
		},
		{
			name: "react root marker",
			html: `<html><body><div data-reactroot=""></div></body></html>`,
			want: true,
		},
		{
			name: "angular version attribute",
			html: `<html><body><app-root ng-version="17.0.1"></app-root></body></html>`,
			want: true,
		},
		{
			name: "noscript please-enable-javascript",
			html: `<html><body><noscript>JavaScriptを有効にしてください</noscript>` + longText + `</body></html>`,
			want: true,
		},
		{
			name: "script heavy shell with no visible text",
			html: `<html><body><div id="app"></div><script src="/bundle.js"></script></body></html>`,
			want: true,
		},
		{
			name: "scripts but plenty of visible text",
			html: `<html><body><script src="/analytics.js"></script><main>` + longText + `</main></body></html>`,
			want: false,
		},
		{
			name: "short static page without scripts",
			html: `<html><body><p>準備中</p></body></html>`,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NeedsDynamic(tt.html))
		})
	}
}
