package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/config"
)

const detailHTML = `<html>
<head><title>ものづくり・商業・サービス生産性向上促進補助金 | 例示県公式サイト</title></head>
<body>
<header><nav>メニュー</nav></header>
<main>
<h1>ものづくり・商業・サービス生産性向上促進補助金</h1>
<p>中小企業の設備投資を支援する補助金です。補助上限額1,000万円、補助率は3分の2です。</p>
<p>申請期間: 令和7年4月1日から令和7年6月30日まで。公募中、交付申請可。</p>
</main>
<footer>Copyright 例示県</footer>
</body></html>`

func fixedNow() time.Time {
	return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
}

func TestExtractSubsidyDetailPage(t *testing.T) {
	e := NewSubsidyExtractor(zap.NewNop(), WithNowFunc(fixedNow))
	info, err := e.ExtractSubsidy(detailHTML, "https://example.go.jp/subsidy/detail/1", config.SiteProfile{})
	require.NoError(t, err)
	require.NotNil(t, info)

	require.Equal(t, "ものづくり・商業・サービス生産性向上促進補助金", info.Title, "site-name suffix is stripped")
	require.Equal(t, int64(10_000_000), info.MaxAmount)
	require.Equal(t, "2/3", info.SubsidyRate, "3分の2 inverts to two thirds")
	require.NotNil(t, info.Deadline)
	require.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), *info.Deadline)
	require.NotNil(t, info.StartDate)
	require.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), *info.StartDate)
	require.False(t, info.RecruitmentEnded)
	require.Equal(t, "https://example.go.jp/subsidy/detail/1", info.SourceURL)

	// title 30 + amount 20 + deadline 15 + rate 15 = 80; description is
	// under the length bonus threshold.
	require.Equal(t, 80, info.Confidence)
	require.NotContains(t, info.Description, "メニュー", "nav boilerplate is stripped")
}

func TestExtractSubsidyRejectsNonSubsidyPage(t *testing.T) {
	html := `<html><body><main><h1>例示県の観光案内</h1><p>観光スポットのご紹介です。</p></main></body></html>`
	e := NewSubsidyExtractor(zap.NewNop())
	info, err := e.ExtractSubsidy(html, "https://example.go.jp/tourism", config.SiteProfile{})
	require.NoError(t, err)
	require.Nil(t, info, "pages below the keyword gate yield no record")
}

func TestExtractSubsidySingleIndicatorIsNotEnough(t *testing.T) {
	html := `<html><body><main><p>補助金という言葉が一度だけ出てくるページ。</p></main></body></html>`
	e := NewSubsidyExtractor(zap.NewNop())
	info, err := e.ExtractSubsidy(html, "https://example.go.jp/blog", config.SiteProfile{})
	require.NoError(t, err)
	require.Nil(t, info)
}

func TestExtractSubsidyRecruitmentEnded(t *testing.T) {
	html := `<html><body><main><h1>小規模事業者持続化補助金の公募について</h1>
<p>本補助金の募集は終了しました。補助上限額50万円、交付は行いません。</p></main></body></html>`
	e := NewSubsidyExtractor(zap.NewNop(), WithNowFunc(fixedNow))
	info, err := e.ExtractSubsidy(html, "https://example.go.jp/closed", config.SiteProfile{})
	require.NoError(t, err)
	require.NotNil(t, info)
	require.True(t, info.RecruitmentEnded)
	require.Equal(t, int64(500_000), info.MaxAmount, "amounts are still reported on ended pages")
}

func TestExtractSubsidyProfileTitleSelector(t *testing.T) {
	html := `<html><head><title>短い</title></head><body>
<div class="subsidy-name">例示県中小企業デジタル化支援補助金</div>
<main><p>補助金の交付により公募をおこないます。補助率2分の1。</p></main>
</body></html>`
	profile := config.SiteProfile{TitleSelectors: []string{".subsidy-name"}}
	e := NewSubsidyExtractor(zap.NewNop(), WithNowFunc(fixedNow))
	info, err := e.ExtractSubsidy(html, "https://example.go.jp/digital", profile)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, "例示県中小企業デジタル化支援補助金", info.Title)
}

func TestExtractSubsidyTitleFallsBackToTitleTag(t *testing.T) {
	html := `<html><head><title>例示県創業支援補助金のご案内｜例示県</title></head><body>
<main><p>創業者向けの補助金です。助成率は定額、交付上限30万円。公募中。</p></main>
</body></html>`
	e := NewSubsidyExtractor(zap.NewNop(), WithNowFunc(fixedNow))
	info, err := e.ExtractSubsidy(html, "https://example.go.jp/startup", config.SiteProfile{})
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, "例示県創業支援補助金のご案内", info.Title)
}

func TestExtractSubsidyDescriptionTruncated(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "補助対象経費の詳細説明。"
	}
	html := `<html><body><main><h1>長文の補助金案内ページ</h1><p>補助金の公募、交付について。</p><p>` + long + `</p></main></body></html>`
	e := NewSubsidyExtractor(zap.NewNop(), WithNowFunc(fixedNow))
	info, err := e.ExtractSubsidy(html, "https://example.go.jp/long", config.SiteProfile{})
	require.NoError(t, err)
	require.NotNil(t, info)
	require.LessOrEqual(t, len([]rune(info.Description)), 1000)
}
