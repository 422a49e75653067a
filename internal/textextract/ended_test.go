package textextract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRecruitmentEnded(t *testing.T) {
	require.True(t, IsRecruitmentEnded("本事業の募集は終了しました"))
	require.True(t, IsRecruitmentEnded("受付は終了しました。上限500万円、締切は令和7年1月15日でした。"))
	require.True(t, IsRecruitmentEnded("令和6年度の募集を終了いたしました"))
	require.False(t, IsRecruitmentEnded("募集中です。お早めにご応募ください。"))
}
