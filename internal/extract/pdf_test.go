package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtractFromPDFRejectsEmptyInput(t *testing.T) {
	e := NewPDFExtractor(zap.NewNop())
	info, err := e.ExtractFromPDF(nil, "https://example.go.jp/doc.pdf")
	require.Error(t, err)
	require.Nil(t, info)
}

func TestExtractFromPDFRejectsMalformedInput(t *testing.T) {
	e := NewPDFExtractor(zap.NewNop())
	info, err := e.ExtractFromPDF([]byte("this is not a pdf document"), "https://example.go.jp/doc.pdf")
	require.Error(t, err)
	require.Nil(t, info)
}

func TestExtractFromPDFRejectsOversizedInput(t *testing.T) {
	e := NewPDFExtractor(zap.NewNop())
	info, err := e.ExtractFromPDF(make([]byte, maxPDFBytes+1), "https://example.go.jp/doc.pdf")
	require.Error(t, err)
	require.Nil(t, info)
}

func TestPDFTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "first acceptable line wins",
			raw:  "1\n令和7年度ものづくり補助金公募要領\n本要領は申請手続を定める。",
			want: "令和7年度ものづくり補助金公募要領",
		},
		{
			name: "overlong single run falls back to first field",
			raw:  "事業再構築補助金の概要 " + strings.Repeat("補助対象経費の説明。", 30),
			want: "事業再構築補助金の概要",
		},
		{
			name: "nothing acceptable",
			raw:  "概要\nppp",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, pdfTitle(tt.raw))
		})
	}
}
