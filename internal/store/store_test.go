package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hojonavi/hojokin-harvester/internal/models"
)

func TestUpsertSubsidiesInsertsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSubsidyStoreWithPool(mock, "subsidies", zap.NewNop())
	require.NoError(t, err)

	deadline := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	rec := models.ScrapedSubsidy{
		Source:      "example-pref",
		SourceID:    "detail-1",
		SourceURL:   "https://example.go.jp/subsidy/detail/1",
		Title:       "ものづくり補助金",
		Description: "設備投資を支援します。 Copyright 2025 例示県",
		MaxAmount:   10_000_000,
		SubsidyRate: "2/3",
		Deadline:    &deadline,
		TargetArea:  "例示県",
		Active:      true,
	}

	mock.ExpectExec("INSERT INTO subsidies").
		WithArgs(
			rec.Source,
			rec.SourceID,
			rec.SourceURL,
			rec.Title,
			"設備投資を支援します。",
			rec.MaxAmount,
			rec.SubsidyRate,
			rec.StartDate,
			rec.Deadline,
			rec.TargetArea,
			rec.Organization,
			rec.Active,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := store.UpsertSubsidies(context.Background(), []models.ScrapedSubsidy{rec})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSubsidiesRequiresNaturalKey(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSubsidyStoreWithPool(mock, "subsidies", zap.NewNop())
	require.NoError(t, err)

	_, err = store.UpsertSubsidies(context.Background(), []models.ScrapedSubsidy{
		{SourceURL: "https://example.go.jp/x", Title: "キーなし"},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkInactive(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSubsidyStoreWithPool(mock, "subsidies", zap.NewNop())
	require.NoError(t, err)

	seen := []string{"detail-1", "detail-2"}
	mock.ExpectExec("UPDATE subsidies SET active = false").
		WithArgs("example-pref", seen).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := store.MarkInactive(context.Background(), "example-pref", seen)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSubsidyStoreWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewSubsidyStoreWithPool(mock, "subsidies; drop table users", zap.NewNop())
	require.Error(t, err)
}

func TestCleanDescription(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"本文です。 ページの先頭へ戻る", "本文です。"},
		{"説明文 All Rights Reserved.", "説明文"},
		{"  余分な   空白  ", "余分な 空白"},
		{"このページに関するお問い合わせは総務課まで。残す本文。", "残す本文。"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, CleanDescription(tt.in))
	}
}
