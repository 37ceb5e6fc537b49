package model

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makehub/llm-gateway/common/config"
)

func setCacheHistoryWindow(t *testing.T, window int) {
	t.Helper()
	prev := config.CacheHistoryWindow
	config.CacheHistoryWindow = window
	t.Cleanup(func() { config.CacheHistoryWindow = prev })
}

func TestGetCacheHistoryHonorsConfiguredWindow(t *testing.T) {
	mock := newMockDB(t)
	setCacheHistoryWindow(t, 2)

	// Rows arrive newest first; the only cache hit sits outside the window.
	rows := sqlmock.NewRows([]string{"provider", "cached_tokens"}).
		AddRow("openai", 0).
		AddRow("openai", 0).
		AddRow("openai", 900)
	mock.ExpectQuery(`SELECT "provider","cached_tokens" FROM "metrics_samples"`).
		WillReturnRows(rows)

	history, err := GetCacheHistory(7, "gpt-4o", []string{"openai"})
	require.NoError(t, err)
	assert.False(t, history["openai"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCacheHistoryHitWithinWindow(t *testing.T) {
	mock := newMockDB(t)
	setCacheHistoryWindow(t, 2)

	rows := sqlmock.NewRows([]string{"provider", "cached_tokens"}).
		AddRow("openai", 0).
		AddRow("openai", 900).
		AddRow("azure", 0)
	mock.ExpectQuery(`SELECT "provider","cached_tokens" FROM "metrics_samples"`).
		WillReturnRows(rows)

	history, err := GetCacheHistory(7, "gpt-4o", []string{"openai", "azure"})
	require.NoError(t, err)
	assert.True(t, history["openai"])
	assert.False(t, history["azure"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
