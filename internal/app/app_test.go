package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/abelzeko/radar-loop/internal/config"
	"github.com/abelzeko/radar-loop/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppStartsWithTimeService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"year":2024,"month":6,"day":1,"hour":12,"minute":34,"seconds":0,"milliSeconds":0}`)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "radar.db")
	cfg.TimeAPIURL = server.URL
	cfg.Preload = false

	a, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	defer a.Close()

	view := a.UseCase.Snapshot()
	assert.Equal(t, entities.DefaultRegion, view.Region.Key)
	assert.Len(t, view.Frames, 48)
	assert.False(t, view.Fallback)

	require.NoError(t, a.UseCase.SelectRegion(context.Background(), "jeju"))
	value, ok, err := a.Repo.Get(entities.PrefRegion)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "jeju", value)
}

func TestAppRejectsBadSchedule(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "radar.db")
	cfg.TimeAPIURL = server.URL
	cfg.TimeSyncSeconds = 1
	cfg.Preload = false
	cfg.RefreshSchedule = "whenever"

	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Error(t, a.Start(context.Background()))
	assert.True(t, a.UseCase.Snapshot().Fallback)
}

func TestNewBotRequiresToken(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "radar.db")

	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.NewBot()
	assert.Error(t, err)
}
