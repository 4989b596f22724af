package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abelzeko/radar-loop/internal/playback"
	"github.com/abelzeko/radar-loop/internal/usecases"
	"github.com/stretchr/testify/require"
)

var kst = time.FixedZone("KST", 9*60*60)

type memoryPrefs struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memoryPrefs) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryPrefs) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryPrefs) Close() error { return nil }

type fixedTime struct{ t time.Time }

func (f fixedTime) Now(ctx context.Context) (time.Time, error) { return f.t, nil }

// newTestUseCase starts a use case at 2024-01-01 00:07 KST on a manual clock
func newTestUseCase(t *testing.T, sink playback.Sink) (*usecases.RadarUseCase, *playback.ManualClock) {
	t.Helper()
	clock := playback.NewManualClock()
	scheduler := playback.NewScheduler(clock, sink, 500)
	prefs := &memoryPrefs{values: map[string]string{}}
	uc := usecases.NewRadarUseCase(prefs, fixedTime{t: time.Date(2024, 1, 1, 0, 7, 0, 0, kst)}, nil, scheduler, kst)
	require.NoError(t, uc.Start(context.Background()))
	return uc, clock
}
