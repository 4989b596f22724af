package usecases

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abelzeko/radar-loop/internal/entities"
	"github.com/abelzeko/radar-loop/internal/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var kst = time.FixedZone("KST", 9*60*60)

type memoryPrefs struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryPrefs(values map[string]string) *memoryPrefs {
	if values == nil {
		values = map[string]string{}
	}
	return &memoryPrefs{values: values}
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

func (m *memoryPrefs) value(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

type fixedTime struct {
	t     time.Time
	err   error
	calls int
}

func (f *fixedTime) Now(ctx context.Context) (time.Time, error) {
	f.calls++
	return f.t, f.err
}

type channelPreloader struct {
	loads chan entities.Timeline
}

func (p *channelPreloader) Preload(ctx context.Context, frames entities.Timeline) int {
	p.loads <- frames
	return len(frames)
}

type harness struct {
	uc        *RadarUseCase
	clock     *playback.ManualClock
	prefs     *memoryPrefs
	times     *fixedTime
	preloader *channelPreloader
	local     time.Time
}

func newHarness(t *testing.T, stored map[string]string) *harness {
	t.Helper()
	h := &harness{
		clock:     playback.NewManualClock(),
		prefs:     newMemoryPrefs(stored),
		times:     &fixedTime{t: time.Date(2024, 1, 1, 0, 7, 0, 0, kst)},
		preloader: &channelPreloader{loads: make(chan entities.Timeline, 16)},
		local:     time.Date(2023, 12, 31, 15, 0, 0, 0, time.UTC),
	}
	scheduler := playback.NewScheduler(h.clock, nil, entities.DefaultPeriodMillis)
	h.uc = NewRadarUseCase(h.prefs, h.times, h.preloader, scheduler, kst)
	h.uc.now = func() time.Time { return h.local }
	return h
}

func (h *harness) nextPreload(t *testing.T) entities.Timeline {
	t.Helper()
	select {
	case frames := <-h.preloader.loads:
		return frames
	case <-time.After(time.Second):
		t.Fatal("timeline was not preloaded")
		return nil
	}
}

func TestStartWithDefaults(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.uc.Start(context.Background()))

	view := h.uc.Snapshot()
	assert.Equal(t, entities.DefaultRegion, view.Region.Key)
	assert.Len(t, view.Frames, 48)
	assert.True(t, view.State.Running)
	assert.Equal(t, 0, view.State.Cursor)
	assert.Equal(t, entities.DefaultPeriodMillis, view.State.PeriodMillis)
	assert.False(t, view.Fallback)
	assert.Equal(t, 1, h.clock.Active())

	newest, _ := view.Frames.Newest()
	assert.True(t, newest.Timestamp.Equal(time.Date(2024, 1, 1, 0, 5, 0, 0, kst)))
	assert.Equal(t, kst, newest.Timestamp.Location())
	assert.Len(t, h.nextPreload(t), 48)
}

func TestStartWithStoredPreferences(t *testing.T) {
	h := newHarness(t, map[string]string{
		entities.PrefRegion:     "jeju",
		entities.PrefCenter:     "1",
		entities.PrefWindVector: "1",
		entities.PrefSpeed:      "800",
	})
	require.NoError(t, h.uc.Start(context.Background()))

	view := h.uc.Snapshot()
	assert.Equal(t, "jeju", view.Region.Key)
	assert.True(t, view.Center)
	assert.True(t, view.WindVector)
	assert.Equal(t, 800, view.State.PeriodMillis)
	assert.Len(t, view.Frames, 24)

	current, ok := view.Current()
	require.True(t, ok)
	assert.Contains(t, current.Locator, "&center=1&wv=1&")
}

func TestStartWithUnknownStoredRegion(t *testing.T) {
	h := newHarness(t, map[string]string{entities.PrefRegion: "atlantis"})
	require.NoError(t, h.uc.Start(context.Background()))

	assert.Equal(t, entities.DefaultRegion, h.uc.Snapshot().Region.Key)
}

func TestStartFallsBackToLocalClock(t *testing.T) {
	h := newHarness(t, nil)
	h.times.err = errors.New("timeapi down")
	require.NoError(t, h.uc.Start(context.Background()))

	view := h.uc.Snapshot()
	assert.True(t, view.Fallback)
	newest, _ := view.Frames.Newest()
	// 15:00 UTC is midnight in KST
	assert.True(t, newest.Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, kst)), "got %v", newest.Timestamp)
}

func TestRebuildUsesClockOffset(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.uc.Start(context.Background()))
	h.nextPreload(t)

	h.local = h.local.Add(10 * time.Minute)
	require.NoError(t, h.uc.SelectRegion(context.Background(), "seoul"))

	assert.Equal(t, 1, h.times.calls)
	newest, _ := h.uc.Snapshot().Frames.Newest()
	assert.True(t, newest.Timestamp.Equal(time.Date(2024, 1, 1, 0, 15, 0, 0, kst)), "got %v", newest.Timestamp)
}

func TestSelectRegion(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.uc.Start(context.Background()))
	h.clock.Fire()
	h.clock.Fire()

	require.NoError(t, h.uc.SelectRegion(context.Background(), "eastAsia"))

	view := h.uc.Snapshot()
	assert.Equal(t, "eastAsia", view.Region.Key)
	assert.Equal(t, 0, view.State.Cursor)
	assert.Equal(t, 1, h.clock.Active())
	assert.Equal(t, "eastAsia", h.prefs.value(entities.PrefRegion))

	step := view.Frames[1].Timestamp.Sub(view.Frames[0].Timestamp)
	assert.Equal(t, 30*time.Minute, step)
}

func TestSelectUnknownRegionChangesNothing(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.uc.Start(context.Background()))
	h.clock.Fire()

	err := h.uc.SelectRegion(context.Background(), "busan")
	assert.True(t, errors.Is(err, ErrUnknownRegion))

	view := h.uc.Snapshot()
	assert.Equal(t, entities.DefaultRegion, view.Region.Key)
	assert.Equal(t, 1, view.State.Cursor)
	assert.Equal(t, 1, h.clock.Active())
	assert.Empty(t, h.prefs.value(entities.PrefRegion))
}

func TestToggleOverlays(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.uc.Start(context.Background()))

	require.NoError(t, h.uc.SetCenter(context.Background(), true))
	require.NoError(t, h.uc.SetWindVector(context.Background(), true))

	view := h.uc.Snapshot()
	for _, f := range view.Frames {
		assert.True(t, strings.Contains(f.Locator, "&center=1&wv=1&"))
	}
	assert.Equal(t, "1", h.prefs.value(entities.PrefCenter))
	assert.Equal(t, "1", h.prefs.value(entities.PrefWindVector))

	require.NoError(t, h.uc.SetCenter(context.Background(), false))
	assert.Equal(t, "0", h.prefs.value(entities.PrefCenter))
}

func TestSpeedSteps(t *testing.T) {
	h := newHarness(t, map[string]string{entities.PrefSpeed: "200"})
	require.NoError(t, h.uc.Start(context.Background()))

	assert.Equal(t, 100, h.uc.Faster())
	assert.Equal(t, 100, h.uc.Faster())
	assert.Equal(t, "100", h.prefs.value(entities.PrefSpeed))
	assert.Equal(t, 200, h.uc.Slower())
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, h.clock.Periods())

	assert.Equal(t, 2000, h.uc.SetPeriod(9000))
	assert.Equal(t, 2000, h.uc.Slower())
}

func TestTogglePlay(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.uc.Start(context.Background()))

	running, err := h.uc.TogglePlay()
	require.NoError(t, err)
	assert.False(t, running)
	assert.Equal(t, 0, h.clock.Active())

	require.NoError(t, h.uc.SelectRegion(context.Background(), "honam"))
	assert.False(t, h.uc.Snapshot().State.Running)
	assert.Equal(t, 0, h.clock.Active())

	running, err = h.uc.TogglePlay()
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, 1, h.clock.Active())
}

func TestSeekAndRefresh(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.uc.Start(context.Background()))

	require.NoError(t, h.uc.Seek(10))
	assert.Equal(t, 10, h.uc.Snapshot().State.Cursor)
	assert.Error(t, h.uc.Seek(48))

	h.times.t = h.times.t.Add(5 * time.Minute)
	require.NoError(t, h.uc.Refresh(context.Background()))

	view := h.uc.Snapshot()
	assert.Equal(t, 0, view.State.Cursor)
	assert.Equal(t, 2, h.times.calls)
	newest, _ := view.Frames.Newest()
	assert.True(t, newest.Timestamp.Equal(time.Date(2024, 1, 1, 0, 10, 0, 0, kst)), "got %v", newest.Timestamp)
}

// gatedTime blocks Now until released
type gatedTime struct {
	t        time.Time
	entered  chan struct{}
	released chan struct{}
}

func (g *gatedTime) Now(ctx context.Context) (time.Time, error) {
	g.entered <- struct{}{}
	<-g.released
	return g.t, nil
}

func TestSnapshotDoesNotWaitForTimeService(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.uc.Start(context.Background()))
	h.nextPreload(t)

	gate := &gatedTime{t: h.times.t.Add(5 * time.Minute), entered: make(chan struct{}), released: make(chan struct{})}
	h.uc.times = gate

	refreshed := make(chan error, 1)
	go func() { refreshed <- h.uc.Refresh(context.Background()) }()
	<-gate.entered

	snapshot := make(chan View, 1)
	go func() { snapshot <- h.uc.Snapshot() }()
	select {
	case view := <-snapshot:
		assert.Equal(t, entities.DefaultRegion, view.Region.Key)
	case <-time.After(time.Second):
		t.Fatal("Snapshot blocked while the time service was being queried")
	}

	close(gate.released)
	require.NoError(t, <-refreshed)
	newest, _ := h.uc.Snapshot().Frames.Newest()
	assert.True(t, newest.Timestamp.Equal(time.Date(2024, 1, 1, 0, 10, 0, 0, kst)), "got %v", newest.Timestamp)
}
