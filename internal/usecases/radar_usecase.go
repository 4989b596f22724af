// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abelzeko/radar-loop/internal/entities"
	"github.com/abelzeko/radar-loop/internal/playback"
	"github.com/abelzeko/radar-loop/internal/repository"
	"github.com/abelzeko/radar-loop/internal/timeline"
	log "github.com/sirupsen/logrus"
)

// ErrUnknownRegion is returned when a region key is not in the catalog
var ErrUnknownRegion = errors.New("unknown region")

// TimeSource returns the authoritative current time
type TimeSource interface {
	Now(ctx context.Context) (time.Time, error)
}

// Preloader fetches the images of a timeline ahead of display
type Preloader interface {
	Preload(ctx context.Context, frames entities.Timeline) int
}

// View is a read-only snapshot of the loop for user interfaces
type View struct {
	Region     entities.RegionProfile
	Center     bool
	WindVector bool
	State      entities.PlaybackState
	Frames     entities.Timeline
	SyncedAt   time.Time
	Fallback   bool
}

// Current returns the frame under the cursor
func (v View) Current() (entities.FrameDescriptor, bool) {
	if v.State.Cursor < 0 || v.State.Cursor >= len(v.Frames) {
		return entities.FrameDescriptor{}, false
	}
	return v.Frames[v.State.Cursor], true
}

// RadarUseCase owns the selected region, option flags and playback of the radar loop
type RadarUseCase struct {
	prefs     repository.PreferenceRepository
	times     TimeSource
	preloader Preloader
	scheduler *playback.Scheduler
	location  *time.Location
	now       func() time.Time

	// mu serializes rebuilds; scheduler state has its own lock
	mu       sync.Mutex
	region   entities.RegionProfile
	center   bool
	wind     bool
	offset   time.Duration
	syncedAt time.Time
	fallback bool
}

// NewRadarUseCase creates the radar loop controller. Times are reported in loc.
func NewRadarUseCase(prefs repository.PreferenceRepository, times TimeSource, preloader Preloader, scheduler *playback.Scheduler, loc *time.Location) *RadarUseCase {
	region, _ := entities.LookupRegion(entities.DefaultRegion)
	return &RadarUseCase{
		prefs:     prefs,
		times:     times,
		preloader: preloader,
		scheduler: scheduler,
		location:  loc,
		now:       time.Now,
		region:    region,
	}
}

// Start reads the stored preferences, synchronizes the clock and starts playback
func (uc *RadarUseCase) Start(ctx context.Context) error {
	log.Println("Starting radar loop...")

	prefs, err := repository.LoadPreferences(uc.prefs)
	if err != nil {
		log.Printf("Warning: failed to load preferences, using defaults: %v", err)
		prefs = entities.DefaultPreferences()
	}
	reading := uc.fetchTime(ctx)

	uc.mu.Lock()
	defer uc.mu.Unlock()

	region, ok := entities.LookupRegion(prefs.Region)
	if !ok {
		log.Printf("Warning: stored region %q is unknown, using %s", prefs.Region, entities.DefaultRegion)
		region, _ = entities.LookupRegion(entities.DefaultRegion)
	}
	uc.region = region
	uc.center = prefs.Center
	uc.wind = prefs.WindVector
	uc.scheduler.SetPeriod(prefs.PeriodMillis)

	uc.applySyncLocked(reading)
	return uc.rebuildLocked(ctx)
}

// Refresh synchronizes the clock again and rebuilds the timeline so new scans show up
func (uc *RadarUseCase) Refresh(ctx context.Context) error {
	log.Println("Refreshing radar timeline")
	reading := uc.fetchTime(ctx)

	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.applySyncLocked(reading)
	return uc.rebuildLocked(ctx)
}

// SelectRegion switches the loop to the region registered under key
func (uc *RadarUseCase) SelectRegion(ctx context.Context, key string) error {
	region, ok := entities.LookupRegion(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRegion, key)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	log.Printf("Selecting region %s", key)
	uc.region = region
	uc.persist(entities.PrefRegion, key)
	return uc.rebuildLocked(ctx)
}

// SetCenter toggles the center marker overlay
func (uc *RadarUseCase) SetCenter(ctx context.Context, enabled bool) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.center = enabled
	uc.persist(entities.PrefCenter, entities.FormatFlag(enabled))
	return uc.rebuildLocked(ctx)
}

// SetWindVector toggles the wind vector overlay
func (uc *RadarUseCase) SetWindVector(ctx context.Context, enabled bool) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.wind = enabled
	uc.persist(entities.PrefWindVector, entities.FormatFlag(enabled))
	return uc.rebuildLocked(ctx)
}

// SetPeriod changes the time each frame stays on screen and returns the effective value
func (uc *RadarUseCase) SetPeriod(ms int) int {
	effective := uc.scheduler.SetPeriod(ms)
	if err := repository.SavePeriod(uc.prefs, effective); err != nil {
		log.Printf("Error saving playback speed: %v", err)
	}
	return effective
}

// Faster shortens the frame period by one step
func (uc *RadarUseCase) Faster() int {
	return uc.SetPeriod(uc.scheduler.State().PeriodMillis - entities.PeriodStepMillis)
}

// Slower lengthens the frame period by one step
func (uc *RadarUseCase) Slower() int {
	return uc.SetPeriod(uc.scheduler.State().PeriodMillis + entities.PeriodStepMillis)
}

// Pause stops the loop on the current frame
func (uc *RadarUseCase) Pause() {
	uc.scheduler.Pause()
}

// Resume continues the loop from the current frame
func (uc *RadarUseCase) Resume() error {
	return uc.scheduler.Resume()
}

// TogglePlay pauses a running loop or resumes a stopped one and reports whether it runs now
func (uc *RadarUseCase) TogglePlay() (bool, error) {
	if uc.scheduler.State().Running {
		uc.scheduler.Pause()
		return false, nil
	}
	if err := uc.scheduler.Resume(); err != nil {
		return false, err
	}
	return true, nil
}

// Seek shows the frame at index
func (uc *RadarUseCase) Seek(index int) error {
	return uc.scheduler.Seek(index)
}

// Snapshot returns the current view of the loop
func (uc *RadarUseCase) Snapshot() View {
	uc.mu.Lock()
	view := View{
		Region:     uc.region,
		Center:     uc.center,
		WindVector: uc.wind,
		SyncedAt:   uc.syncedAt,
		Fallback:   uc.fallback,
	}
	uc.mu.Unlock()

	view.Frames = uc.scheduler.Timeline()
	view.State = uc.scheduler.State()
	return view
}

// Location returns the time zone frames are reported in
func (uc *RadarUseCase) Location() *time.Location {
	return uc.location
}

// referenceTime is the local clock corrected by the last synchronization
func (uc *RadarUseCase) referenceTime() time.Time {
	return uc.now().Add(uc.offset).In(uc.location)
}

// clockSync is one reading of the time service next to the local clock
type clockSync struct {
	local         time.Time
	authoritative time.Time
	err           error
}

// fetchTime queries the time service. It runs without uc.mu held since
// retries can take up to the configured sync timeout.
func (uc *RadarUseCase) fetchTime(ctx context.Context) clockSync {
	authoritative, err := uc.times.Now(ctx)
	return clockSync{local: uc.now(), authoritative: authoritative, err: err}
}

// applySyncLocked stores the offset between the time service and the local clock.
// When the time service was unavailable the local clock is used as is.
func (uc *RadarUseCase) applySyncLocked(s clockSync) {
	uc.syncedAt = s.local
	if s.err != nil {
		log.Printf("Warning: time service unavailable, falling back to local clock: %v", s.err)
		uc.offset = 0
		uc.fallback = true
		return
	}
	uc.offset = s.authoritative.Sub(s.local)
	uc.fallback = false
	log.Printf("Clock synchronized, offset %s", uc.offset)
}

// rebuildLocked cancels the running timer, builds a new timeline and hands it to the scheduler
func (uc *RadarUseCase) rebuildLocked(ctx context.Context) error {
	uc.scheduler.Suspend()

	params := entities.Preferences{Center: uc.center, WindVector: uc.wind}.LocatorParams()
	frames, err := timeline.Build(uc.region, uc.referenceTime(), params)
	if err != nil {
		_ = uc.scheduler.Retarget(nil)
		return fmt.Errorf("failed to build timeline for %s: %w", uc.region.Key, err)
	}

	if err := uc.scheduler.Retarget(frames); err != nil {
		return fmt.Errorf("failed to start playback for %s: %w", uc.region.Key, err)
	}

	newest, _ := frames.Newest()
	log.Printf("Built %d frames for %s, newest %s", len(frames), uc.region.Key, timeline.FormatDisplay(newest.Timestamp))

	if uc.preloader != nil {
		go uc.preloader.Preload(context.WithoutCancel(ctx), frames)
	}
	return nil
}

func (uc *RadarUseCase) persist(key, value string) {
	if err := uc.prefs.Set(key, value); err != nil {
		log.Printf("Error saving preference %s: %v", key, err)
	}
}
