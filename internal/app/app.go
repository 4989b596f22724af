// Package app wires the radar loop components shared by the commands
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/abelzeko/radar-loop/internal/api"
	"github.com/abelzeko/radar-loop/internal/config"
	"github.com/abelzeko/radar-loop/internal/entities"
	"github.com/abelzeko/radar-loop/internal/integration"
	"github.com/abelzeko/radar-loop/internal/integration/openai"
	"github.com/abelzeko/radar-loop/internal/playback"
	"github.com/abelzeko/radar-loop/internal/repository"
	"github.com/abelzeko/radar-loop/internal/timeline"
	"github.com/abelzeko/radar-loop/internal/usecases"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// ConfigureLogging sets up the process-wide logger
func ConfigureLogging(verbose bool) {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// logSink writes every displayed frame to the debug log
type logSink struct{}

func (logSink) ShowFrame(index int, frame entities.FrameDescriptor) {
	log.Debugf("Showing frame %d: %s", index, timeline.FormatDisplay(frame.Timestamp))
}

// App holds the running components of a radar loop
type App struct {
	Config  config.Config
	Repo    *repository.SQLitePreferenceRepository
	Loader  *integration.ImageLoader
	Hub     *api.FrameHub
	UseCase *usecases.RadarUseCase

	cron *cron.Cron
}

// New opens the preference store and builds the controller.
// Displayed frames go to the websocket hub and the debug log.
func New(cfg config.Config) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	repo, err := repository.NewSQLitePreferenceRepository(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}

	times := integration.NewTimeAPIClient(cfg.TimeAPIURL, loc, cfg.TimeSyncTimeout())
	loader := integration.NewImageLoader(cfg.PreloadWorkers)
	hub := api.NewFrameHub()
	scheduler := playback.NewScheduler(playback.SystemClock{}, playback.Sinks{hub, logSink{}}, entities.DefaultPeriodMillis)

	var preloader usecases.Preloader
	if cfg.Preload {
		preloader = loader
	}

	return &App{
		Config:  cfg,
		Repo:    repo,
		Loader:  loader,
		Hub:     hub,
		UseCase: usecases.NewRadarUseCase(repo, times, preloader, scheduler, loc),
		cron:    cron.New(cron.WithLocation(loc)),
	}, nil
}

// Start begins playback and schedules the periodic refresh
func (a *App) Start(ctx context.Context) error {
	if err := a.UseCase.Start(ctx); err != nil {
		return fmt.Errorf("failed to start radar loop: %w", err)
	}

	_, err := a.cron.AddFunc(a.Config.RefreshSchedule, func() {
		if err := a.UseCase.Refresh(ctx); err != nil {
			log.Printf("Scheduled refresh failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to set up refresh job: %w", err)
	}

	a.cron.Start()
	log.Printf("Refresh has been scheduled (%s)", a.Config.RefreshSchedule)
	return nil
}

// NewBot creates the Telegram front end, with natural-language support when an OpenAI key is set
func (a *App) NewBot() (*api.TelegramBot, error) {
	if a.Config.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	var intents openai.IntentService
	if a.Config.OpenAIAPIKey != "" {
		svc, err := openai.NewOpenAIService(a.Config.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI service: %w", err)
		}
		intents = svc
	} else {
		log.Println("OPENAI_API_KEY is not set, free-text messages will not be interpreted")
	}

	return api.NewTelegramBot(a.Config.TelegramBotToken, a.UseCase, intents)
}

// Close stops the refresh job, pauses playback and closes the preference store
func (a *App) Close() error {
	<-a.cron.Stop().Done()
	a.UseCase.Pause()
	return a.Repo.Close()
}
