package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/radar-loop/internal/app"
	"github.com/abelzeko/radar-loop/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "radar-bot",
		Short:        "Control the weather radar loop from Telegram",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	app.ConfigureLogging(verbose)
	log.Println("Starting Radar Bot...")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	telegramBot, err := a.NewBot()
	if err != nil {
		return err
	}

	if err := a.Start(ctx); err != nil {
		return err
	}

	telegramBot.Start(ctx)
	log.Println("Bot stopped")
	return nil
}
