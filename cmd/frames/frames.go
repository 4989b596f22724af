package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/abelzeko/radar-loop/internal/config"
	"github.com/abelzeko/radar-loop/internal/entities"
	"github.com/abelzeko/radar-loop/internal/integration"
	"github.com/abelzeko/radar-loop/internal/timeline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configPath string
	region     string
	center     bool
	windVector bool
	localClock bool
	urlsOnly   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "radar-frames",
		Short:        "Print the radar image timeline of a region",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	rootCmd.Flags().StringVarP(&region, "region", "r", entities.DefaultRegion, "Region key")
	rootCmd.Flags().BoolVar(&center, "center", false, "Include the center marker")
	rootCmd.Flags().BoolVar(&windVector, "wind", false, "Include wind vectors")
	rootCmd.Flags().BoolVar(&localClock, "local", false, "Use the local clock instead of the time service")
	rootCmd.Flags().BoolVar(&urlsOnly, "urls", false, "Print image URLs only")

	addRegionsCmd(rootCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, out, errOut io.Writer) error {
	profile, ok := entities.LookupRegion(region)
	if !ok {
		return fmt.Errorf("unknown region %q, run 'radar-frames regions' for the list", region)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	now := time.Now().In(loc)
	if !localClock {
		client := integration.NewTimeAPIClient(cfg.TimeAPIURL, loc, cfg.TimeSyncTimeout())
		if t, err := client.Now(ctx); err != nil {
			fmt.Fprintf(errOut, "time service unavailable, using local clock: %v\n", err)
		} else {
			now = t
		}
	}

	params := entities.Preferences{Center: center, WindVector: windVector}.LocatorParams()
	frames, err := timeline.Build(profile, now, params)
	if err != nil {
		return err
	}

	printTimeline(out, frames, urlsOnly)
	return nil
}

// printTimeline writes one line per frame, highlighting the newest one
func printTimeline(out io.Writer, frames entities.Timeline, urls bool) {
	newest := color.New(color.FgGreen, color.Bold)
	label := color.New(color.FgCyan)

	for i, f := range frames {
		if urls {
			fmt.Fprintln(out, f.Locator)
			continue
		}
		line := fmt.Sprintf("%2d  %s  %s", i+1, label.Sprint(timeline.FormatDisplay(f.Timestamp)), f.Locator)
		if i == len(frames)-1 {
			newest.Fprintln(out, line)
		} else {
			fmt.Fprintln(out, line)
		}
	}
}

// addRegionsCmd adds a 'regions' subcommand listing the region keys
func addRegionsCmd(rootCmd *cobra.Command) {
	regionsCmd := &cobra.Command{
		Use:   "regions",
		Short: "List the available regions",
		Run: func(cmd *cobra.Command, args []string) {
			for _, r := range entities.Regions() {
				cmd.Println(fmt.Sprintf("%-12s %s (%d frames, every %d min)", r.Key, r.Name, r.FrameCount, r.FrameIntervalMinutes))
			}
		},
	}

	rootCmd.AddCommand(regionsCmd)
}
