package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdl-sync/internal/app"
	"cdl-sync/internal/cdl"
	"cdl-sync/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var verbose bool

// newApp reads the config and creates a CDLApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "patients", "files").
func newApp(operation string) (*app.CDLApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewCDLApp(cfg, operation, verbose)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "cdlsync",
	Short:        "Sync a research study from the clinical data lake",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Output Dir: %s\n", cfg.OutputDir)
		fmt.Println("Set identity.username, data_lake.organization_id and data_lake.study_id before syncing.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("# Configuration from %s\n\n", defaults.ConfigPath)
		m := &config.Manager{}
		return m.Write(os.Stdout, cfg.Redacted())
	},
}

// patients command
var patientsCmd = &cobra.Command{
	Use:   "patients",
	Short: "Download the study's patient roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("patients")
		if err != nil {
			return err
		}
		defer a.Close()

		roster, err := a.FetchRoster(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetching patients: %w", err)
		}

		fmt.Printf("Wrote %d patient(s) to %s\n", len(roster), a.OutputDir())
		return nil
	},
}

// metadata command
var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Download metadata for every roster patient",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("metadata")
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.SyncMetadata(cmd.Context())
		if summary != nil {
			fmt.Printf("Synced %d patient(s), %d already present\n", summary.Synced, summary.Skipped)
		}
		if err != nil {
			return fmt.Errorf("syncing metadata: %w", err)
		}
		return nil
	},
}

// files command
var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Download the files referenced by patient metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("files")
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.MaterializeFiles(cmd.Context())
		if summary != nil {
			printFiles(summary)
		}
		if err != nil {
			return fmt.Errorf("downloading files: %w", err)
		}
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run patients, metadata and files in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("sync")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Sync(cmd.Context())
		if report != nil {
			fmt.Printf("Patients: %d\n", report.Patients)
			if report.Metadata != nil {
				fmt.Printf("Metadata: %d synced, %d already present\n", report.Metadata.Synced, report.Metadata.Skipped)
			}
			if report.Files != nil {
				printFiles(report.Files)
			}
		}
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		return nil
	},
}

func printFiles(s *cdl.MaterializeSummary) {
	fmt.Printf("Files: %d downloaded, %d already present, %d ignored\n", s.Downloaded, s.Skipped, s.Ignored)
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No sync operations recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt != nil {
				duration = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-10s  %s  %-8s  %6d  %-10s  %s\n",
				r.ID,
				r.Operation,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Status,
				r.Items,
				duration,
				r.Parameters,
			)
		}
		return nil
	},
}

// cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached credentials",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached bearer token and storage credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("cache-clear")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ClearCache(); err != nil {
			return err
		}
		fmt.Println("Credential cache cleared.")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output on stderr")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	cacheCmd.AddCommand(cacheClearCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(patientsCmd)
	rootCmd.AddCommand(metadataCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of operations to show")
	rootCmd.AddCommand(cacheCmd)
}
