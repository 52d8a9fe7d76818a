// Command fallpaperd runs the self-hosted media-collection fallpaper
// daemon: it fetches images from configured sources on a schedule, filters
// them by device eligibility, and materializes them onto each eligible
// device's directory.
//
// Subcommand dispatch follows the teacher's
// cmd/flyio-image-manager/main.go: a bare flag.FlagSet per subcommand,
// switched on os.Args[1].
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fallpaper-daemon/fallpaper/daemon"
	"github.com/fallpaper-daemon/fallpaper/monitor"
)

var log = logrus.New()

var (
	runCmd     = flag.NewFlagSet("run", flag.ExitOnError)
	migrateCmd = flag.NewFlagSet("migrate", flag.ExitOnError)
	triggerCmd = flag.NewFlagSet("trigger", flag.ExitOnError)
	cancelCmd  = flag.NewFlagSet("cancel", flag.ExitOnError)
	monitorCmd = flag.NewFlagSet("monitor", flag.ExitOnError)
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		configPath, logLevel := parseCommonFlags(runCmd, os.Args[2:])
		if err := runDaemon(configPath, logLevel); err != nil {
			log.WithError(err).Fatal("daemon failed")
		}
	case "migrate":
		configPath, logLevel := parseCommonFlags(migrateCmd, os.Args[2:])
		if err := runMigrate(configPath, logLevel); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
	case "trigger":
		configPath, logLevel := parseCommonFlags(triggerCmd, os.Args[2:])
		args := triggerCmd.Args()
		if len(args) != 1 {
			fmt.Println("Usage: fallpaperd trigger [options] <source-id>")
			os.Exit(1)
		}
		if err := runTrigger(configPath, logLevel, args[0]); err != nil {
			log.WithError(err).Fatal("trigger failed")
		}
	case "cancel":
		configPath, logLevel := parseCommonFlags(cancelCmd, os.Args[2:])
		args := cancelCmd.Args()
		if len(args) != 1 {
			fmt.Println("Usage: fallpaperd cancel [options] <run-id>")
			os.Exit(1)
		}
		if err := runCancel(configPath, logLevel, args[0]); err != nil {
			log.WithError(err).Fatal("cancel failed")
		}
	case "monitor":
		configPath, logLevel := parseCommonFlags(monitorCmd, os.Args[2:])
		if err := runMonitor(configPath, logLevel); err != nil {
			log.WithError(err).Fatal("monitor failed")
		}
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("fallpaperd — self-hosted media-collection fallpaper daemon")
	fmt.Println()
	fmt.Println("Usage: fallpaperd <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Run the daemon: scheduler + run processor")
	fmt.Println("  migrate    Apply any pending database migrations and exit")
	fmt.Println("  trigger    Manually queue a run for a source")
	fmt.Println("  cancel     Cancel a pending run")
	fmt.Println("  monitor    Interactive TUI dashboard for live run tracking")
	fmt.Println()
	fmt.Println("Run 'fallpaperd <command> --help' for more information on a command.")
}

func parseCommonFlags(fs *flag.FlagSet, args []string) (configPath, logLevel string) {
	fs.StringVar(&configPath, "config", "", "Path to a KEY=value config file (optional)")
	fs.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.Parse(args)
	return configPath, logLevel
}

func setupLogger(level string) error {
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(lvl)
	return nil
}

func runDaemon(configPath, logLevel string) error {
	if err := setupLogger(logLevel); err != nil {
		return err
	}
	d, err := daemon.Build(configPath, log)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Run(context.Background())
}

// runMigrate builds the daemon (which applies migrations as a side effect
// of store.New) and exits immediately — a standalone entry point for
// deploy pipelines that want migrations applied before the daemon starts.
func runMigrate(configPath, logLevel string) error {
	if err := setupLogger(logLevel); err != nil {
		return err
	}
	d, err := daemon.Build(configPath, log)
	if err != nil {
		return err
	}
	defer d.Close()
	log.Info("migrations applied")
	return nil
}

func runTrigger(configPath, logLevel, sourceID string) error {
	if err := setupLogger(logLevel); err != nil {
		return err
	}
	d, err := daemon.Build(configPath, log)
	if err != nil {
		return err
	}
	defer d.Close()

	run, err := d.Admin.TriggerRun(context.Background(), sourceID)
	if err != nil {
		return err
	}
	log.WithField("run_id", run.ID).Info("run queued")
	return nil
}

func runCancel(configPath, logLevel, runID string) error {
	if err := setupLogger(logLevel); err != nil {
		return err
	}
	d, err := daemon.Build(configPath, log)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Admin.CancelRun(context.Background(), runID); err != nil {
		return err
	}
	log.WithField("run_id", runID).Info("run cancelled")
	return nil
}

func runMonitor(configPath, logLevel string) error {
	// Suppress log output to avoid mixing with the TUI, matching the
	// teacher's runMonitor.
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)

	d, err := daemon.Build(configPath, log)
	if err != nil {
		return err
	}
	defer d.Close()

	m := monitor.New(monitor.Config{Admin: d.Admin})
	return monitor.Run(m)
}
