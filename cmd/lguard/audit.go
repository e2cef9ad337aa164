package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/uocradio/libguard/internal/audio"
	"github.com/uocradio/libguard/internal/catalog"
	"github.com/uocradio/libguard/internal/errs"
	"github.com/uocradio/libguard/internal/index"
	"github.com/uocradio/libguard/internal/scheduler"
	"github.com/uocradio/libguard/internal/tree"
	"github.com/uocradio/libguard/internal/util"
)

// runAudit is the lguard root command's RunE: it wires every collaborator
// (analyzer, catalog, index, tagstore-backed AudioFile construction via
// internal/tree) into one Scheduler.Run call and turns the returned
// errs.Kind into a process exit code equal to the ErrorKind's ordinal on
// failure, 0 on success.
func runAudit(cmd *cobra.Command, args []string) error {
	libraryPath := "."
	if len(args) == 1 {
		libraryPath = args[0]
	}

	verboseCount, _ := cmd.Flags().GetCount("verbose")
	quiet := viper.GetBool("quiet")
	util.SetQuiet(quiet)
	if verboseCount > 0 {
		util.SetVerbose(true)
	}
	util.SetColors(util.IsTerminal(os.Stdout.Fd()))

	logPath := viper.GetString("log")
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", logPath, err)
	}
	defer logFile.Close()
	util.SetFileLog(logFile)

	junkyard := viper.GetString("junkyard")
	if err := os.MkdirAll(junkyard, 0o755); err != nil {
		return fmt.Errorf("create junkyard %s: %w", junkyard, err)
	}

	siblingPool := viper.GetInt("max-workers")
	if siblingPool <= 0 {
		siblingPool = scheduler.DefaultSiblingPool
	}
	if nasCfg, err := util.AutoTuneForPath(libraryPath, junkyard, nil, siblingPool); err == nil && nasCfg.IsNASMode {
		siblingPool = nasCfg.Concurrency
	}

	dbPath := viper.GetString("db")
	idx, err := index.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open index %s: %w", dbPath, err)
	}
	defer idx.Close()

	var releaseCatalog audio.ReleaseCatalog
	if viper.GetString("musicbrainz-lookup") == "enabled" {
		client := catalog.NewClient()
		defer client.Close()
		releaseCatalog = client
	}

	// No production AudioAnalyzer ships with this tool (decoding/probing is
	// out of scope). Wiring the test-only StubAnalyzer here would silently
	// report INVALID_FORMAT for every real file and quarantine the whole
	// library, so refuse to run unless the operator explicitly
	// acknowledges it with --allow-unconfigured-analyzer.
	if !viper.GetBool("allow-unconfigured-analyzer") {
		return fmt.Errorf("no AudioAnalyzer is configured: lguard ships no production decoder; " +
			"wire one (ffprobe/ffmpeg, GStreamer, or similar) into cmd/lguard, or pass " +
			"--allow-unconfigured-analyzer to run anyway with every file reporting INVALID_FORMAT")
	}

	sched := scheduler.New(scheduler.Config{
		Options: tree.Options{
			DryRun:     viper.GetBool("dry-run"),
			ForceCheck: viper.GetBool("force-check"),
		},
		Junkyard:    junkyard,
		SiblingPool: siblingPool,
		Analyzer:    audio.NewUnconfiguredAnalyzer(),
		Catalog:     releaseCatalog,
		Index:       idx,
		ShowBar:     !viper.GetBool("no-progress"),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			util.BannerWarn("signal received, finishing in-flight work and terminating")
			sched.Terminate()
		case <-done:
		}
	}()
	defer close(done)
	defer signal.Stop(sigCh)

	absPath, err := filepath.Abs(libraryPath)
	if err != nil {
		absPath = libraryPath
	}
	util.BannerStart("auditing %s", absPath)
	util.BannerWarn("running with --allow-unconfigured-analyzer: every file will report INVALID_FORMAT")
	start := time.Now()

	result := sched.Run(libraryPath)

	started := humanize.Time(start)
	if result == errs.OK {
		util.BannerFinish("audit of %s complete (started %s)", absPath, started)
	} else {
		util.BannerWarn("audit of %s finished with worst error %q (started %s)", absPath, result.String(), started)
	}

	os.Exit(result.Ordinal())
	return nil
}
