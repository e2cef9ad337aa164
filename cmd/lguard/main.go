// Command lguard audits and normalizes a music library on disk: it
// classifies every file, validates audio integrity and tags, reconciles
// per-directory consistency, computes replay-gain corrections, rearranges
// auxiliary content, quarantines failed trees into a junkyard, and records
// discovered albums in an index database.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/uocradio/libguard/internal/util"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "lguard [library_path]",
	Short:   "Audit and normalize a music library",
	Version: Version,
	Long: `lguard walks a music library rooted at library_path (default ".")
bottom-up, classifying every file, validating each audio file's integrity
and tags, reconciling per-directory consistency (track numbering, disc
cardinality, release identity), computing replay-gain corrections,
rearranging artwork/text/video into canonical sub-folders, and quarantining
failed trees into a junkyard so the rest of the library stays clean.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAudit,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./configs/libguard.yaml)")
	rootCmd.Flags().StringP("junkyard", "j", "./.junk", "quarantine directory for failed trees")
	rootCmd.Flags().StringP("log", "l", filepath.Join(os.TempDir(), "libguard.log"), "log file path")
	rootCmd.Flags().StringP("db", "d", filepath.Join(os.TempDir(), "libguard_index.db"), "index database path")
	rootCmd.Flags().BoolP("dry-run", "n", false, "log intended mutations without performing them")
	rootCmd.Flags().BoolP("force-check", "f", false, "ignore the verification cache; re-probe every file")
	rootCmd.Flags().IntP("max-workers", "w", 2, "sibling worker pool width")
	rootCmd.PersistentFlags().CountP("verbose", "v", "increase verbosity (repeatable)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.Flags().Bool("no-progress", false, "disable the progress bar")
	rootCmd.Flags().String("musicbrainz-lookup", "disabled", "best-effort ReleaseCatalog duration lookup: disabled|enabled")
	rootCmd.Flags().Bool("allow-unconfigured-analyzer", false, "run with no AudioAnalyzer wired; every file reports INVALID_FORMAT")

	for _, name := range []string{"junkyard", "log", "db", "dry-run", "force-check", "max-workers", "no-progress", "musicbrainz-lookup", "allow-unconfigured-analyzer"} {
		viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("libguard")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LGUARD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
