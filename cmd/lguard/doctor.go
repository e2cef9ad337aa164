package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/xattr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/uocradio/libguard/internal/index"
	"github.com/uocradio/libguard/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [library_path]",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `doctor runs the checks lguard needs to operate correctly on this
host: extended-attribute support for the verification cache,
junkyard and index-database writability, and SQLite accessibility. It does
not mutate the library.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	failed  bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	libraryPath := "."
	if len(args) == 1 {
		libraryPath = args[0]
	}

	util.BannerStart("lguard doctor")

	var results []checkResult
	results = append(results, checkLibraryPath(libraryPath))
	results = append(results, checkXattrSupport(libraryPath))
	results = append(results, checkJunkyard(viper.GetString("junkyard")))
	results = append(results, checkIndex(viper.GetString("db")))

	failed := false
	for _, r := range results {
		switch {
		case r.failed:
			failed = true
			util.ErrorLog("%-24s %s", r.name, r.message)
		case r.warning:
			util.WarnLog("%-24s %s", r.name, r.message)
		default:
			util.SuccessLog("%-24s %s", r.name, r.message)
		}
	}

	if failed {
		util.BannerWarn("doctor found problems that will block a real audit run")
		os.Exit(1)
	}
	util.BannerFinish("doctor: environment looks healthy")
	return nil
}

func checkLibraryPath(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{"library path", err.Error(), true, false}
	}
	if !info.IsDir() {
		return checkResult{"library path", fmt.Sprintf("%s is not a directory", path), true, false}
	}
	return checkResult{"library path", fmt.Sprintf("%s exists", path), false, false}
}

// checkXattrSupport verifies the filesystem under path honors user.*
// extended attributes, without which the verification cache
// degrades to "always needs check" on every run.
func checkXattrSupport(path string) checkResult {
	probe := filepath.Join(path, ".lguard-xattr-probe")
	f, err := os.Create(probe)
	if err != nil {
		return checkResult{"xattr support", fmt.Sprintf("cannot create probe file: %v", err), false, true}
	}
	f.Close()
	defer os.Remove(probe)

	if err := xattr.Set(probe, "user.lguard_doctor_probe", []byte("1")); err != nil {
		return checkResult{"xattr support", fmt.Sprintf("user.* xattrs unsupported on %s: %v (verification cache will be a no-op)", path, err), false, true}
	}
	return checkResult{"xattr support", "user.* extended attributes supported", false, false}
}

func checkJunkyard(path string) checkResult {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return checkResult{"junkyard", fmt.Sprintf("cannot create %s: %v", path, err), true, false}
	}
	probe := filepath.Join(path, ".lguard-write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return checkResult{"junkyard", fmt.Sprintf("%s is not writable: %v", path, err), true, false}
	}
	os.Remove(probe)
	return checkResult{"junkyard", fmt.Sprintf("%s is writable", path), false, false}
}

func checkIndex(path string) checkResult {
	idx, err := index.Open(path)
	if err != nil {
		return checkResult{"index database", fmt.Sprintf("cannot open %s: %v", path, err), true, false}
	}
	defer idx.Close()
	return checkResult{"index database", fmt.Sprintf("%s opened, schema applied", path), false, false}
}
