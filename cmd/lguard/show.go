package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/uocradio/libguard/internal/index"
	"github.com/uocradio/libguard/internal/util"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "List everything the index store has recorded",
	Long: `show prints every release group and album the index database has
on record, one path each, and then runs the same duplicate-location
integrity check AddAlbum itself gates writes on — since a conflicting
second location is never stored, this should normally report nothing;
anything it does find means the table was written to outside of
AddAlbum's own write-time gate.`,
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	dbPath := viper.GetString("db")
	idx, err := index.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open index %s: %w", dbPath, err)
	}
	defer idx.Close()

	releaseGroups, err := idx.AllReleaseGroups()
	if err != nil {
		return fmt.Errorf("list release groups: %w", err)
	}
	albums, err := idx.AllAlbums()
	if err != nil {
		return fmt.Errorf("list albums: %w", err)
	}

	if len(releaseGroups) == 0 && len(albums) == 0 {
		util.SuccessLog("index %s is empty", dbPath)
	}
	for _, e := range releaseGroups {
		fmt.Printf("release group %-36s %s\n", e.ID, e.Path)
	}
	for _, e := range albums {
		fmt.Printf("album         %-36s %s\n", e.ID, e.Path)
	}

	rgDups, err := idx.DuplicateReleaseGroups()
	if err != nil {
		return fmt.Errorf("check duplicate release groups: %w", err)
	}
	albumDups, err := idx.DuplicateAlbums()
	if err != nil {
		return fmt.Errorf("check duplicate albums: %w", err)
	}
	for _, d := range rgDups {
		util.WarnLog("release group %s registered at %d paths: %v", d.ID, len(d.Paths), d.Paths)
	}
	for _, d := range albumDups {
		util.WarnLog("album %s registered at %d paths: %v", d.ID, len(d.Paths), d.Paths)
	}

	return nil
}
