package tree

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/uocradio/libguard/internal/audio"
	"github.com/uocradio/libguard/internal/classify"
	"github.com/uocradio/libguard/internal/errs"
	"github.com/uocradio/libguard/internal/util"
	"github.com/uocradio/libguard/internal/vcache"
)

// filePool bounds per-file construction inside a single directory to 4
// concurrent workers ("parallel per-file construction with a
// bounded pool, at most 4 workers per directory").
const filePool = 4

// Construct implements the Directory factory. It reads only the direct
// entries of path: subdirectories are counted toward
// HAS_SUBDIRS but never recursed into here, since the scheduler's bottom-up
// walk has already constructed them as independent Directory records by the
// time it attaches them as children.
//
// A non-nil error signals a directory-read failure the scheduler must
// classify itself ("ACCESS_DENIED logs and continues"); every
// other outcome, including EMPTY and IGNORE, is represented in the returned
// Directory's Kind.
func Construct(path string, parent *Directory, opts Options, analyzer audio.Analyzer, catalog audio.ReleaseCatalog) (*Directory, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	d := newDirectory(path, parent, opts)

	if len(entries) == 0 {
		d.Kind = KindEmpty
		d.Errors.Add(errs.Empty)
		if opts.DryRun {
			util.InfoLog("dry-run: would remove empty directory %s", path)
		} else if rmErr := os.Remove(path); rmErr != nil {
			util.WarnLog("failed to remove empty directory %s: %v", path, rmErr)
		}
		return d, nil
	}

	var fileEntries []os.DirEntry
	for _, e := range entries {
		if e.IsDir() {
			d.Flags |= HasSubdirs
			continue
		}
		fileEntries = append(fileEntries, e)
	}

	var audioPaths []string
	for _, e := range fileEntries {
		full := filepath.Join(path, e.Name())
		cat, warnings, cerr := classify.Classify(full)
		for _, w := range warnings {
			util.WarnLog("%s: %s", full, w)
		}
		if cerr != nil && cat == classify.Unsupported {
			util.DebugLog("%s: unsupported, skipping", full)
			continue
		}
		switch cat {
		case classify.Marker:
			d.Flags |= HasMarker
			d.Kind = KindIgnored
			d.Errors.Add(errs.Ignore)
			return d, nil
		case classify.Audio:
			d.Flags |= HasAudio
			audioPaths = append(audioPaths, full)
		case classify.Artwork:
			d.Flags |= HasArtwork
			d.ArtworkFiles = append(d.ArtworkFiles, full)
		case classify.Video:
			d.Flags |= HasVideo
			d.VideoFiles = append(d.VideoFiles, full)
		case classify.Text:
			d.Flags |= HasText
			d.TextFiles = append(d.TextFiles, full)
		}
	}

	if d.Flags.Has(HasAudio) {
		d.AudioFiles = constructAudioFiles(audioPaths, opts, analyzer)
		sort.Slice(d.AudioFiles, func(i, j int) bool {
			ti, tj := d.AudioFiles[i].Info, d.AudioFiles[j].Info
			if ti == nil || tj == nil {
				return ti != nil
			}
			return ti.TrackNumber < tj.TrackNumber
		})

		// Rule 3: a file whose construction returned no usable Info is a
		// construction failure, not a retained-but-degraded file.
		var hardFailure bool
		for _, f := range d.AudioFiles {
			if f.Info == nil {
				hardFailure = true
				d.Errors.Add(f.State)
			}
		}
		if hardFailure {
			d.Kind = KindFailed
			releaseAll(d)
			return d, nil
		}

		reconcileAudio(d, catalog)
		return d, nil
	}

	classifyAuxiliaryOnly(d)
	return d, nil
}

// constructAudioFiles runs audio.Construct for each path, bounded to
// filePool concurrent workers, preserving the (score-irrelevant) discovery
// order is not required since Construct re-sorts by track_number after.
func constructAudioFiles(paths []string, opts Options, analyzer audio.Analyzer) []*audio.File {
	out := make([]*audio.File, len(paths))
	sem := make(chan struct{}, filePool)
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, p string) {
			defer wg.Done()
			defer func() { <-sem }()
			needsCheck, err := vcache.NeedsCheck(p, opts.ForceCheck)
			if err != nil {
				util.WarnLog("%s: vcache check failed, forcing re-probe: %v", p, err)
				needsCheck = true
			}
			ext := filepath.Ext(p)
			out[i] = audio.Construct(p, ext, needsCheck, analyzer, "")
		}(i, p)
	}
	wg.Wait()
	return out
}

// classifyAuxiliaryOnly implements rules 4, 5, 6, 7, 9 for a directory with
// no audio files.
func classifyAuxiliaryOnly(d *Directory) {
	hasArtwork := d.Flags.Has(HasArtwork)
	hasVideo := d.Flags.Has(HasVideo)
	hasText := d.Flags.Has(HasText)
	hasSubdirs := d.Flags.Has(HasSubdirs)

	onlyArtwork := hasArtwork && !hasVideo && !hasText
	onlyVideo := hasVideo && !hasArtwork && !hasText
	onlyText := hasText && !hasArtwork && !hasVideo

	switch {
	case !hasArtwork && !hasVideo && !hasText && hasSubdirs:
		d.Kind = KindIntermediate
	case onlyArtwork && !hasSubdirs:
		d.Kind = KindArtwork
		d.Flags |= PartOfSet
	case onlyVideo && !hasSubdirs:
		d.Kind = KindVideo
		d.Flags |= PartOfSet
	case onlyText && !hasSubdirs:
		d.Kind = KindInfo
		d.Flags |= PartOfSet
	case hasSubdirs:
		d.Kind = KindDirtyIntermediate
	default:
		d.Kind = KindDirtyLeaf
	}
}

// releaseAll closes every constructed AudioFile's tag handle without
// persisting pending edits ("all children are released
// with the worst error propagated so their __exit__ skips mutation").
func releaseAll(d *Directory) {
	for _, f := range d.AudioFiles {
		f.Release()
	}
}
