package tree

import (
	"math"
	"path/filepath"

	"github.com/uocradio/libguard/internal/audio"
	"github.com/uocradio/libguard/internal/errs"
	"github.com/uocradio/libguard/internal/index"
	"github.com/uocradio/libguard/internal/util"
)

// albumCoverBasename is the one artwork file rearrangement leaves in place.
const albumCoverBasename = "album_cover.jpg"

// referenceLoudnessLUFS mirrors audio's unexported constant of the same
// value; re-declared here since the loudness re-integration formula lives
// at the directory level, not inside AudioFile.
const referenceLoudnessLUFS = -18.0

// albumGainCalibration is an empirical correction applied on top of the
// energy-domain average; kept as an unexplained calibration constant rather
// than re-derived.
const albumGainCalibration = -0.05

// Process implements the post-construction processing pass: rearrangement,
// duplicate resolution, per-file verification gathering, and album-loudness
// re-integration. It is only called for directories that constructed with
// no errors yet (d.Errors.Empty()). A false return means processing hit a
// fatal condition; d.Kind and d.Errors already reflect it.
func Process(d *Directory, catalog audio.ReleaseCatalog) bool {
	if !d.Kind.IsAudio() {
		return true
	}

	rearrange(d)

	if d.Flags.Has(CheckDuplicates) && !d.Flags.Has(Standalone) {
		if !resolveDuplicates(d, catalog) {
			return false
		}
	}

	worst := errs.OK
	hasOther := false
	for _, f := range d.AudioFiles {
		if f.MarkedForDeletion {
			continue
		}
		if f.State != errs.OK && f.State != errs.RgainFailed {
			worst = errs.Worst(worst, f.State)
			hasOther = true
		}
	}
	if hasOther {
		d.Errors.Add(worst)
		d.Kind = KindFailed
		return false
	}

	if d.Flags.Has(NeedsRgain) {
		applyAlbumLoudness(d)
	}

	return true
}

// rearrange moves artwork and text auxiliary content into canonical
// subfolders. Errors here are logged, not fatal.
func rearrange(d *Directory) {
	if len(d.ArtworkFiles) >= 2 {
		dest := filepath.Join(d.Path, "Artwork")
		if err := util.RetryableMkdirAll(dest, 0o755, util.DefaultRetryConfig()); err != nil {
			util.WarnLog("%s: failed to create Artwork/: %v", d.Path, err)
		} else {
			for _, p := range d.ArtworkFiles {
				if filepath.Base(p) == albumCoverBasename {
					continue
				}
				newPath := filepath.Join(dest, filepath.Base(p))
				if err := util.RetryableRename(p, newPath, util.DefaultRetryConfig()); err != nil {
					util.WarnLog("%s: failed to move artwork %s: %v", d.Path, p, err)
				}
			}
		}
	}

	if len(d.TextFiles) > 0 {
		dest := filepath.Join(d.Path, "Info")
		if err := util.RetryableMkdirAll(dest, 0o755, util.DefaultRetryConfig()); err != nil {
			util.WarnLog("%s: failed to create Info/: %v", d.Path, err)
		} else {
			for _, p := range d.TextFiles {
				newPath := filepath.Join(dest, filepath.Base(p))
				if err := util.RetryableRename(p, newPath, util.DefaultRetryConfig()); err != nil {
					util.WarnLog("%s: failed to move text file %s: %v", d.Path, p, err)
				}
			}
		}
	}
}

// resolveDuplicates groups audio files by TrackInfo equality, ranks each
// group by the quality ordering, keeps the best, and marks the rest for
// deletion. Returns false if an ordering comparison raised INCONSISTENT,
// which propagates and aborts processing.
func resolveDuplicates(d *Directory, catalog audio.ReleaseCatalog) bool {
	for _, group := range equivalenceGroups(d.AudioFiles) {
		if len(group) < 2 {
			continue
		}

		qs := make([]float64, len(group))
		for i, idx := range group {
			if d.AudioFiles[idx].QValid {
				qs[i] = d.AudioFiles[idx].Q
			}
		}
		qNorm := audio.Normalize(qs)

		ranked := append([]int(nil), group...)
		rank := make(map[int]float64, len(group))
		for i, idx := range group {
			rank[idx] = qNorm[i]
		}

		// Simple insertion sort so every pairwise comparison can be checked
		// for comparability; duplicate groups are small in practice.
		// Descending insertion sort (best file first): swap the adjacent
		// pair whenever the one currently in front is "less than" the one
		// behind it.
		for i := 1; i < len(ranked); i++ {
			j := i
			for j > 0 {
				front, behind := ranked[j-1], ranked[j]
				less, ok := audio.Less(d.AudioFiles[front].Info, d.AudioFiles[behind].Info, rank[front], rank[behind], catalog)
				if !ok {
					d.Errors.Add(errs.Inconsistent)
					d.Kind = KindFailed
					return false
				}
				if !less {
					break
				}
				ranked[j-1], ranked[j] = ranked[j], ranked[j-1]
				j--
			}
		}

		for i, idx := range ranked {
			if i == 0 {
				continue
			}
			d.AudioFiles[idx].MarkedForDeletion = true
		}
	}
	return true
}

// equivalenceGroups partitions file indices by audio.TrackInfo.Equals,
// which is an equivalence relation over identity-tuple fields.
func equivalenceGroups(files []*audio.File) [][]int {
	n := len(files)
	assigned := make([]bool, n)
	var groups [][]int
	for i := 0; i < n; i++ {
		if assigned[i] || files[i].Info == nil {
			continue
		}
		group := []int{i}
		assigned[i] = true
		for j := i + 1; j < n; j++ {
			if assigned[j] || files[j].Info == nil {
				continue
			}
			if files[i].Info.Equals(files[j].Info) {
				group = append(group, j)
				assigned[j] = true
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// applyAlbumLoudness re-integrates per-track loudness into an album-level
// gain figure by energy-domain averaging.
// It is a no-op (not a directory failure) if fewer than 2 surviving files
// remain or any required per-track loudness field is missing; overflow,
// divide-by-zero, and domain errors likewise abort only this step.
func applyAlbumLoudness(d *Directory) {
	var survivors []*audio.File
	for _, f := range d.AudioFiles {
		if !f.MarkedForDeletion {
			survivors = append(survivors, f)
		}
	}
	if len(survivors) < 2 {
		return
	}

	var sumE, sumG, peak float64
	for _, f := range survivors {
		info := f.Info
		if info.TrackILoud == nil || info.TrackRThres == nil || info.TotalFrames <= 0 {
			return
		}
		e := math.Pow(10, (*info.TrackILoud+0.691)/10)
		eth := math.Pow(10, (*info.TrackRThres+0.691)/10)
		if eth == 0 {
			return
		}
		ratio := e / eth
		if ratio > 1.0 {
			ratio = 1.0
		}
		g := float64(info.TotalFrames) * ratio
		sumE += e * g
		sumG += g
		if info.TrackPeak != nil && *info.TrackPeak > peak {
			peak = *info.TrackPeak
		}
	}
	if sumG == 0 {
		return
	}

	eAlbum := sumE / sumG
	if eAlbum <= 0 || math.IsNaN(eAlbum) || math.IsInf(eAlbum, 0) {
		return
	}
	lAlbum := 10*math.Log10(eAlbum) - 0.691
	albumGain := referenceLoudnessLUFS - lAlbum + albumGainCalibration
	if math.IsNaN(albumGain) || math.IsInf(albumGain, 0) {
		return
	}

	for _, f := range survivors {
		f.ApplyAlbumGain(albumGain, peak)
	}
}

// Register implements its "Registration": a directory that
// survived with no errors emits its identity to the index store, under the
// parent's path instead of its own when PART_OF_SET (so a multi-disc
// release registers once, at the album level, not once per disc).
func Register(d *Directory, idx *index.Store) {
	if idx == nil || !d.Errors.Empty() {
		return
	}
	if d.Kind != KindAudioAlbum && d.Kind != KindAudioDisc {
		return
	}
	path := d.Path
	if d.PartOfSet() && d.Parent != nil {
		path = d.Parent.Path
	}
	result, err := idx.AddAlbum(path, d.ReleaseGroupID, d.AlbumID)
	if err != nil {
		util.WarnLog("%s: index registration failed: %v", d.Path, err)
		return
	}
	if !result.Inserted && (result.DuplicateReleaseGroup || result.DuplicateAlbum) {
		util.WarnLog("%s: duplicate location detected, not re-registered", d.Path)
	}
}
