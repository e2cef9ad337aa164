package tree

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/uocradio/libguard/internal/audio"
	"github.com/uocradio/libguard/internal/errs"
)

// standaloneBasename is the directory name that opts a leaf out of every
// album consistency check.
const standaloneBasename = "Standalone Recordings"

var leadingNumber = regexp.MustCompile(`^(\d+)`)

// reconcileAudio implements the audio reconciliation pass: a single
// deterministic pass over track-sorted audio files, followed by
// post-scan checks that decide between AudioAlbum, AudioDisc, and
// AudioStandalone (or fail the directory with INCONSISTENT / MISSING_TAGS /
// INVALID_TAGS). d.AudioFiles is assumed already sorted by track_number.
func reconcileAudio(d *Directory, catalog audio.ReleaseCatalog) {
	if filepath.Base(d.Path) == standaloneBasename {
		d.Flags |= Standalone
		d.Kind = KindAudioStandalone
		return
	}

	var (
		lastTrack           int
		haveLast            bool
		numTracks, numDiscs int
		discNumber          int
		albumID, releaseGrp string
		haveNumTracks       bool
		haveNumDiscs        bool
		haveDiscNumber      bool
		haveAlbumID         bool
		haveReleaseGroup    bool
		albumGain           *float64
		albumPeak           *float64
		haveAlbumGain       bool
		needsRgain          bool
	)

	fail := func(k errs.Kind) {
		d.Errors.Add(k)
		d.Kind = KindFailed
	}

	for _, f := range d.AudioFiles {
		info := f.Info

		if !haveLast {
			haveLast = true
		} else if info.TrackNumber != lastTrack+1 && info.TrackNumber != lastTrack {
			fail(errs.Inconsistent)
			return
		} else if info.TrackNumber == lastTrack {
			d.Flags |= CheckDuplicates
		}
		lastTrack = info.TrackNumber

		// NFC-normalize before matching: filenames written by different
		// OSes/tools can spell the same title with precomposed or
		// decomposed accents, and the leading-digit match must not depend
		// on which form a given rip happens to use.
		base := norm.NFC.String(filepath.Base(f.Path))
		m := leadingNumber.FindStringSubmatch(base)
		if m == nil {
			fail(errs.Inconsistent)
			return
		}
		n, _ := strconv.Atoi(m[1])
		if n != info.TrackNumber {
			fail(errs.Inconsistent)
			return
		}

		if info.NumTracks != 0 {
			if !haveNumTracks {
				numTracks, haveNumTracks = info.NumTracks, true
			} else if info.NumTracks != numTracks {
				fail(errs.Inconsistent)
				return
			}
		}
		if info.NumDiscs != 0 {
			if !haveNumDiscs {
				numDiscs, haveNumDiscs = info.NumDiscs, true
			} else if info.NumDiscs != numDiscs {
				fail(errs.Inconsistent)
				return
			}
		}
		if info.DiscNumber != 0 {
			if !haveDiscNumber {
				discNumber, haveDiscNumber = info.DiscNumber, true
			} else if info.DiscNumber != discNumber {
				fail(errs.Inconsistent)
				return
			}
		}
		if info.AlbumID != "" {
			if !haveAlbumID {
				albumID, haveAlbumID = info.AlbumID, true
			} else if info.AlbumID != albumID {
				fail(errs.Inconsistent)
				return
			}
		}
		if info.ReleaseGroupID != "" {
			if !haveReleaseGroup {
				releaseGrp, haveReleaseGroup = info.ReleaseGroupID, true
			} else if info.ReleaseGroupID != releaseGrp {
				fail(errs.Inconsistent)
				return
			}
		}

		if info.AlbumGain != nil && info.AlbumPeak != nil {
			if !haveAlbumGain {
				albumGain, albumPeak, haveAlbumGain = info.AlbumGain, info.AlbumPeak, true
			} else if *info.AlbumGain != *albumGain || *info.AlbumPeak != *albumPeak {
				needsRgain = true
			}
		}
	}

	fileCount := len(d.AudioFiles)

	if !haveAlbumID || strings.TrimSpace(albumID) == "" {
		fail(errs.MissingTags)
		return
	}
	if !haveNumTracks || numTracks == 0 {
		fail(errs.InvalidTags)
		return
	}
	if numTracks < fileCount {
		d.Flags |= CheckDuplicates
	}
	if numTracks == fileCount+1 {
		fail(errs.Inconsistent)
		return
	}
	if numTracks > fileCount+1 {
		d.Flags |= PartialRelease
	}

	d.AlbumID = albumID
	d.ReleaseGroupID = releaseGrp

	if numDiscs > 1 {
		d.Flags |= PartOfSet
		d.Kind = KindAudioDisc
	} else {
		d.Kind = KindAudioAlbum
	}

	if needsRgain {
		d.Flags |= NeedsRgain
	} else {
		for _, f := range d.AudioFiles {
			if f.Info.AlbumGain == nil || f.Info.AlbumPeak == nil {
				d.Flags |= NeedsRgain
				break
			}
		}
	}
}
