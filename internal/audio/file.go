package audio

import (
	"strconv"
	"strings"

	"github.com/uocradio/libguard/internal/audio/tagstore"
	"github.com/uocradio/libguard/internal/errs"
	"github.com/uocradio/libguard/internal/util"
	"github.com/uocradio/libguard/internal/vcache"
)

// File is the AudioFile record: the result of running one file through
// the AudioAnalyzer and TagStore collaborators, frozen and ready for
// duplicate comparison once construction returns.
type File struct {
	Path    string
	Codec   Codec
	State   errs.Kind // OK on success; the matching error kind otherwise
	Info    *TrackInfo
	Q       float64
	QValid  bool

	TagsUpdated      bool
	MarkedForDeletion bool

	handle tagstore.Handle
}

func containerFor(codec Codec) string {
	switch codec {
	case CodecMP3:
		return "mp3"
	case CodecVorbis:
		return "ogg"
	case CodecFLAC:
		return "flac"
	case CodecWavPack:
		return "wv"
	default:
		return ""
	}
}

// parseFraction splits a "n/N" style combined field (TRCK, TPOS, Track,
// Disc) into its two halves. A missing denominator yields total=0.
func parseFraction(s string) (n, total int) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0
	}
	parts := strings.SplitN(s, "/", 2)
	n, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	if len(parts) == 2 {
		total, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return n, total
}

func parseFloatPtr(s string, ok bool) *float64 {
	if !ok {
		return nil
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), " dB")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

// Construct implements the AudioFile factory. needsCheck comes
// from vcache.NeedsCheck (or a --force-check override); dryRun suppresses
// the tag-persist step in Finalize.
func Construct(path string, extGuess string, needsCheck bool, analyzer Analyzer, catalogID string) *File {
	probe, aerr := analyzer.Analyze(path, needsCheck, needsCheck, needsCheck)
	if aerr != nil {
		switch aerr.Class {
		case FailureCodec:
			if aerr.Partial == nil {
				return &File{Path: path, State: errs.Corrupted}
			}
			probe = aerr.Partial
		case FailureEBU128:
			if aerr.Partial == nil {
				return &File{Path: path, State: errs.RgainFailed}
			}
			probe = aerr.Partial
		default:
			return &File{Path: path, State: errs.InvalidFormat}
		}
	}

	codec := CodecFromFormatName(probe.FormatName)
	if codec == CodecUnknown {
		codec = CodecFromExtension(extGuess)
	} else if extCodec := CodecFromExtension(extGuess); extCodec != CodecUnknown && extCodec != codec {
		util.WarnLog("%s: codec/extension mismatch (probed %s, extension suggests %s)", path, codec, extCodec)
	}
	if codec == CodecUnknown {
		return &File{Path: path, State: errs.InvalidFormat}
	}
	params, _ := codec.Params()

	f := &File{Path: path, Codec: codec, State: errs.OK}
	if aerr != nil {
		switch aerr.Class {
		case FailureCodec:
			f.State = errs.Corrupted
		case FailureEBU128:
			f.State = errs.RgainFailed
		}
	}

	// Post-probe validation; CORRUPTED is never downgraded.
	setStateIfWorse := func(k errs.Kind) {
		if f.State != errs.Corrupted {
			f.State = errs.Worst(f.State, k)
		}
	}
	if params.MinBitrate > 0 && probe.BitRate < params.MinBitrate {
		setStateIfWorse(errs.InvalidBitRate)
	}
	if probe.SampleRate < GlobalMinSampleRate {
		setStateIfWorse(errs.InvalidSampleRate)
	}
	if probe.BitDepth < GlobalMinBitDepth {
		setStateIfWorse(errs.InvalidBitDepth)
	}

	handle, err := tagstore.Open(path, containerFor(codec))
	if err != nil {
		return &File{Path: path, Codec: codec, State: errs.InvalidTags}
	}
	f.handle = handle

	keys := tagstore.Keys(params.TagDialect)
	info := &TrackInfo{
		SampleRate:   probe.SampleRate,
		BitRate:      probe.BitRate,
		BitDepth:     probe.BitDepth,
		DurationSecs: probe.DurationSecs,
		DurationDiff: probe.DurationDiff,
		TotalFrames:  probe.TotalFrames,
		TrackILoud:   probe.EBUR128ILoud,
		TrackRThres:  probe.RelativeThreshold,
	}

	if keys.Track != "" {
		if v, ok := handle.Get(keys.Track); ok {
			info.TrackNumber, info.NumTracks = parseFraction(v)
		}
	} else {
		if v, ok := handle.Get(keys.TrackNumber); ok {
			info.TrackNumber, _ = strconv.Atoi(strings.TrimSpace(v))
		}
		if v, ok := handle.Get(keys.TrackTotal); ok {
			info.NumTracks, _ = strconv.Atoi(strings.TrimSpace(v))
		}
	}
	if keys.Disc != "" {
		if v, ok := handle.Get(keys.Disc); ok {
			info.DiscNumber, info.NumDiscs = parseFraction(v)
		}
	} else {
		if v, ok := handle.Get(keys.DiscNumber); ok {
			info.DiscNumber, _ = strconv.Atoi(strings.TrimSpace(v))
		}
		if v, ok := handle.Get(keys.DiscTotal); ok {
			info.NumDiscs, _ = strconv.Atoi(strings.TrimSpace(v))
		}
	}
	if v, ok := handle.Get(keys.AlbumID); ok {
		info.AlbumID = v
	}
	if v, ok := handle.Get(keys.ReleaseGroupID); ok {
		info.ReleaseGroupID = v
	}

	// Replay-gain: fresh analysis writes, cached analysis reads back.
	if probe.RG2Gain != nil {
		handle.Set(keys.ReplayGainTrackGain, tagstore.FormatGain(*probe.RG2Gain))
		info.TrackGain = probe.RG2Gain
		if probe.SamplePeak != nil {
			handle.Set(keys.ReplayGainTrackPeak, tagstore.FormatPeak(*probe.SamplePeak))
			info.TrackPeak = probe.SamplePeak
		}
		if probe.EBUR128LRA != nil {
			handle.Set(keys.ReplayGainTrackRange, tagstore.FormatGain(*probe.EBUR128LRA))
			info.TrackLRA = probe.EBUR128LRA
		}
		handle.Remove(keys.ReferenceLoudness)
		f.TagsUpdated = true
	} else {
		v, ok := handle.Get(keys.ReplayGainTrackGain)
		info.TrackGain = parseFloatPtr(v, ok)
		v, ok = handle.Get(keys.ReplayGainTrackPeak)
		info.TrackPeak = parseFloatPtr(v, ok)
		v, ok = handle.Get(keys.ReplayGainTrackRange)
		info.TrackLRA = parseFloatPtr(v, ok)
		v, ok = handle.Get(keys.ReplayGainAlbumGain)
		info.AlbumGain = parseFloatPtr(v, ok)
		v, ok = handle.Get(keys.ReplayGainAlbumPeak)
		info.AlbumPeak = parseFloatPtr(v, ok)
	}

	if info.IsStandalone() {
		info.NewStandaloneIdentity()
	}
	f.Info = info

	verified := f.State == errs.OK || f.State == errs.RgainFailed
	f.Q, f.QValid = Quality(info, codec, verified)

	return f
}

// ApplyAlbumGain writes the album-level replay-gain tags computed by the
// directory's loudness re-integration step back onto this
// file's TrackInfo and pending tag edits. It does not itself persist to
// disk; Finalize does that.
func (f *File) ApplyAlbumGain(albumGain, albumPeak float64) {
	if f.Info == nil {
		return
	}
	if f.handle != nil {
		params, _ := f.Codec.Params()
		keys := tagstore.Keys(params.TagDialect)
		f.handle.Set(keys.ReplayGainAlbumGain, tagstore.FormatGain(albumGain))
		f.handle.Set(keys.ReplayGainAlbumPeak, tagstore.FormatPeak(albumPeak))
	}
	f.Info.AlbumGain = &albumGain
	f.Info.AlbumPeak = &albumPeak
	f.TagsUpdated = true
}

// Release closes the underlying tag handle without saving any pending
// edits, for files belonging to a directory that turned out to need
// withdrawal instead of finalization ("children are released
// with the worst error propagated so their __exit__ skips mutation").
func (f *File) Release() {
	if f.handle != nil {
		f.handle.Close()
		f.handle = nil
	}
}

// Finalize implements the close-time contract: persist tags if verification
// succeeded and they changed, then mark_verified; remove the file if
// flagged for deletion; otherwise just release resources.
func (f *File) Finalize(dryRun bool) error {
	defer func() {
		if f.handle != nil {
			f.handle.Close()
		}
	}()

	if f.MarkedForDeletion {
		return util.RetryableRemove(f.Path, util.DefaultRetryConfig())
	}

	verified := f.State == errs.OK
	if verified && !dryRun && f.TagsUpdated && f.handle != nil {
		if err := f.handle.Save(); err != nil {
			return err
		}
	}
	if verified && !dryRun {
		vcache.MarkVerified(f.Path)
	}
	return nil
}
