// Package scheduler implements the tree scheduler: a bottom-up walk of
// the library that constructs, processes, withdraws, registers, and
// finalizes each Directory, dispatching sibling subdirectories across a
// bounded worker pool once their common parent is reachable.
package scheduler

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/uocradio/libguard/internal/audio"
	"github.com/uocradio/libguard/internal/errs"
	"github.com/uocradio/libguard/internal/index"
	"github.com/uocradio/libguard/internal/tree"
	"github.com/uocradio/libguard/internal/util"
)

// DefaultSiblingPool is the default width of the sibling worker pool.
const DefaultSiblingPool = 2

// Config bundles everything a walk needs: the run options, the quarantine
// root, the sibling fan-out width, and the external collaborators that
// Directory construction and processing consult.
type Config struct {
	Options     tree.Options
	Junkyard    string
	SiblingPool int
	Analyzer    audio.Analyzer
	Catalog     audio.ReleaseCatalog
	Index       *index.Store
	ShowBar     bool
}

// Scheduler drives one bottom-up walk. It is not reusable across concurrent
// walks: the progress bar and termination flag are per-run state.
type Scheduler struct {
	cfg        Config
	junkyard   string
	terminated atomic.Bool

	bar      *progressbar.ProgressBar
	progress atomic.Int64
}

// New returns a Scheduler ready to Run a single walk.
func New(cfg Config) *Scheduler {
	if cfg.SiblingPool <= 0 {
		cfg.SiblingPool = DefaultSiblingPool
	}
	junkyard, err := filepath.Abs(cfg.Junkyard)
	if err != nil {
		junkyard = cfg.Junkyard
	}
	return &Scheduler{cfg: cfg, junkyard: junkyard}
}

// Terminate sets the shared termination flag. Safe to call from a signal
// handler goroutine while Run is in flight.
func (s *Scheduler) Terminate() {
	s.terminated.Store(true)
}

// Run walks root bottom-up and returns the ErrorKind the caller should use
// to derive a process exit code: the root's own worst error if it survived
// construction, or Terminate/AccessDenied/Ignore/Empty if the root itself
// hit one of those short-circuits.
func (s *Scheduler) Run(root string) errs.Kind {
	if s.cfg.ShowBar && util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		s.bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Auditing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}

	var kind errs.Kind
	d, walkErr := s.construct(absRoot)
	if walkErr != errs.OK {
		kind = walkErr
	} else {
		s.recurseChildren(d, 0)
		kind = s.finishNode(d)
	}
	s.advance(0)

	if s.bar != nil {
		s.bar.Finish()
	}
	return kind
}

// isJunkyard reports whether path is the configured junkyard root itself,
// so the walk never descends into its own quarantine area.
func (s *Scheduler) isJunkyard(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return abs == s.junkyard
}

func listSubdirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var subdirs []string
	for _, e := range entries {
		if e.IsDir() {
			subdirs = append(subdirs, filepath.Join(path, e.Name()))
		}
	}
	return subdirs, nil
}

// construct builds the Directory record for path from its own direct file
// entries only; it never looks at subdirectory contents, so a marker or
// empty directory is recognized (and, for empty directories, deleted)
// without the walk ever descending into what lies beneath it. The returned
// errs.Kind is OK unless path itself short-circuited the walk.
func (s *Scheduler) construct(path string) (*tree.Directory, errs.Kind) {
	if s.terminated.Load() {
		return nil, errs.Terminate
	}
	if s.isJunkyard(path) {
		return nil, errs.OK
	}

	d, cerr := tree.Construct(path, nil, s.cfg.Options, s.cfg.Analyzer, s.cfg.Catalog)
	if cerr != nil {
		util.WarnLog("%s: access denied: %v", path, cerr)
		return nil, errs.AccessDenied
	}

	switch d.Kind {
	case tree.KindIgnored:
		util.InfoLog("%s: ignored, subtree skipped", path)
		return d, errs.Ignore
	case tree.KindEmpty:
		return d, errs.Empty
	}
	return d, errs.OK
}

// recurseChildren discovers d's subdirectories and walks each one
// concurrently (bounded by the sibling pool), attaching every survivor as a
// child of d — non-owning parent back-reference set — before running that
// child's own withdraw/process/register/finalize sequence. Setting the
// back-reference first is what lets a PART_OF_SET child escalate into a
// parent error bag that already exists by the time it checks eligibility.
func (s *Scheduler) recurseChildren(d *tree.Directory, depth int) {
	subdirs, err := listSubdirs(d.Path)
	if err != nil {
		util.WarnLog("%s: failed to list subdirectories: %v", d.Path, err)
		return
	}
	if len(subdirs) == 0 {
		return
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.SiblingPool)

	for _, sub := range subdirs {
		if s.terminated.Load() {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(sub string) {
			defer wg.Done()
			defer func() { <-sem }()

			child, walkErr := s.construct(sub)
			if child == nil {
				return
			}
			if walkErr == errs.OK {
				s.recurseChildren(child, depth+1)
			}

			child.Parent = d
			mu.Lock()
			d.Children = append(d.Children, child)
			mu.Unlock()

			s.finishNode(child)
			s.advance(depth + 1)
		}(sub)
	}
	wg.Wait()
}

// finishNode runs the per-directory sequence: check termination, withdraw
// if eligible, otherwise process and re-check withdrawal, otherwise
// register and finalize. Ignored and Empty directories were already fully
// resolved during construct (the marker/empty short-circuit is terminal on
// its own) and are reported back without running withdraw at all.
func (s *Scheduler) finishNode(d *tree.Directory) errs.Kind {
	if s.terminated.Load() {
		return errs.Terminate
	}
	switch d.Kind {
	case tree.KindIgnored:
		return errs.Ignore
	case tree.KindEmpty:
		return errs.Empty
	}

	if d.Eligible() {
		tree.Discard(d)
		tree.Withdraw(d, s.junkyard)
		return d.Errors.Worst()
	}

	tree.Process(d, s.cfg.Catalog)

	if d.Eligible() {
		tree.Discard(d)
		tree.Withdraw(d, s.junkyard)
		return d.Errors.Worst()
	}

	tree.Register(d, s.cfg.Index)
	tree.Finalize(d)
	return errs.OK
}

// advance ticks the progress counter for the root (depth 0) and its direct
// children (depth 1) — the library's top-level artist/album directories —
// so progress reflects top-level units of work rather than every leaf.
func (s *Scheduler) advance(depth int) {
	if depth > 1 {
		return
	}
	n := s.progress.Add(1)
	if s.bar != nil {
		s.bar.Set64(n)
	}
}
