package sync

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"sort"
	"strings"
	gosync "sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultTransferLimit = 4

// ItemError records one failed plan entry. Per-item failures never abort the
// run; they are counted and surfaced on the RunResult.
type ItemError struct {
	Path string
	Op   string
	Err  error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

// RunResult is the outcome of one run. A completed run is a success even
// when some items failed; partial success is a first-class outcome.
type RunResult struct {
	ID            string
	StartedAt     time.Time
	Duration      time.Duration
	Total         int
	Uploaded      int
	Downloaded    int
	DeletedLocal  int
	DeletedRemote int
	Resolved      int
	Skipped       int
	Failed        []ItemError
	Cancelled     bool
}

// Executor applies a resolved plan against the two stores. Categories run in
// a fixed order with a hard barrier between them: conflicts, uploads,
// downloads, local deletions, remote deletions. Deletions go last so a crash
// mid-run never removes a copy before its replacement is confirmed on the
// other side.
type Executor struct {
	local  LocalStore
	remote RemoteStore
	rootID string
	sink   ProgressSink
	limit  int

	mu        gosync.Mutex
	folderIDs map[string]string // rel dir path -> remote folder id, per run
	completed int
	total     int
	result    *RunResult
}

// NewExecutor creates an Executor bound to one run's stores and sync root.
// limit caps concurrent transfers within a category; zero means the default.
func NewExecutor(local LocalStore, remote RemoteStore, rootID string, sink ProgressSink, limit int) *Executor {
	if limit <= 0 {
		limit = defaultTransferLimit
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Executor{
		local:     local,
		remote:    remote,
		rootID:    rootID,
		sink:      sink,
		limit:     limit,
		folderIDs: map[string]string{"": rootID, ".": rootID},
	}
}

// Execute runs the plan to completion or cancellation. Cancellation is
// cooperative: it is consulted between items, never mid-transfer, so
// in-flight transfers always finish.
func (e *Executor) Execute(ctx context.Context, plan *SyncPlan, resolved []*ResolvedConflict) *RunResult {
	started := time.Now()
	e.result = &RunResult{
		ID:        uuid.NewString(),
		StartedAt: started,
		Total:     plan.TotalItems(),
		Skipped:   len(plan.Skipped),
	}
	e.total = e.result.Total

	for _, p := range plan.Skipped {
		slog.Warn("sync skip: local and remote types disagree", "path", p)
	}

	// transfers started before a cancellation must run to completion
	transferCtx := context.WithoutCancel(ctx)

	e.runConflicts(ctx, transferCtx, resolved)
	e.runUploads(ctx, transferCtx, plan.Uploads)
	e.runDownloads(ctx, transferCtx, plan.Downloads)
	e.runLocalDeletes(ctx, plan.LocalDeletes)
	e.runRemoteDeletes(ctx, transferCtx, plan.RemoteDeletes, livePaths(plan))

	e.result.Duration = time.Since(started)
	e.result.Cancelled = ctx.Err() != nil
	return e.result
}

// runConflicts establishes a single authoritative version per conflicted
// path before any bulk transfer begins.
func (e *Executor) runConflicts(ctx, transferCtx context.Context, resolved []*ResolvedConflict) {
	g := new(errgroup.Group)
	g.SetLimit(e.limit)
	for _, rc := range resolved {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := e.executeResolved(transferCtx, rc); err != nil {
				e.recordFailure(rc.Case.Path, string(OpConflict), err)
			} else {
				e.recordSuccess(rc.Case.Path, func(r *RunResult) { r.Resolved++ })
			}
			return nil
		})
	}
	g.Wait()
}

func (e *Executor) executeResolved(ctx context.Context, rc *ResolvedConflict) error {
	switch rc.Action {
	case ActionUpload:
		up := *rc.Case.Local
		up.RemoteID = rc.Case.Remote.RemoteID
		return e.uploadEntry(ctx, &up)

	case ActionDownload:
		return e.downloadEntry(ctx, rc.Case.Remote)

	case ActionKeepBoth:
		// preserve the local bytes under the collision name first, then let
		// the remote version take the original path
		body, err := e.local.ReadBytes(rc.Case.Path)
		if err != nil {
			return fmt.Errorf("read local copy: %w", err)
		}
		if err := e.local.WriteBytes(rc.DuplicatePath, body, rc.Case.Local.LocalMtime); err != nil {
			return fmt.Errorf("duplicate local copy: %w", err)
		}

		// the duplicate goes remote too, so both trees hold both copies with
		// matching timestamps and the next plan sees the pair converged; a
		// local-only duplicate older than the advanced watermark would be
		// misread as a deletion
		dup := *rc.Case.Local
		dup.Path = rc.DuplicatePath
		dup.Name = path.Base(rc.DuplicatePath)
		dup.RemoteID = ""
		if err := e.uploadEntry(ctx, &dup); err != nil {
			return fmt.Errorf("upload duplicate copy: %w", err)
		}

		slog.Info("sync conflict keep-both", "path", rc.Case.Path, "duplicate", rc.DuplicatePath)
		return e.downloadEntry(ctx, rc.Case.Remote)

	default:
		return fmt.Errorf("unresolvable action %q", rc.Action)
	}
}

func (e *Executor) runUploads(ctx, transferCtx context.Context, uploads []*PathEntry) {
	dirs, files := splitDirs(uploads)

	// containers first, shallowest to deepest, so empty folders converge too
	sortByDepth(dirs, false)
	for _, d := range dirs {
		if ctx.Err() != nil {
			break
		}
		if _, err := e.ensureRemoteFolder(transferCtx, d.Path); err != nil {
			e.recordFailure(d.Path, string(OpUpload), err)
		} else {
			e.recordSuccess(d.Path, func(r *RunResult) { r.Uploaded++ })
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(e.limit)
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := e.uploadEntry(transferCtx, f); err != nil {
				e.recordFailure(f.Path, string(OpUpload), err)
			} else {
				e.recordSuccess(f.Path, func(r *RunResult) { r.Uploaded++ })
			}
			return nil
		})
	}
	g.Wait()
}

func (e *Executor) runDownloads(ctx, transferCtx context.Context, downloads []*PathEntry) {
	dirs, files := splitDirs(downloads)

	sortByDepth(dirs, false)
	for _, d := range dirs {
		if ctx.Err() != nil {
			break
		}
		if err := e.local.EnsureDir(d.Path); err != nil {
			e.recordFailure(d.Path, string(OpDownload), err)
		} else {
			e.recordSuccess(d.Path, func(r *RunResult) { r.Downloaded++ })
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(e.limit)
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := e.downloadEntry(transferCtx, f); err != nil {
				e.recordFailure(f.Path, string(OpDownload), err)
			} else {
				e.recordSuccess(f.Path, func(r *RunResult) { r.Downloaded++ })
			}
			return nil
		})
	}
	g.Wait()
}

// runLocalDeletes trashes files then removes their now-empty containers,
// deepest first. Sequential: deletes are cheap and nesting order matters.
func (e *Executor) runLocalDeletes(ctx context.Context, deletes []*PathEntry) {
	dirs, files := splitDirs(deletes)
	sortByDepth(dirs, true)

	for _, f := range files {
		if ctx.Err() != nil {
			return
		}
		if err := e.local.MoveToTrash(f.Path); err != nil {
			e.recordFailure(f.Path, string(OpDeleteLocal), err)
		} else {
			e.recordSuccess(f.Path, func(r *RunResult) { r.DeletedLocal++ })
		}
	}

	for _, d := range dirs {
		if ctx.Err() != nil {
			return
		}
		if err := e.local.RemoveEmptyDir(d.Path); err != nil {
			e.recordFailure(d.Path, string(OpDeleteLocal), err)
		} else {
			e.recordSuccess(d.Path, func(r *RunResult) { r.DeletedLocal++ })
		}
	}
}

// runRemoteDeletes trashes remote items, containers last and deepest first.
// A container with a live descendant in this run is left alone: trashing it
// would take the fresh child down with it. This mirrors RemoveEmptyDir
// refusing a non-empty directory on the local side.
func (e *Executor) runRemoteDeletes(ctx, transferCtx context.Context, deletes []*PathEntry, live map[string]struct{}) {
	dirs, files := splitDirs(deletes)
	sortByDepth(dirs, true)

	for _, entry := range append(files, dirs...) {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir && hasLiveDescendant(entry.Path, live) {
			slog.Warn("sync skip remote container delete: live descendants in this run", "path", entry.Path)
			e.recordSuccess(entry.Path, func(r *RunResult) { r.Skipped++ })
			continue
		}
		if err := e.remote.Trash(transferCtx, entry.RemoteID); err != nil {
			e.recordFailure(entry.Path, string(OpDeleteRemote), err)
		} else {
			e.recordSuccess(entry.Path, func(r *RunResult) { r.DeletedRemote++ })
		}
	}
}

func (e *Executor) uploadEntry(ctx context.Context, entry *PathEntry) error {
	parentID, err := e.ensureRemoteFolder(ctx, path.Dir(entry.Path))
	if err != nil {
		return fmt.Errorf("ensure parent folder: %w", err)
	}

	body, err := e.local.ReadBytes(entry.Path)
	if err != nil {
		return fmt.Errorf("read local file: %w", err)
	}

	// stamp the local mtime on the remote item so a converged pair compares
	// equal on the next run
	up, err := e.remote.Upload(ctx, &UploadRequest{
		Name:       entry.Name,
		Body:       body,
		MimeType:   mimeTypeFor(entry.Name),
		ParentID:   parentID,
		ExistingID: entry.RemoteID,
		ModifiedAt: entry.LocalMtime,
	})
	if err != nil {
		return err
	}

	slog.Debug("sync upload", "path", entry.Path, "id", up.ID, "size", humanize.Bytes(uint64(len(body))))
	return nil
}

func (e *Executor) downloadEntry(ctx context.Context, entry *PathEntry) error {
	body, err := e.remote.Download(ctx, entry.RemoteID)
	if err != nil {
		return err
	}

	// carry the remote mtime so the pair compares equal on the next run
	if err := e.local.WriteBytes(entry.Path, body, entry.RemoteMtime); err != nil {
		return fmt.Errorf("write local file: %w", err)
	}

	slog.Debug("sync download", "path", entry.Path, "size", humanize.Bytes(uint64(len(body))))
	return nil
}

// ensureRemoteFolder resolves a relative directory path to a remote folder
// id, creating only the missing segments. Creation is serialized so parallel
// uploads into a new folder cannot race it into existence twice.
func (e *Executor) ensureRemoteFolder(ctx context.Context, dirPath string) (string, error) {
	dirPath = strings.Trim(dirPath, "/")

	e.mu.Lock()
	defer e.mu.Unlock()

	if id, ok := e.folderIDs[dirPath]; ok {
		return id, nil
	}

	parentID := e.rootID
	walked := ""
	for _, seg := range strings.Split(dirPath, "/") {
		if walked == "" {
			walked = seg
		} else {
			walked = walked + "/" + seg
		}

		if id, ok := e.folderIDs[walked]; ok {
			parentID = id
			continue
		}

		id, err := e.remote.FindOrCreateFolder(ctx, seg, parentID)
		if err != nil {
			return "", fmt.Errorf("folder %q: %w", walked, err)
		}
		e.folderIDs[walked] = id
		parentID = id
	}

	return parentID, nil
}

// recordSuccess bumps a counter and emits monotonically increasing progress.
func (e *Executor) recordSuccess(path string, bump func(*RunResult)) {
	e.mu.Lock()
	bump(e.result)
	e.completed++
	completed := e.completed
	e.mu.Unlock()

	e.sink.OnProgress(Progress{Phase: PhaseExecuting, Path: path, Completed: completed, Total: e.total})
}

// recordFailure isolates one bad item: logged, counted, progress still emitted.
func (e *Executor) recordFailure(path, op string, err error) {
	slog.Error("sync item failed", "op", op, "path", path, "error", err)

	e.mu.Lock()
	e.result.Failed = append(e.result.Failed, ItemError{Path: path, Op: op, Err: err})
	e.completed++
	completed := e.completed
	e.mu.Unlock()

	e.sink.OnProgress(Progress{Phase: PhaseExecuting, Path: path, Completed: completed, Total: e.total})
}

// livePaths collects every path the run transfers or resolves, so container
// deletions can check they are not trashing a live child's ancestor.
func livePaths(plan *SyncPlan) map[string]struct{} {
	live := make(map[string]struct{}, len(plan.Uploads)+len(plan.Downloads)+len(plan.Conflicts))
	for _, group := range [][]*PathEntry{plan.Uploads, plan.Downloads} {
		for _, entry := range group {
			live[entry.Path] = struct{}{}
		}
	}
	for _, c := range plan.Conflicts {
		live[c.Path] = struct{}{}
	}
	return live
}

func hasLiveDescendant(dir string, live map[string]struct{}) bool {
	prefix := dir + "/"
	for p := range live {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func splitDirs(entries []*PathEntry) (dirs, files []*PathEntry) {
	for _, entry := range entries {
		if entry.IsDir {
			dirs = append(dirs, entry)
		} else {
			files = append(files, entry)
		}
	}
	return dirs, files
}

func sortByDepth(entries []*PathEntry, deepestFirst bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		di := strings.Count(entries[i].Path, "/")
		dj := strings.Count(entries[j].Path, "/")
		if di != dj {
			if deepestFirst {
				return di > dj
			}
			return di < dj
		}
		return entries[i].Path < entries[j].Path
	})
}

func mimeTypeFor(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
