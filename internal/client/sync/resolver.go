package sync

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Policy selects how a conflict is resolved.
type Policy string

const (
	// PolicyPreferLocal always uploads the local entry.
	PolicyPreferLocal Policy = "prefer-local"
	// PolicyPreferRemote always downloads the remote entry.
	PolicyPreferRemote Policy = "prefer-remote"
	// PolicyPreferNewer lets the strictly newer side win; ties fall back to
	// prefer-remote.
	PolicyPreferNewer Policy = "prefer-newer"
	// PolicyKeepBoth renames the local copy aside and downloads the remote
	// entry under the original path. Both copies survive.
	PolicyKeepBoth Policy = "keep-both"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyPreferLocal, PolicyPreferRemote, PolicyPreferNewer, PolicyKeepBoth:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q", s)
	}
}

// ActionKind is the concrete outcome of conflict resolution.
type ActionKind string

const (
	ActionUpload   ActionKind = "upload"
	ActionDownload ActionKind = "download"
	// ActionKeepBoth duplicates the local file to DuplicatePath, then
	// downloads the remote entry under the original path.
	ActionKeepBoth ActionKind = "keep-both"
)

// ResolvedConflict pairs a conflict case with its chosen action.
type ResolvedConflict struct {
	Case          ConflictCase
	Action        ActionKind
	DuplicatePath string // set only for ActionKeepBoth
}

// conflictTimeFormat stamps keep-both duplicates. Millisecond resolution
// keeps duplicate names unique across rapid successive runs.
const conflictTimeFormat = "20060102150405.000"

// Resolve applies one policy to one conflict case. It never touches either
// store; the duplicate copy for keep-both is performed by the executor. The
// resolvedAt time only feeds duplicate naming, so results are deterministic
// for a given plan, policy and run.
func Resolve(c ConflictCase, policy Policy, resolvedAt time.Time) (*ResolvedConflict, error) {
	switch policy {
	case PolicyPreferLocal:
		return &ResolvedConflict{Case: c, Action: ActionUpload}, nil

	case PolicyPreferRemote:
		return &ResolvedConflict{Case: c, Action: ActionDownload}, nil

	case PolicyPreferNewer:
		if c.Local.LocalMtime > c.Remote.RemoteMtime {
			return &ResolvedConflict{Case: c, Action: ActionUpload}, nil
		}
		// remote wins ties: deterministic, documented default
		return &ResolvedConflict{Case: c, Action: ActionDownload}, nil

	case PolicyKeepBoth:
		return &ResolvedConflict{
			Case:          c,
			Action:        ActionKeepBoth,
			DuplicatePath: duplicatePath(c.Path, resolvedAt),
		}, nil

	default:
		// every policy has a deterministic outcome; reaching this is a bug
		return nil, fmt.Errorf("conflict policy exhausted for %q: %q", c.Path, policy)
	}
}

// ResolvePlan resolves every conflict in the plan once, before execution
// begins.
func ResolvePlan(plan *SyncPlan, policy Policy, resolvedAt time.Time) ([]*ResolvedConflict, error) {
	resolved := make([]*ResolvedConflict, 0, len(plan.Conflicts))
	for _, c := range plan.Conflicts {
		rc, err := Resolve(c, policy, resolvedAt)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, rc)
	}
	return resolved, nil
}

// duplicatePath inserts a collision marker plus a high-resolution timestamp
// before the extension: "notes/c.md" -> "notes/c_conflict_20240101093000.000.md".
func duplicatePath(p string, t time.Time) string {
	ext := path.Ext(p)
	base := strings.TrimSuffix(p, ext)
	return fmt.Sprintf("%s_conflict_%s%s", base, t.UTC().Format(conflictTimeFormat), ext)
}
