package sync

import "sort"

// ConflictCase is a path where both sides changed strictly after the
// watermark. It is resolved to exactly one action before execution.
type ConflictCase struct {
	Path   string
	Local  *PathEntry
	Remote *PathEntry
}

// SyncPlan is the immutable decision set for one run. Categories are
// disjoint; each path appears in at most one of them. Sequences are sorted
// by path so plans are deterministic for a given pair of indices.
type SyncPlan struct {
	Uploads       []*PathEntry
	Downloads     []*PathEntry
	LocalDeletes  []*PathEntry
	RemoteDeletes []*PathEntry
	Conflicts     []ConflictCase

	// Skipped holds paths whose local and remote types disagree
	// (file vs container). These are surfaced, never acted on.
	Skipped []string
}

// IsEmpty reports whether the plan contains no work.
func (p *SyncPlan) IsEmpty() bool {
	return len(p.Uploads) == 0 &&
		len(p.Downloads) == 0 &&
		len(p.LocalDeletes) == 0 &&
		len(p.RemoteDeletes) == 0 &&
		len(p.Conflicts) == 0
}

// TotalItems returns the number of executable plan entries.
func (p *SyncPlan) TotalItems() int {
	return len(p.Uploads) + len(p.Downloads) + len(p.LocalDeletes) +
		len(p.RemoteDeletes) + len(p.Conflicts)
}

// Plan computes the decision set for every path in the union of both
// indices. It is a pure function of its inputs: no I/O, no clock reads.
//
// The watermark is the last instant both trees were known converged, in unix
// millis. Zero means no prior successful sync; on a first run absence on one
// side always means "create", never "deleted", and no conflict is possible.
//
// Deletion is inferred from absence plus staleness: if a path exists on only
// one side and that side's timestamp predates a non-zero watermark, the item
// was untouched since the last converged point, so the absence on the other
// side is a deletion. Note this does not verify the absent side actually held
// the item at the watermark; a path excluded between runs can be
// misclassified as deleted. Known ambiguity, kept to match reference
// behavior.
func Plan(local, remote Index, watermark int64) *SyncPlan {
	plan := &SyncPlan{}

	for _, p := range unionPaths(local, remote) {
		l, localExists := local[p]
		r, remoteExists := remote[p]

		switch {
		case localExists && !remoteExists:
			if watermark == 0 || l.LocalMtime > watermark {
				plan.Uploads = append(plan.Uploads, l)
			} else {
				// untouched since last sync, remote deletion observed
				plan.LocalDeletes = append(plan.LocalDeletes, l)
			}

		case !localExists && remoteExists:
			if watermark == 0 || r.RemoteMtime > watermark {
				plan.Downloads = append(plan.Downloads, r)
			} else {
				// untouched since last sync, local deletion observed
				plan.RemoteDeletes = append(plan.RemoteDeletes, r)
			}

		default:
			planBoth(plan, l, r, watermark)
		}
	}

	return plan
}

// planBoth handles paths present in both indices.
func planBoth(plan *SyncPlan, l, r *PathEntry, watermark int64) {
	if l.IsDir != r.IsDir {
		plan.Skipped = append(plan.Skipped, l.Path)
		return
	}

	// containers are never diffed by content
	if l.IsDir {
		return
	}

	// equal timestamps mean neither side is strictly newer
	if l.LocalMtime == r.RemoteMtime {
		return
	}

	// the only conflict trigger: both sides changed after a real watermark
	if watermark > 0 && l.LocalMtime > watermark && r.RemoteMtime > watermark {
		plan.Conflicts = append(plan.Conflicts, ConflictCase{Path: l.Path, Local: l, Remote: r})
		return
	}

	if l.LocalMtime > r.RemoteMtime && (watermark == 0 || l.LocalMtime > watermark) {
		// carry the remote id, turning the insert into an update
		up := *l
		up.RemoteID = r.RemoteID
		plan.Uploads = append(plan.Uploads, &up)
		return
	}

	if r.RemoteMtime > l.LocalMtime && (watermark == 0 || r.RemoteMtime > watermark) {
		plan.Downloads = append(plan.Downloads, r)
	}
}

func unionPaths(local, remote Index) []string {
	seen := make(map[string]struct{}, len(local)+len(remote))
	for p := range local {
		seen[p] = struct{}{}
	}
	for p := range remote {
		seen[p] = struct{}{}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
