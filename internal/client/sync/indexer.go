package sync

import (
	"context"
	"fmt"
	"path"
)

// BuildLocalIndex enumerates every file and directory under the vault root,
// applies the exclusion filter and maps each survivor to a PathEntry keyed by
// its normalized relative path.
func BuildLocalIndex(ctx context.Context, local LocalStore, filter *Filter) (Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := local.ListAll()
	if err != nil {
		return nil, &IndexingError{Tree: "local", Err: err}
	}

	index := make(Index, len(entries))
	for _, e := range entries {
		if e.Path == "" || e.Path == "." {
			continue
		}
		if filter.ShouldExclude(e.Path) {
			continue
		}
		index[e.Path] = &PathEntry{
			Path:       e.Path,
			Name:       path.Base(e.Path),
			IsDir:      e.IsDir,
			LocalMtime: e.Mtime,
			Size:       e.Size,
		}
	}
	return index, nil
}

// folderWork is one pending container listing during the remote walk.
type folderWork struct {
	id      string
	relPath string // "" for the sync root
}

// BuildRemoteIndex walks the remote tree from the sync-root container using
// an explicit worklist instead of recursion, so deep trees cannot grow the
// call stack and cancellation is checked between dequeues. Each container
// costs one listing call per page; pagination is fully drained before the
// container is considered done. An empty tree yields an empty index.
func BuildRemoteIndex(ctx context.Context, remote RemoteStore, rootID string, filter *Filter) (Index, error) {
	index := make(Index)
	queue := []folderWork{{id: rootID, relPath: ""}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		work := queue[0]
		queue = queue[1:]

		pageToken := ""
		for {
			children, next, err := remote.ListChildren(ctx, work.id, pageToken)
			if err != nil {
				return nil, &IndexingError{Tree: "remote", Err: fmt.Errorf("list %q: %w", work.relPath, err)}
			}

			for _, child := range children {
				relPath := child.Name
				if work.relPath != "" {
					relPath = path.Join(work.relPath, child.Name)
				}
				if filter.ShouldExclude(relPath) {
					continue
				}

				index[relPath] = &PathEntry{
					Path:        relPath,
					Name:        child.Name,
					IsDir:       child.IsFolder,
					RemoteMtime: child.ModifiedAt,
					Size:        child.Size,
					RemoteID:    child.ID,
					ContentHash: child.MD5,
				}

				if child.IsFolder {
					queue = append(queue, folderWork{id: child.ID, relPath: relPath})
				}
			}

			if next == "" {
				break
			}
			pageToken = next
		}
	}

	return index, nil
}
