package sync

// PathEntry describes one item in a tree index. Timestamps are unix
// milliseconds; zero means the entry has no counterpart on that side.
type PathEntry struct {
	Path        string // normalized, slash-separated, relative to the tree root
	Name        string // last path segment
	IsDir       bool
	LocalMtime  int64
	RemoteMtime int64
	Size        int64
	RemoteID    string // opaque id assigned by the remote store, empty until it exists there
	ContentHash string // remote-supplied checksum, not guaranteed present
}

// Index is a flat mapping from relative path to metadata for one tree.
// It is rebuilt on every run and never persisted.
type Index map[string]*PathEntry
