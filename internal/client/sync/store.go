package sync

import "context"

// RemoteEntry is one item as reported by the remote store.
type RemoteEntry struct {
	ID         string
	Name       string
	IsFolder   bool
	ModifiedAt int64 // unix millis
	Size       int64
	MD5        string
}

// UploadRequest carries one file upload. When ExistingID is set the upload
// updates that item in place instead of creating a new one.
type UploadRequest struct {
	Name       string
	Body       []byte
	MimeType   string
	ParentID   string
	ExistingID string
	ModifiedAt int64 // unix millis, stamped on the remote item
}

// RemoteStore is the remote object-store contract the core consumes.
// Implementations surface 4xx/5xx responses as typed errors, never silently.
type RemoteStore interface {
	FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error)
	ListChildren(ctx context.Context, folderID, pageToken string) ([]*RemoteEntry, string, error)
	GetMetadata(ctx context.Context, id string) (*RemoteEntry, error)
	Download(ctx context.Context, id string) ([]byte, error)
	Upload(ctx context.Context, up *UploadRequest) (*RemoteEntry, error)
	Trash(ctx context.Context, id string) error
}

// LocalEntry is one item as reported by the local store.
type LocalEntry struct {
	Path  string // normalized, relative to the vault root
	IsDir bool
	Mtime int64 // unix millis
	Size  int64
}

// LocalStore is the local filesystem contract the core consumes.
// All paths are normalized and relative to the vault root.
type LocalStore interface {
	ListAll() ([]*LocalEntry, error)
	Stat(path string) (*LocalEntry, error)
	ReadBytes(path string) ([]byte, error)
	WriteBytes(path string, data []byte, mtime int64) error
	EnsureDir(path string) error
	Exists(path string) bool
	RemoveEmptyDir(path string) error
	MoveToTrash(path string) error
}
