package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vaultsync/vaultsync/internal/client/sync"
	"github.com/vaultsync/vaultsync/internal/gdrive"
)

// driveStore adapts the Drive SDK to the sync core's RemoteStore port,
// translating wire types and mapping credential failures onto the core's
// error taxonomy.
type driveStore struct {
	sdk *gdrive.Client
}

var _ sync.RemoteStore = (*driveStore)(nil)

func (d *driveStore) FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	id, err := d.sdk.FindOrCreateFolder(ctx, name, parentID)
	return id, mapErr(err)
}

func (d *driveStore) ListChildren(ctx context.Context, folderID, pageToken string) ([]*sync.RemoteEntry, string, error) {
	files, next, err := d.sdk.ListChildren(ctx, folderID, pageToken)
	if err != nil {
		return nil, "", mapErr(err)
	}

	entries := make([]*sync.RemoteEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, toRemoteEntry(f))
	}
	return entries, next, nil
}

func (d *driveStore) GetMetadata(ctx context.Context, id string) (*sync.RemoteEntry, error) {
	f, err := d.sdk.GetMetadata(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return toRemoteEntry(f), nil
}

func (d *driveStore) Download(ctx context.Context, id string) ([]byte, error) {
	body, err := d.sdk.Download(ctx, id)
	return body, mapErr(err)
}

func (d *driveStore) Upload(ctx context.Context, up *sync.UploadRequest) (*sync.RemoteEntry, error) {
	params := &gdrive.UploadParams{
		Name:       up.Name,
		Body:       up.Body,
		MimeType:   up.MimeType,
		ParentID:   up.ParentID,
		ExistingID: up.ExistingID,
	}
	if up.ModifiedAt > 0 {
		params.ModifiedAt = time.UnixMilli(up.ModifiedAt)
	}

	f, err := d.sdk.Upload(ctx, params)
	if err != nil {
		return nil, mapErr(err)
	}
	return toRemoteEntry(f), nil
}

func (d *driveStore) Trash(ctx context.Context, id string) error {
	return mapErr(d.sdk.Trash(ctx, id))
}

func toRemoteEntry(f *gdrive.File) *sync.RemoteEntry {
	return &sync.RemoteEntry{
		ID:         f.ID,
		Name:       f.Name,
		IsFolder:   f.IsFolder,
		ModifiedAt: f.ModifiedAt.UnixMilli(),
		Size:       f.Size,
		MD5:        f.MD5,
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gdrive.ErrNoCredentials) {
		return fmt.Errorf("%w: %v", sync.ErrAuth, err)
	}
	return err
}
