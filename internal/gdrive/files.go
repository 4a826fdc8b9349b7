package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"
)

// FindOrCreateFolder returns the id of a folder with the given name under
// parentID, creating it if missing. An empty parentID means the Drive root.
// Idempotent: an existing folder is reused, never duplicated.
func (c *Client) FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	parent := parentID
	if parent == "" {
		parent = "root"
	}

	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), folderMime, parent)

	r, err := c.request(ctx)
	if err != nil {
		return "", err
	}

	var list fileList
	var errBody errorBody
	resp, err := r.
		SetQueryParam("q", query).
		SetQueryParam("fields", listFields).
		SetQueryParam("pageSize", "1").
		SetSuccessResult(&list).
		SetErrorResult(&errBody).
		Get(filesPath)
	if err != nil {
		return "", fmt.Errorf("gdrive: find folder %q: %w", name, err)
	}
	if resp.IsErrorState() {
		return "", apiError(resp, &errBody)
	}
	if len(list.Files) > 0 {
		return list.Files[0].ID, nil
	}

	return c.createFolder(ctx, name, parentID)
}

func (c *Client) createFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := map[string]any{
		"name":     name,
		"mimeType": folderMime,
	}
	if parentID != "" {
		meta["parents"] = []string{parentID}
	}

	r, err := c.request(ctx)
	if err != nil {
		return "", err
	}

	var created driveFile
	var errBody errorBody
	resp, err := r.
		SetQueryParam("fields", fileFields).
		SetBodyJsonMarshal(meta).
		SetSuccessResult(&created).
		SetErrorResult(&errBody).
		Post(filesPath)
	if err != nil {
		return "", fmt.Errorf("gdrive: create folder %q: %w", name, err)
	}
	if resp.IsErrorState() {
		return "", apiError(resp, &errBody)
	}

	slog.Debug("gdrive folder created", "name", name, "id", created.ID)
	return created.ID, nil
}

// ListChildren returns one page of a folder's direct children plus the token
// for the next page, empty when the listing is drained.
func (c *Client) ListChildren(ctx context.Context, folderID, pageToken string) ([]*File, string, error) {
	r, err := c.request(ctx)
	if err != nil {
		return nil, "", err
	}

	r.SetQueryParam("q", fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))).
		SetQueryParam("fields", listFields).
		SetQueryParam("pageSize", fmt.Sprintf("%d", listPageSize))
	if pageToken != "" {
		r.SetQueryParam("pageToken", pageToken)
	}

	var list fileList
	var errBody errorBody
	resp, err := r.
		SetSuccessResult(&list).
		SetErrorResult(&errBody).
		Get(filesPath)
	if err != nil {
		return nil, "", fmt.Errorf("gdrive: list children of %q: %w", folderID, err)
	}
	if resp.IsErrorState() {
		return nil, "", apiError(resp, &errBody)
	}

	files := make([]*File, 0, len(list.Files))
	for i := range list.Files {
		files = append(files, list.Files[i].toFile())
	}
	return files, list.NextPageToken, nil
}

// GetMetadata fetches one item's metadata by id.
func (c *Client) GetMetadata(ctx context.Context, id string) (*File, error) {
	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var file driveFile
	var errBody errorBody
	resp, err := r.
		SetQueryParam("fields", fileFields).
		SetSuccessResult(&file).
		SetErrorResult(&errBody).
		Get(filesPath + "/" + id)
	if err != nil {
		return nil, fmt.Errorf("gdrive: get metadata %q: %w", id, err)
	}
	if resp.IsErrorState() {
		return nil, apiError(resp, &errBody)
	}
	return file.toFile(), nil
}

// Download fetches an item's content bytes.
func (c *Client) Download(ctx context.Context, id string) ([]byte, error) {
	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var errBody errorBody
	resp, err := r.
		SetQueryParam("alt", "media").
		SetErrorResult(&errBody).
		Get(filesPath + "/" + id)
	if err != nil {
		return nil, fmt.Errorf("gdrive: download %q: %w", id, err)
	}
	if resp.IsErrorState() {
		return nil, apiError(resp, &errBody)
	}
	return resp.ToBytes()
}

// UploadParams describes one multipart upload.
type UploadParams struct {
	Name       string
	Body       []byte
	MimeType   string
	ParentID   string
	ExistingID string    // update in place when set
	ModifiedAt time.Time // stamped as the remote modifiedTime when non-zero
}

// Upload creates or updates a file using the multipart upload protocol:
// a JSON metadata part followed by the media part.
func (c *Client) Upload(ctx context.Context, p *UploadParams) (*File, error) {
	meta := map[string]any{}
	if p.ExistingID == "" {
		meta["name"] = p.Name
		if p.ParentID != "" {
			meta["parents"] = []string{p.ParentID}
		}
	}
	if !p.ModifiedAt.IsZero() {
		meta["modifiedTime"] = p.ModifiedAt.UTC().Format(time.RFC3339Nano)
	}

	body, contentType, err := multipartRelated(meta, p.Body, p.MimeType)
	if err != nil {
		return nil, fmt.Errorf("gdrive: build upload body: %w", err)
	}

	r, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var uploaded driveFile
	var errBody errorBody
	r.SetQueryParam("uploadType", "multipart").
		SetQueryParam("fields", fileFields).
		SetContentType(contentType).
		SetBodyBytes(body).
		SetSuccessResult(&uploaded).
		SetErrorResult(&errBody)

	if p.ExistingID != "" {
		respUpdate, err := r.Patch(uploadPath + "/" + p.ExistingID)
		if err != nil {
			return nil, fmt.Errorf("gdrive: update %q: %w", p.Name, err)
		}
		if respUpdate.IsErrorState() {
			return nil, apiError(respUpdate, &errBody)
		}
		return uploaded.toFile(), nil
	}

	respCreate, err := r.Post(uploadPath)
	if err != nil {
		return nil, fmt.Errorf("gdrive: upload %q: %w", p.Name, err)
	}
	if respCreate.IsErrorState() {
		return nil, apiError(respCreate, &errBody)
	}
	return uploaded.toFile(), nil
}

// Trash moves an item to the Drive trash instead of deleting it outright.
func (c *Client) Trash(ctx context.Context, id string) error {
	r, err := c.request(ctx)
	if err != nil {
		return err
	}

	var errBody errorBody
	resp, err := r.
		SetBodyJsonMarshal(map[string]any{"trashed": true}).
		SetErrorResult(&errBody).
		Patch(filesPath + "/" + id)
	if err != nil {
		return fmt.Errorf("gdrive: trash %q: %w", id, err)
	}
	if resp.IsErrorState() {
		return apiError(resp, &errBody)
	}
	return nil
}

// multipartRelated assembles a multipart/related body with a JSON metadata
// part and a media part, as the Drive upload endpoint expects.
func multipartRelated(meta map[string]any, media []byte, mediaType string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := w.CreatePart(metaHeader)
	if err != nil {
		return nil, "", err
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return nil, "", err
	}

	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", mediaType)
	mediaPart, err := w.CreatePart(mediaHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := mediaPart.Write(media); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	contentType := "multipart/related; boundary=" + w.Boundary()
	return buf.Bytes(), contentType, nil
}

// escapeQuery escapes single quotes and backslashes in Drive query literals.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
