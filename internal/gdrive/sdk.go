// Package gdrive is a minimal Google Drive v3 REST client covering the
// operations the sync core needs: folder find-or-create, paginated listing,
// metadata, download, multipart upload and trash.
package gdrive

import (
	"context"
	"fmt"
	"time"

	"github.com/imroc/req/v3"
	"golang.org/x/oauth2"

	"github.com/vaultsync/vaultsync/internal/version"
)

const (
	baseURL      = "https://www.googleapis.com"
	filesPath    = "/drive/v3/files"
	uploadPath   = "/upload/drive/v3/files"
	fileFields   = "id,name,mimeType,size,modifiedTime,md5Checksum,trashed"
	listFields   = "nextPageToken,files(id,name,mimeType,size,modifiedTime,md5Checksum,trashed)"
	folderMime   = "application/vnd.google-apps.folder"
	listPageSize = 1000
)

// Client talks to the Drive API with bearer tokens from a TokenSource, so
// refreshes happen transparently between calls.
type Client struct {
	http   *req.Client
	tokens oauth2.TokenSource
}

// New creates a Drive client.
func New(tokens oauth2.TokenSource) *Client {
	httpClient := req.C().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Minute).
		SetUserAgent("VaultSync/" + version.Version).
		SetCommonRetryCount(2).
		SetCommonRetryBackoffInterval(1*time.Second, 5*time.Second)

	return &Client{
		http:   httpClient,
		tokens: tokens,
	}
}

// request returns a prepared request with a fresh bearer token.
func (c *Client) request(ctx context.Context) (*req.Request, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCredentials, err)
	}
	return c.http.R().
		SetContext(ctx).
		SetBearerAuthToken(tok.AccessToken), nil
}
