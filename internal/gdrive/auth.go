package gdrive

import (
	"context"
	"fmt"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

const (
	keyringService = "vaultsync"

	authURL  = "https://accounts.google.com/o/oauth2/auth"
	tokenURL = "https://oauth2.googleapis.com/token"

	// drive.file scope: only items this app created or was granted
	driveFileScope = "https://www.googleapis.com/auth/drive.file"
)

// OAuthConfig returns the installed-app OAuth config for the Drive file
// scope.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
		Scopes:      []string{driveFileScope},
		RedirectURL: "urn:ietf:wg:oauth:2.0:oob",
	}
}

// TokenSource builds a self-refreshing token source from a stored refresh
// token.
func TokenSource(ctx context.Context, cfg *oauth2.Config, refreshToken string) oauth2.TokenSource {
	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}

// SaveRefreshToken stores a refresh token in the system keyring.
func SaveRefreshToken(account, refreshToken string) error {
	if err := keyring.Set(keyringService, account, refreshToken); err != nil {
		return fmt.Errorf("gdrive: save refresh token: %w", err)
	}
	return nil
}

// LoadRefreshToken reads a refresh token from the system keyring.
func LoadRefreshToken(account string) (string, error) {
	token, err := keyring.Get(keyringService, account)
	if err != nil {
		return "", fmt.Errorf("%w: keyring: %v", ErrNoCredentials, err)
	}
	return token, nil
}

// DeleteRefreshToken removes the stored refresh token.
func DeleteRefreshToken(account string) error {
	if err := keyring.Delete(keyringService, account); err != nil {
		return fmt.Errorf("gdrive: delete refresh token: %w", err)
	}
	return nil
}
