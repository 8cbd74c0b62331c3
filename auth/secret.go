package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/afs"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// clientSecret mirrors the Google OAuth client secret file produced by the
// cloud console for installed (desktop) and web applications.
type clientSecret struct {
	Installed *clientSecretEntry `json:"installed"`
	Web       *clientSecretEntry `json:"web"`
}

type clientSecretEntry struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
	RedirectURIs []string `json:"redirect_uris"`
}

// LoadClientSecret reads a Google client secret document from the supplied
// URL (any afs scheme: file path, file://, https://, gs://) and builds the
// oauth2 config used for consent and refresh.
func LoadClientSecret(ctx context.Context, URL string, scopes []string) (*oauth2.Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load client secret %v: %w", URL, err)
	}
	return ParseClientSecret(data, scopes)
}

// ParseClientSecret builds an oauth2 config from client secret JSON.
func ParseClientSecret(data []byte, scopes []string) (*oauth2.Config, error) {
	secret := &clientSecret{}
	if err := json.Unmarshal(data, secret); err != nil {
		return nil, fmt.Errorf("invalid client secret document: %w", err)
	}
	entry := secret.Installed
	if entry == nil {
		entry = secret.Web
	}
	if entry == nil || entry.ClientID == "" {
		return nil, fmt.Errorf("client secret document defines no installed or web client")
	}
	endpoint := google.Endpoint
	if entry.AuthURI != "" && entry.TokenURI != "" {
		endpoint = oauth2.Endpoint{AuthURL: entry.AuthURI, TokenURL: entry.TokenURI}
	}
	return &oauth2.Config{
		ClientID:     entry.ClientID,
		ClientSecret: entry.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       append([]string(nil), scopes...),
	}, nil
}
