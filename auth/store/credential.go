package store

import (
	"time"

	"golang.org/x/oauth2"
)

// expiryLeeway guards against clock skew and in-flight latency: a token
// this close to expiry is treated as expired and refreshed eagerly.
const expiryLeeway = 30 * time.Second

// Credential is the persisted bearer credential. A credential is either
// valid (has an unexpired access token), refreshable (expired but carries
// a refresh token), or invalid (neither) - exactly one holds at any instant.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// Valid reports whether the access token is present and not expired at now.
func (c *Credential) Valid(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	if c.Expiry.IsZero() {
		return true
	}
	return now.Add(expiryLeeway).Before(c.Expiry)
}

// Refreshable reports whether an expired credential can still be exchanged
// for a new access token.
func (c *Credential) Refreshable() bool {
	return c != nil && c.RefreshToken != ""
}

// Token adapts the credential to the oauth2 token shape used by refresh.
func (c *Credential) Token() *oauth2.Token {
	if c == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	ret := *c
	ret.Scopes = append([]string(nil), c.Scopes...)
	return &ret
}

// FromToken builds a credential from a token endpoint response, preserving
// the scopes granted at consent time.
func FromToken(token *oauth2.Token, scopes []string) *Credential {
	if token == nil {
		return nil
	}
	return &Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Scopes:       append([]string(nil), scopes...),
	}
}
