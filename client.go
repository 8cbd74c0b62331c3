package bqlink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/viant/scy/auth/authorizer"
	"github.com/viant/scy/auth/flow"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/bqlink/bqlink/auth"
	"github.com/bqlink/bqlink/auth/store"
	"github.com/bqlink/bqlink/client"
)

// DefaultEndpointURL is the BigQuery MCP endpoint.
const DefaultEndpointURL = "https://bigquery.googleapis.com/mcp"

// DefaultScopes are requested at consent time; the granted set is persisted
// with the credential.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/bigquery",
	"https://www.googleapis.com/auth/bigquery.readonly",
	"https://www.googleapis.com/auth/cloud-platform",
}

// Options defines options for configuring the client.
type Options struct {
	Name            string       `yaml:"name" json:"name,omitempty" short:"n" long:"name" description:"client name"`
	Version         string       `yaml:"version,omitempty" json:"version,omitempty" long:"version" description:"client version"`
	ProtocolVersion string       `yaml:"protocol,omitempty" json:"protocol,omitempty" long:"protocol" description:"protocol version"`
	URL             string       `yaml:"url,omitempty" json:"url,omitempty" short:"u" long:"url" description:"tool server endpoint url"`
	Project         string       `yaml:"project,omitempty" json:"project,omitempty" short:"P" long:"project" description:"google cloud project id"`
	Auth            *AuthOptions `yaml:"auth,omitempty" json:"auth,omitempty"`
}

// AuthOptions defines authentication options.
type AuthOptions struct {
	ClientSecretURL string   `yaml:"clientSecretURL,omitempty" json:"clientSecretURL,omitempty" short:"s" long:"secret" description:"google oauth client secret file"`
	OAuth2ConfigURL string   `yaml:"oauth2ConfigURL,omitempty" json:"oauth2ConfigURL,omitempty" short:"c" long:"config" description:"scy oauth2 config url"`
	EncryptionKey   string   `yaml:"encryptionKey,omitempty" json:"encryptionKey,omitempty" short:"k" long:"key" description:"scy config encryption key"`
	TokenURL        string   `yaml:"tokenURL,omitempty" json:"tokenURL,omitempty" long:"token" description:"credential cache location"`
	Scopes          []string `yaml:"scopes,omitempty" json:"scopes,omitempty" long:"scope" description:"oauth scopes"`
}

func (o *Options) Init() {
	if o.Name == "" {
		o.Name = "bqlink"
		o.Version = "0.1"
	}
	if o.URL == "" {
		o.URL = DefaultEndpointURL
	}
	if o.Auth == nil {
		o.Auth = &AuthOptions{}
	}
	if o.Auth.TokenURL == "" {
		home, _ := os.UserHomeDir()
		o.Auth.TokenURL = filepath.Join(home, ".bqlink", "token.json")
	}
	if len(o.Auth.Scopes) == 0 {
		o.Auth.Scopes = DefaultScopes
	}
}

// Validate reports configuration the client cannot run without.
func (o *Options) Validate() error {
	if o.Project == "" {
		return fmt.Errorf("project is required")
	}
	if o.Auth.ClientSecretURL == "" && o.Auth.OAuth2ConfigURL == "" {
		return fmt.Errorf("auth configuration is required: supply a client secret or an oauth2 config url")
	}
	return nil
}

// New wires the token manager and the session client together. The manager
// owns the credential and its persisted copy; the client holds only a
// supplier reference and never mutates the credential itself.
func New(ctx context.Context, options *Options, logger *zap.Logger, clientOptions ...client.Option) (*client.Client, *auth.Manager, error) {
	options.Init()
	if err := options.Validate(); err != nil {
		return nil, nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	oauthConfig, err := options.oauthConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	manager := auth.New(oauthConfig, store.NewFileStore(options.Auth.TokenURL),
		auth.WithAuthFlow(flow.NewBrowserFlow()))

	opts := append([]client.Option{
		client.WithLogger(logger),
		client.WithClientInfo(options.Name, options.Version),
	}, clientOptions...)
	if options.ProtocolVersion != "" {
		opts = append(opts, client.WithProtocolVersion(options.ProtocolVersion))
	}
	return client.New(options.URL, options.Project, manager, opts...), manager, nil
}

func (o *Options) oauthConfig(ctx context.Context) (*oauth2.Config, error) {
	if o.Auth.ClientSecretURL != "" {
		return auth.LoadClientSecret(ctx, o.Auth.ClientSecretURL, o.Auth.Scopes)
	}
	configURL := o.Auth.OAuth2ConfigURL
	if o.Auth.EncryptionKey != "" {
		configURL += "|" + o.Auth.EncryptionKey
	}
	anAuthorizer := authorizer.New()
	oauthCfg := &authorizer.OAuthConfig{ConfigURL: configURL}
	if err := anAuthorizer.EnsureConfig(ctx, oauthCfg); err != nil {
		return nil, fmt.Errorf("failed to load oauth2 config %q: %w", o.Auth.OAuth2ConfigURL, err)
	}
	if len(oauthCfg.Config.Scopes) == 0 {
		oauthCfg.Config.Scopes = o.Auth.Scopes
	}
	return oauthCfg.Config, nil
}
