package auth

import (
	"net/url"

	"golang.org/x/oauth2/clientcredentials"
)

// Conf configures authorization of telemetry source requests. Token is a
// static bearer token; the client credential fields enable the OAuth2 flow
// and take precedence.
type Conf struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURL      string   `json:"auth_url"`
	Scopes       []string `json:"scopes"`
	Audience     string   `json:"audience"`
	Token        string   `json:"token"`
}

// Enabled reports whether any authorization is configured.
func (c Conf) Enabled() bool { return c.oauth() || c.Token != "" }

func (c Conf) oauth() bool { return c.ClientID != "" && c.AuthURL != "" }

func (c Conf) toOauth2Config() clientcredentials.Config {
	cfg := clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.AuthURL,
		Scopes:       c.Scopes,
	}
	if c.Audience != "" {
		cfg.EndpointParams = url.Values{"audience": {c.Audience}}
	}
	return cfg
}
