package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"

	"github.com/kstrand/dashkit/common"
)

// googleTokenURL is where refresh tokens are exchanged. The interactive
// consent flow that minted the original token happens outside this module;
// we only ever renew.
const googleTokenURL = "https://oauth2.googleapis.com/token"

// LoadTokenFile reads a stored oauth2 token (the JSON the consent flow
// wrote).
func LoadTokenFile(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("parsing token file %s: %w", path, err)
	}
	return &tok, nil
}

// SaveTokenFile persists a refreshed token so the next process start does
// not need another refresh round-trip.
func SaveTokenFile(path string, tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0600)
}

// OAuthRefresher renews Google tokens with a client id/secret pair.
// Implements common.AuthClient.
type OAuthRefresher struct {
	conf *oauth2.Config
}

var _ common.AuthClient = (*OAuthRefresher)(nil)

// NewOAuthRefresher builds a refresher from the configured client
// credentials. Returns nil if they are not configured, which disables
// refresh but still allows using a token until it expires. The return type
// is the interface so that an unconfigured refresher is a nil interface
// value, not a typed-nil pointer boxed into one.
func NewOAuthRefresher(cfg *common.Config) common.AuthClient {
	clientID := cfg.GetString("calendar.client_id", "")
	clientSecret := cfg.GetString("calendar.client_secret", "")
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &OAuthRefresher{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: cfg.GetString("calendar.token_url", googleTokenURL),
			},
		},
	}
}

// RefreshToken exchanges a refresh token for a fresh access token.
func (r *OAuthRefresher) RefreshToken(refreshToken string) (*oauth2.Token, error) {
	src := r.conf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	return tok, nil
}
