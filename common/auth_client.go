package common

import "golang.org/x/oauth2"

// AuthClient defines the ability to refresh an OAuth2 token. The calendar
// source uses it to renew expired credentials; the interactive consent flow
// that produced the original token lives outside this module.
type AuthClient interface {
	// RefreshToken attempts to refresh using the given refresh token string.
	// Returns a new *oauth2.Token on success, or an error if refresh fails.
	RefreshToken(refreshToken string) (*oauth2.Token, error)
}
