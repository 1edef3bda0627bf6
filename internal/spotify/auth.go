package spotify

import (
	"context"
	"net/http"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// NewHTTPClient returns a client that refreshes access tokens from a
// long-lived refresh token.
func NewHTTPClient(ctx context.Context, clientID, clientSecret, refreshToken string) *http.Client {
	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
		Scopes: []string{
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistModifyPublic,
		},
	}
	return config.Client(ctx, &oauth2.Token{RefreshToken: refreshToken})
}
