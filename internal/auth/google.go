package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUser is the portion of Google's userinfo response this backend
// cares about. The subject ID is the stable external identity everything
// else keys off — it feeds key derivation and the users.google_id column.
type GoogleUser struct {
	Sub     string `json:"sub"`     // Google's stable subject ID, never changes
	Email   string `json:"email"`   // primary email
	Name    string `json:"name"`    // display name (may be empty)
	Picture string `json:"picture"` // profile picture URL
}

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization
// Code flow: redirect to Google, receive a short-lived code on the
// callback, exchange it server-to-server for an access token, and call the
// userinfo endpoint for the profile.
type GoogleProvider struct {
	config *oauth2.Config
}

// NewGoogleProvider creates a GoogleProvider with the given credentials.
// callbackURL must exactly match one of the authorized redirect URIs
// configured in the Google Cloud console.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL returns the Google authorization URL for the given CSRF state.
// The caller stores the state in a short-lived cookie and verifies it on
// callback.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a Google user profile:
// code → access token (server-to-server, using the client secret) →
// userinfo endpoint → GoogleUser.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleUser, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an http.Client that attaches the
	// bearer token to every request.
	client := p.config.Client(ctx, token)

	resp, err := client.Get("https://openidconnect.googleapis.com/v1/userinfo")
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: Google userinfo returned status %d", resp.StatusCode)
	}

	var gUser GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&gUser); err != nil {
		return nil, fmt.Errorf("auth: decoding Google userinfo response: %w", err)
	}

	if gUser.Sub == "" || gUser.Email == "" {
		return nil, fmt.Errorf("auth: Google returned an incomplete profile")
	}

	return &gUser, nil
}
