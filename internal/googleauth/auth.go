// File path: internal/googleauth/auth.go
package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	drive "google.golang.org/api/drive/v3"
	gmail "google.golang.org/api/gmail/v1"
	sheets "google.golang.org/api/sheets/v4"
)

// Scopes covers every Google surface the automation touches: reading
// calendars, managing the Drive folder tree and build files, and sending
// notification mail.
var Scopes = []string{
	gcal.CalendarReadonlyScope,
	drive.DriveScope,
	sheets.SpreadsheetsScope,
	gmail.GmailSendScope,
}

// Client builds an authenticated HTTP client from an OAuth credentials file
// and a previously saved token. Token acquisition is interactive and happens
// out of band; a service run can only consume a token that already exists.
func Client(ctx context.Context, credentialsPath, tokenPath string) (*http.Client, error) {
	raw, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(raw, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	token, err := loadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("load token (run the authorize flow first): %w", err)
	}
	// TokenSource refreshes expired tokens transparently; persist refreshes
	// so a restart does not need a fresh grant.
	source := conf.TokenSource(ctx, token)
	return oauth2.NewClient(ctx, &savingSource{wrapped: source, path: tokenPath, last: token}), nil
}

// AuthURL returns the consent URL for the one-time interactive grant.
func AuthURL(credentialsPath string) (string, error) {
	raw, err := os.ReadFile(credentialsPath)
	if err != nil {
		return "", fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(raw, Scopes...)
	if err != nil {
		return "", fmt.Errorf("parse credentials: %w", err)
	}
	return conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline), nil
}

// Exchange redeems an auth code from the consent flow and saves the token.
func Exchange(ctx context.Context, credentialsPath, tokenPath, code string) error {
	raw, err := os.ReadFile(credentialsPath)
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(raw, Scopes...)
	if err != nil {
		return fmt.Errorf("parse credentials: %w", err)
	}
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange auth code: %w", err)
	}
	return saveToken(tokenPath, token)
}

func loadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// savingSource writes the token back to disk whenever the wrapped source
// hands out a refreshed one.
type savingSource struct {
	wrapped oauth2.TokenSource
	path    string
	last    *oauth2.Token
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	token, err := s.wrapped.Token()
	if err != nil {
		return nil, err
	}
	if s.last == nil || token.AccessToken != s.last.AccessToken {
		s.last = token
		// A failed save only loses persistence; the token itself is valid.
		_ = saveToken(s.path, token)
	}
	return token, nil
}
