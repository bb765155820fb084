// Package auth obtains and caches the Google OAuth token used by the
// calendar mirror.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	// ClientSecretsFile is the credentials.json downloaded from the Google
	// Cloud console, kept in the config directory.
	ClientSecretsFile = "credentials.json"

	// TokenFile caches the access and refresh token next to it.
	TokenFile = "token.json"

	// LocalhostAuthPort is where the redirect listener waits for the code.
	LocalhostAuthPort = "6789"

	authTimeout = 5 * time.Minute
)

// Scopes are the calendar permissions the mirror asks for.
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// GetConfig reads the client secrets from dir and pins a localhost
// redirect to LocalhostAuthPort.
func GetConfig(dir string, scopes []string) (*oauth2.Config, error) {
	clientSecretsFile := filepath.Join(dir, ClientSecretsFile)
	b, err := os.ReadFile(clientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", clientSecretsFile, err)
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = normalizeRedirect(config.RedirectURL)
	return config, nil
}

// normalizeRedirect forces localhost and out-of-band redirects onto the
// local listener. Anything else is kept as is.
func normalizeRedirect(redirect string) string {
	if redirect == "urn:ietf:wg:oauth:2.0:oob" || redirect == "" {
		fixed := fmt.Sprintf("http://localhost:%s/oauth2callback", LocalhostAuthPort)
		zap.L().Info("overriding redirect url", zap.String("from", redirect), zap.String("to", fixed))
		return fixed
	}

	parsed, err := url.Parse(redirect)
	if err != nil {
		zap.L().Warn("could not parse redirect url, using it as is", zap.String("url", redirect), zap.Error(err))
		return redirect
	}
	host := parsed.Hostname()
	if host != "localhost" && host != "127.0.0.1" {
		zap.L().Warn("redirect url is not a localhost callback", zap.String("url", redirect))
		return redirect
	}
	if port := parsed.Port(); port != "" && port != LocalhostAuthPort {
		zap.L().Warn("redirect port does not match the local listener, forcing it",
			zap.String("port", port), zap.String("expected", LocalhostAuthPort))
	}
	parsed.Host = net.JoinHostPort(host, LocalhostAuthPort)
	return parsed.String()
}

// GetClient returns an *http.Client that refreshes its token on its own.
// Without a cached token the browser flow runs first.
func GetClient(ctx context.Context, dir string, scopes []string) (*http.Client, error) {
	config, err := GetConfig(dir, scopes)
	if err != nil {
		return nil, err
	}

	tokenFile := filepath.Join(dir, TokenFile)
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		zap.L().Info("no cached token, starting web authorization", zap.String("path", tokenFile))
		tok, err = getTokenFromWeb(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to get token from web: %w", err)
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}

	// Keep the cache current when the refresh token rotates.
	source := oauth2.ReuseTokenSource(tok, &savingSource{
		base:  config.TokenSource(ctx, tok),
		path:  tokenFile,
		token: tok,
	})
	return oauth2.NewClient(ctx, source), nil
}

type savingSource struct {
	base  oauth2.TokenSource
	path  string
	token *oauth2.Token
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.token.AccessToken || tok.RefreshToken != s.token.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			zap.L().Warn("could not cache refreshed token", zap.Error(err))
		}
		s.token = tok
	}
	return tok, nil
}

// getTokenFromWeb runs the authorization code flow with a one-shot local
// listener capturing the redirect.
func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	listener, err := net.Listen("tcp", net.JoinHostPort("localhost", LocalhostAuthPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", LocalhostAuthPort, err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler:      callbackHandler(codeCh, errCh),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	defer server.Close()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- fmt.Errorf("HTTP server error: %w", err):
			default:
			}
		}
	}()

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Open the following URL in your browser to authorize taskmaster:\n%s\n", authURL)
	zap.L().Info("waiting for authorization code", zap.String("redirect", config.RedirectURL))

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	select {
	case code := <-codeCh:
		tok, err := config.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization timed out: %w", ctx.Err())
	}
}

func callbackHandler(codeCh chan<- string, errCh chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Authorization code not found", http.StatusBadRequest)
			select {
			case errCh <- errors.New("authorization code not found in redirect URL"):
			default:
			}
			return
		}
		fmt.Fprint(w, "Authentication successful! You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", file, err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	zap.L().Info("saving authentication token", zap.String("path", path))
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// ResetToken removes the cached token so the next GetClient asks again.
func ResetToken(dir string) error {
	tokenFile := filepath.Join(dir, TokenFile)
	err := os.Remove(tokenFile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete token file %s: %w", tokenFile, err)
	}
	return nil
}

// GetCalendarService returns an authenticated Calendar service.
func GetCalendarService(ctx context.Context, dir string) (*calendar.Service, error) {
	client, err := GetClient(ctx, dir, Scopes)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client for Calendar API: %w", err)
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Google Calendar service: %w", err)
	}
	return srv, nil
}
