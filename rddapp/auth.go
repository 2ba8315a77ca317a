package rddapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/script/v1"
	"google.golang.org/api/sheets/v4"
)

// Scopes requested during consent.
var Scopes = []string{
	drive.DriveScope,
	sheets.SpreadsheetsScope,
	script.ScriptProjectsScope,
}

// Authenticator produces an authorized token source from the client secret
// and the cached user token, running the browser consent when needed.
type Authenticator struct {
	CredentialsFile string
	TokenFile       string
	CallbackPort    int
	ConsentTimeout  time.Duration

	// OpenURL opens the consent page. Defaults to the system browser.
	OpenURL func(url string) error
	// Out receives the instructions shown to the user during consent.
	Out    io.Writer
	Logger *slog.Logger
}

// NewAuthenticator creates an Authenticator from cfg.
func NewAuthenticator(cfg *Config, out io.Writer, logger *slog.Logger) (*Authenticator, error) {
	timeout, err := cfg.consentTimeout()
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		CredentialsFile: cfg.CredentialsFile,
		TokenFile:       cfg.TokenFile,
		CallbackPort:    cfg.CallbackPort,
		ConsentTimeout:  timeout,
		OpenURL:         browser.OpenURL,
		Out:             out,
		Logger:          logger,
	}, nil
}

// TokenSource returns a token source that refreshes as needed and writes
// every new token back to the token file.
//
// A missing client secret file yields ErrCredentialsNotFound before any
// network call is made.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	cfg, err := a.oauthConfig()
	if err != nil {
		return nil, err
	}

	tok, err := loadToken(a.TokenFile)
	if err != nil {
		return nil, err
	}

	switch {
	case tok != nil && tok.Valid():
		a.Logger.Debug("using cached token", slog.String("path", a.TokenFile))
	case tok != nil && tok.RefreshToken != "":
		a.Logger.Info("cached token expired, refreshing", slog.Time("expiry", tok.Expiry))
		tok, err = cfg.TokenSource(ctx, tok).Token()
		if err != nil {
			return nil, fmt.Errorf("failed to refresh token: %w", err)
		}
		if err := saveToken(a.TokenFile, tok); err != nil {
			return nil, err
		}
	default:
		tok, err = a.consent(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := saveToken(a.TokenFile, tok); err != nil {
			return nil, err
		}
		a.Logger.Info("token saved", slog.String("path", a.TokenFile), slog.Time("expiry", tok.Expiry))
	}

	return &persistingTokenSource{
		src:    cfg.TokenSource(ctx, tok),
		path:   a.TokenFile,
		last:   tok.AccessToken,
		logger: a.Logger,
	}, nil
}

// oauthConfig reads the client secret file.
func (a *Authenticator) oauthConfig() (*oauth2.Config, error) {
	b, err := os.ReadFile(a.CredentialsFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", a.CredentialsFile, ErrCredentialsNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret file %s: %w", a.CredentialsFile, err)
	}
	return cfg, nil
}

// callbackResult carries the authorization code or the error from the
// callback handler.
type callbackResult struct {
	code string
	err  error
}

// consent runs the authorization code flow with PKCE against a loopback
// redirect and exchanges the code for a token.
func (a *Authenticator) consent(ctx context.Context, base *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", a.CallbackPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	cfg := *base
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", ln.Addr().(*net.TCPAddr).Port)

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	results := make(chan callbackResult, 1)

	server := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case results <- callbackResult{err: fmt.Errorf("callback server error: %w", err)}:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("failed to shut down callback server", slog.String("error", err.Error()))
		}
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	a.Logger.Info("starting browser consent", slog.String("redirect", cfg.RedirectURL))

	fmt.Fprintln(a.Out, "Your browser should open to grant access to Google Drive, Sheets and Apps Script...")
	if err := a.OpenURL(authURL); err != nil {
		fmt.Fprintf(a.Out, "\nIf your browser didn't open, please open this URL manually:\n\n%s\n\n", authURL)
	}

	timer := time.NewTimer(a.ConsentTimeout)
	defer timer.Stop()

	var code string
	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		code = res.code
	case <-timer.C:
		return nil, ErrConsentTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code for token: %w", err)
	}
	return tok, nil
}

// callbackHandler validates the redirect and forwards the outcome. Requests
// with a wrong state are rejected and ignored. Only the first outcome is kept.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	send := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		// A request without our state did not come from the consent page
		// and must not end the wait.
		if r.FormValue("state") != state {
			http.Error(w, "Invalid state parameter.", http.StatusBadRequest)
			return
		}

		if errMsg := r.FormValue("error"); errMsg != "" {
			send(callbackResult{err: fmt.Errorf("authentication failed: %s", errMsg)})
			fmt.Fprint(w, "Authentication failed. You can close this window.")
			return
		}

		code := r.FormValue("code")
		if code == "" {
			send(callbackResult{err: errors.New("no authorization code received")})
			http.Error(w, "Missing authorization code.", http.StatusBadRequest)
			return
		}

		send(callbackResult{code: code})
		fmt.Fprint(w, "✅ Authentication successful! You can now close this browser window and return to the terminal.")
	})
}

// persistingTokenSource writes refreshed tokens back to disk.
type persistingTokenSource struct {
	mu     sync.Mutex
	src    oauth2.TokenSource
	path   string
	last   string
	logger *slog.Logger
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != p.last {
		if err := saveToken(p.path, tok); err != nil {
			// the token is still usable for this run
			p.logger.Warn("failed to persist refreshed token", slog.String("error", err.Error()))
		} else {
			p.last = tok.AccessToken
		}
	}
	return tok, nil
}
