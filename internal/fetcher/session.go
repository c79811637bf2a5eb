package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Amsmoox/tradebot/internal/model"
)

// SessionOptions configures the session fetcher.
type SessionOptions struct {
	LoginURL string
	Username string
	Password string
	// Form field names for the login POST. The FX Leaders login form uses
	// "log" / "pwd".
	UsernameField string
	PasswordField string

	UserAgent string
	// Timeout bounds the login POST. Page fetches keep the wrapped
	// fetcher's own timeout.
	Timeout time.Duration
}

// SessionFetcher authenticates against a login form before fetching, holding
// the session cookies across cycles. A login failure surfaces as AuthError
// and discards the session so the next cycle authenticates fresh.
type SessionFetcher struct {
	opts   SessionOptions
	inner  *HTTPFetcher
	client *http.Client

	mu       sync.Mutex
	loggedIn bool
}

// NewSessionFetcher wraps an HTTPFetcher with form-based session login.
// A cookie jar is attached to the wrapped fetcher's client so the conditional
// GET carries the session while keeping the client's transport settings.
func NewSessionFetcher(opts SessionOptions, inner *HTTPFetcher) (*SessionFetcher, error) {
	if opts.LoginURL == "" {
		return nil, eris.New("fetcher: session requires login_url")
	}
	if opts.UsernameField == "" {
		opts.UsernameField = "log"
	}
	if opts.PasswordField == "" {
		opts.PasswordField = "pwd"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: cookie jar")
	}
	inner.client.Jar = jar

	return &SessionFetcher{opts: opts, inner: inner, client: inner.client}, nil
}

// Fetch authenticates if no session is held, then performs the conditional
// GET through the wrapped fetcher. An auth failure never reaches the fetch.
func (f *SessionFetcher) Fetch(ctx context.Context, rawURL string, v model.Validators) (*Outcome, error) {
	if err := f.ensureSession(ctx); err != nil {
		return nil, err
	}

	out, err := f.inner.Fetch(ctx, rawURL, v)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) && (fe.StatusCode == http.StatusUnauthorized || fe.StatusCode == http.StatusForbidden) {
			// Session expired upstream; drop it so the next cycle re-logs-in.
			f.mu.Lock()
			f.loggedIn = false
			f.mu.Unlock()
		}
		return nil, err
	}
	return out, nil
}

func (f *SessionFetcher) ensureSession(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loggedIn {
		return nil
	}

	if f.opts.Username == "" || f.opts.Password == "" {
		return &AuthError{LoginURL: f.opts.LoginURL, Err: eris.New("missing credentials")}
	}

	form := url.Values{}
	form.Set(f.opts.UsernameField, f.opts.Username)
	form.Set(f.opts.PasswordField, f.opts.Password)

	loginCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(loginCtx, http.MethodPost, f.opts.LoginURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return &AuthError{LoginURL: f.opts.LoginURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return &AuthError{LoginURL: f.opts.LoginURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return &AuthError{LoginURL: f.opts.LoginURL, Err: eris.Errorf("login status %d", resp.StatusCode)}
	}

	// A login form that answers 200 with no session cookie rejected us.
	loginURL, _ := url.Parse(f.opts.LoginURL)
	if loginURL != nil && len(f.client.Jar.Cookies(loginURL)) == 0 {
		return &AuthError{LoginURL: f.opts.LoginURL, Err: eris.New("no session cookie set")}
	}

	f.loggedIn = true
	zap.L().Info("fetcher: session established", zap.String("login_url", f.opts.LoginURL))
	return nil
}
