package tovala

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tovala_bridge/internal/logger"
)

// DefaultBases are the candidate API hosts, tried in order during login.
// Beta is preferred; prod is the fallback.
var DefaultBases = []string{
	"https://api.beta.tovala.com",
	"https://api.tovala.com",
}

const (
	loginPath   = "/v0/getToken"
	appIDHeader = "X-Tovala-AppID" // required by the upstream API on every call
	appIDValue  = "MAPP"

	callTimeout     = 10 * time.Second
	expirySkew      = 60 * time.Second // renew this long before actual expiry
	defaultTokenTTL = time.Hour        // assumed lifetime for tokens of unknown expiry
	fallbackExpiry  = 3600             // seconds, when the server omits expiresIn
)

// Credentials holds what the bridge authenticates with: either an
// email/password pair or a pre-supplied bearer token.
type Credentials struct {
	Email    string
	Password string
	Token    string
}

// Auth owns the bearer token lifecycle: the credential exchange, endpoint
// failover, expiry tracking and the user id decoded from the issued token.
// The first endpoint that authenticates is pinned for the rest of the session.
type Auth struct {
	creds Credentials
	bases []string
	httpc *http.Client
	log   *logger.Logger
	now   func() time.Time

	// mu serializes login attempts: concurrent callers block here and
	// re-check token validity, so at most one exchange is in flight.
	mu       sync.Mutex
	token    string
	tokenExp time.Time
	base     string
	userID   int
}

// NewAuth builds an Auth over the given candidate bases (DefaultBases when
// empty). No network traffic happens until EnsureLoggedIn.
func NewAuth(creds Credentials, bases []string, log *logger.Logger) *Auth {
	if len(bases) == 0 {
		bases = DefaultBases
	}
	return &Auth{
		creds: creds,
		bases: bases,
		httpc: &http.Client{Timeout: callTimeout},
		log:   log,
		now:   time.Now,
	}
}

// UserID returns the user id decoded from the token, or 0 if none resolved.
func (a *Auth) UserID() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userID
}

// Base returns the pinned API base, empty before the first successful login.
func (a *Auth) Base() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.base
}

// session returns the token, base and user id as one consistent read.
func (a *Auth) session() (token, base string, userID int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token, a.base, a.userID
}

// EnsureLoggedIn is a no-op while the current token is more than expirySkew
// away from expiring. Otherwise it performs a login attempt across the
// candidate endpoints. A failed attempt leaves existing session state intact.
func (a *Auth) EnsureLoggedIn(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.tokenExp.After(a.now().Add(expirySkew)) {
		return nil
	}
	return a.loginLocked(ctx)
}

// loginLocked runs one login attempt. Caller must hold a.mu.
func (a *Auth) loginLocked(ctx context.Context) error {
	if a.creds.Token == "" && (a.creds.Email == "" || a.creds.Password == "") {
		return ErrMissingCredentials
	}

	// A pre-supplied token of unknown expiry: assume a conservative
	// lifetime, pin the first base and decode the id without any network.
	if a.creds.Token != "" && a.tokenExp.IsZero() {
		a.token = a.creds.Token
		a.tokenExp = a.now().Add(defaultTokenTTL)
		a.base = a.bases[0]
		a.userID = decodeUserID(a.creds.Token)
		a.log.Debugw("using provided token with assumed expiry", "user_id", a.userID)
		return nil
	}

	var lastErr error
	for _, base := range a.bases {
		token, expiresIn, err := a.exchange(ctx, base)
		if err != nil {
			// Wrong credentials fail everywhere; a rate limit must not
			// be amplified by hammering the next host.
			if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrRateLimited) {
				a.log.Errorw("login rejected", "base", base, "err", err)
				return err
			}
			lastErr = err
			a.log.Warnw("login attempt failed, trying next base", "base", base, "err", err)
			continue
		}

		a.token = token
		a.tokenExp = a.now().Add(time.Duration(expiresIn) * time.Second)
		a.base = base
		a.userID = decodeUserID(token)
		if a.userID == 0 {
			a.log.Warnw("could not extract user id from token")
		}
		a.log.Infow("logged in", "base", base, "user_id", a.userID)
		return nil
	}

	if lastErr != nil {
		return connFailed(lastErr)
	}
	return ErrConnectionFailed
}

// exchange performs the credential exchange against one base and classifies
// the outcome.
func (a *Auth) exchange(ctx context.Context, base string) (token string, expiresIn int, err error) {
	body, err := json.Marshal(map[string]string{
		"email":    a.creds.Email,
		"password": a.creds.Password,
		"type":     "user",
	})
	if err != nil {
		return "", 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+loginPath, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(appIDHeader, appIDValue)

	resp, err := a.httpc.Do(req)
	if err != nil {
		return "", 0, connFailed(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", 0, fmt.Errorf("%w: %s", ErrRateLimited, string(raw))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", 0, fmt.Errorf("%w: HTTP %d", ErrInvalidCredentials, resp.StatusCode)
	case resp.StatusCode >= 400:
		return "", 0, &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	var payload struct {
		Token       string `json:"token"`
		AccessToken string `json:"accessToken"`
		JWT         string `json:"jwt"`
		ExpiresIn   int    `json:"expiresIn"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", 0, errNoToken
	}

	token = firstNonEmpty(payload.Token, payload.AccessToken, payload.JWT)
	if token == "" {
		return "", 0, errNoToken
	}

	expiresIn = payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = fallbackExpiry
	}
	return token, expiresIn, nil
}

// errNoToken marks a 2xx login response without a recognizable token field;
// the next candidate endpoint is tried.
var errNoToken = errors.New("no token field in login response")

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// decodeUserID reads the userId claim out of the token payload without
// verifying the signature. The token is trusted because it came from the
// login exchange itself. Any malformed structure yields 0 instead of an
// error: a missing id degrades functionality but must not break the session.
func decodeUserID(token string) int {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0
	}
	v, ok := claims["userId"]
	if !ok {
		return 0
	}
	switch id := v.(type) {
	case float64:
		if id > 0 {
			return int(id)
		}
	case json.Number:
		if n, err := id.Int64(); err == nil && n > 0 {
			return int(n)
		}
	}
	return 0
}
