package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/spotibridge/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

const (
	stateCookieName = "spotify.state"
	stateTTL        = 10 * time.Minute
	sessionIssuer   = "spotibridge"
)

// sessionClaims is the payload of the session cookie. Subject is the credential ID.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// SessionManager issues and reads the signed browser session cookie and the OAuth state cookie.
type SessionManager struct {
	secret []byte
	name   string
	domain string
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a [SessionManager] from config. The secret must not be empty.
func NewSessionManager(cfg shared.SessionConfig) (*SessionManager, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: session secret is required", shared.ErrInvalidConfig)
	}

	name := cfg.CookieName
	if name == "" {
		name = "spotify.sid"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	return &SessionManager{
		secret: []byte(cfg.Secret),
		name:   name,
		domain: cfg.CookieDomain,
		secure: cfg.Secure,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue sets a session cookie bound to credentialID.
func (s *SessionManager) Issue(w http.ResponseWriter, credentialID string) error {
	now := s.now()
	claims := sessionClaims{jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   credentialID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}

	http.SetCookie(w, s.cookie(s.name, signed, int(s.ttl.Seconds())))
	return nil
}

// CredentialID returns the credential bound to the request's session cookie.
//
// A missing, tampered or expired cookie yields [shared.ErrNotAuthenticated].
func (s *SessionManager) CredentialID(r *http.Request) (string, error) {
	c, err := r.Cookie(s.name)
	if err != nil || c.Value == "" {
		return "", fmt.Errorf("%w: no session", shared.ErrNotAuthenticated)
	}

	claims := &sessionClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	token, err := parser.ParseWithClaims(c.Value, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: invalid session", shared.ErrNotAuthenticated)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: session missing subject", shared.ErrNotAuthenticated)
	}

	return claims.Subject, nil
}

// Clear expires the session cookie.
func (s *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie(s.name, "", -1))
}

// SetState stores the OAuth state in a short lived cookie.
func (s *SessionManager) SetState(w http.ResponseWriter, state string) {
	c := s.cookie(stateCookieName, state, int(stateTTL.Seconds()))
	// The callback is a top-level navigation from Spotify, so Lax is enough.
	c.SameSite = http.SameSiteLaxMode
	http.SetCookie(w, c)
}

// CheckState reports whether state matches the state cookie, and clears the cookie.
func (s *SessionManager) CheckState(w http.ResponseWriter, r *http.Request, state string) bool {
	c, err := r.Cookie(stateCookieName)
	http.SetCookie(w, s.cookie(stateCookieName, "", -1))
	if err != nil || c.Value == "" || state == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(state)) == 1
}

func (s *SessionManager) cookie(name, value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if s.secure {
		// The status page is served from another origin and sends credentialed requests.
		sameSite = http.SameSiteNoneMode
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: sameSite,
	}
}
