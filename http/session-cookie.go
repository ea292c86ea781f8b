package server

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionCookieName = "grokchat_session"

// SessionCookies signs the session id into an HS256 token so clients cannot
// pick someone else's id.
type SessionCookies struct {
	Secret []byte
	TTL    time.Duration
	Secure bool
	Now    func() time.Time
}

// RandomSecret returns a per-process signing key, used when SESSION_SECRET is
// not configured.
func RandomSecret() []byte {
	secret := make([]byte, 24)
	if _, err := rand.Read(secret); err != nil {
		panic(fmt.Sprintf("could not read random bytes: %v", err))
	}
	return secret
}

func (c *SessionCookies) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *SessionCookies) CreateToken(sessionID string) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.Secret)
}

func (c *SessionCookies) GetSessionIdFromToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return c.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		return "", err
	}

	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid token")
	}
	return claims.Subject, nil
}

// Issue (re)sets the cookie, restarting its expiry.
func (c *SessionCookies) Issue(w http.ResponseWriter, sessionID string) error {
	token, err := c.CreateToken(sessionID)
	if err != nil {
		return fmt.Errorf("could not sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read returns the session id carried by r, if it has a valid cookie.
func (c *SessionCookies) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}
	id, err := c.GetSessionIdFromToken(cookie.Value)
	if err != nil {
		return "", false
	}
	return id, true
}

func (c *SessionCookies) Drop(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
	})
}
