package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
)

const tokenName = "protect_host"

var ErrInvalidToken = errors.New("session: invalid token")

// Claims identify the page a connection token was issued to.
type Claims struct {
	Subject  string `json:"sub"`
	IssuedAt int64  `json:"iat"`
}

// Tokens issues and verifies signed connection tokens for the host server.
type Tokens struct {
	codec *securecookie.SecureCookie
}

// NewTokens builds a codec signed with hashKey. A nil key picks a random
// one, which invalidates every token on restart.
func NewTokens(hashKey []byte, maxAge time.Duration) *Tokens {
	if len(hashKey) == 0 {
		hashKey = make([]byte, 32)
		_, _ = rand.Read(hashKey)
	}
	codec := securecookie.New(hashKey, nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	if maxAge > 0 {
		codec.MaxAge(int(maxAge.Seconds()))
	}
	return &Tokens{codec: codec}
}

func (t *Tokens) Issue(subject string) (string, error) {
	claims := Claims{Subject: subject, IssuedAt: time.Now().Unix()}
	encoded, err := t.codec.Encode(tokenName, claims)
	if err != nil {
		return "", fmt.Errorf("session: issue token: %w", err)
	}
	return encoded, nil
}

func (t *Tokens) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := t.codec.Decode(tokenName, token, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// FromRequest reads a token from the token query parameter or a bearer
// Authorization header.
func FromRequest(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
