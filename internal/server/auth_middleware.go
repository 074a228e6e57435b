package server

import (
	"crypto/subtle"
	"net/http"
)

// TokenAuth checks the "token" query parameter against a shared secret. An
// empty secret admits everyone.
type TokenAuth struct {
	token string
}

func NewTokenAuth(token string) TokenAuth { return TokenAuth{token: token} }

func (a TokenAuth) Authorize(r *http.Request) error {
	if a.token == "" {
		return nil
	}
	got := r.URL.Query().Get("token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
