// Package credential holds the bearer token of the signed-in user.
//
// The token lives in an in-memory cache. If it is a JWT with an exp claim
// the entry expires with it, after which Token reports no session. Save and
// Load persist the token between process runs.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
)

const tokenKey = "access_token"

// ErrExpired indicates the token's exp claim is already in the past.
var ErrExpired = errors.New("credential expired")

// Store is a concurrency-safe holder for one bearer token.
type Store struct {
	cache *cache.Cache
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{cache: cache.New(cache.NoExpiration, 10*time.Minute)}
}

// Set stores token, replacing any previous one.
func (s *Store) Set(token string) error {
	if token == "" {
		s.Clear()
		return nil
	}
	ttl := cache.NoExpiration
	if exp, ok := Expiry(token); ok {
		ttl = time.Until(exp)
		if ttl <= 0 {
			return ErrExpired
		}
	}
	s.cache.Set(tokenKey, token, ttl)
	return nil
}

// Token returns the stored token, if one is present and unexpired.
func (s *Store) Token() (string, bool) {
	v, ok := s.cache.Get(tokenKey)
	if !ok {
		return "", false
	}
	token, ok := v.(string)
	return token, ok && token != ""
}

// ExpiresAt returns when the stored token expires. The zero time means it
// does not expire.
func (s *Store) ExpiresAt() time.Time {
	_, exp, ok := s.cache.GetWithExpiration(tokenKey)
	if !ok {
		return time.Time{}
	}
	return exp
}

// Clear discards the token.
func (s *Store) Clear() {
	s.cache.Delete(tokenKey)
}

// Expiry reads the exp claim of a JWT without verifying its signature.
// Opaque tokens report false.
func Expiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

type persisted struct {
	Token string `json:"access_token"`
}

// Save writes the token to w. An empty store writes an empty token.
func (s *Store) Save(w io.Writer) error {
	token, _ := s.Token()
	return json.NewEncoder(w).Encode(persisted{Token: token})
}

// Load reads a token written by Save. An expired token leaves the store
// empty and returns ErrExpired.
func (s *Store) Load(r io.Reader) error {
	var p persisted
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return fmt.Errorf("decode credential: %w", err)
	}
	if err := s.Set(p.Token); err != nil {
		s.Clear()
		return err
	}
	return nil
}

// SaveFile writes the token to path with owner-only permissions.
func (s *Store) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open credential file: %w", err)
	}
	if err := s.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a token saved by SaveFile. A missing file is not an error.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open credential file: %w", err)
	}
	defer f.Close()
	return s.Load(f)
}
