// Package envfile persists Tuya tokens into a dotenv file, next to the
// credentials they were issued for, so a restarted process reuses a
// still-valid token instead of re-authenticating.
package envfile

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"tuyactl/internal/infra/tuya"
)

const (
	keyAccessToken  = "ACCESS_TOKEN"
	keyRefreshToken = "REFRESH_TOKEN"
	keyExpiresAt    = "TOKEN_EXPIRY_TIME"
	keyUID          = "TUYA_UID"
)

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) LoadToken(_ context.Context) (tuya.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := godotenv.Read(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return tuya.Token{}, nil
		}
		return tuya.Token{}, fmt.Errorf("reading token file: %w", err)
	}

	token := tuya.Token{
		AccessToken:  values[keyAccessToken],
		RefreshToken: values[keyRefreshToken],
		UID:          values[keyUID],
	}

	if raw := values[keyExpiresAt]; raw != "" {
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return tuya.Token{}, fmt.Errorf("parsing %s: %w", keyExpiresAt, err)
		}
		token.ExpiresAt = time.Unix(unix, 0)
	}

	return token, nil
}

// SaveToken rewrites the token keys in place, keeping every unrelated key
// already present in the file.
func (s *Store) SaveToken(_ context.Context, token tuya.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := godotenv.Read(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("reading token file: %w", err)
		}
		values = map[string]string{}
	}

	values[keyAccessToken] = token.AccessToken
	values[keyRefreshToken] = token.RefreshToken
	values[keyExpiresAt] = strconv.FormatInt(token.ExpiresAt.Unix(), 10)
	values[keyUID] = token.UID

	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	return nil
}
