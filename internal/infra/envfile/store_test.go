package envfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuyactl/internal/infra/tuya"
)

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	store := NewStore(path)

	saved := tuya.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(2 * time.Hour).Truncate(time.Second),
		UID:          "uid-1",
	}
	require.NoError(t, store.SaveToken(context.Background(), saved))

	loaded, err := store.LoadToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, saved.AccessToken, loaded.AccessToken)
	assert.Equal(t, saved.RefreshToken, loaded.RefreshToken)
	assert.Equal(t, saved.UID, loaded.UID)
	assert.True(t, saved.ExpiresAt.Equal(loaded.ExpiresAt))
	assert.True(t, loaded.Usable())
}

func TestStore_MissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.env"))

	token, err := store.LoadToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token.AccessToken)
	assert.False(t, token.Usable())
}

func TestStore_PreservesUnrelatedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TUYA_ACCESS_ID=my-id\nDEVICE_ID=dev1\n"), 0o600))

	store := NewStore(path)
	require.NoError(t, store.SaveToken(context.Background(), tuya.Token{
		AccessToken: "access-1",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "my-id", values["TUYA_ACCESS_ID"])
	assert.Equal(t, "dev1", values["DEVICE_ID"])
	assert.Equal(t, "access-1", values["ACCESS_TOKEN"])
}
