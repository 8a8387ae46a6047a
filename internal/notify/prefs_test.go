package notify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmcdole/nearby/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferenceFile_MissingFileReturnsDefaults(t *testing.T) {
	f := NewPreferenceFile(filepath.Join(t.TempDir(), "notifications.yaml"))

	prefs, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultNotificationPreferences(), prefs)
}

func TestPreferenceFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "notifications.yaml")
	f := NewPreferenceFile(path)

	want := domain.NotificationPreferences{
		Enabled:         true,
		NewBusinesses:   false,
		NewEvents:       true,
		BusinessUpdates: true,
		EventUpdates:    false,
		NearbyAlerts:    false,
	}
	require.NoError(t, f.Save(want))

	got, err := NewPreferenceFile(path).Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPreferenceFile_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.yaml")
	require.NoError(t, os.WriteFile(path, []byte("new_events: false\n"), 0644))

	prefs, err := NewPreferenceFile(path).Load()
	require.NoError(t, err)

	want := domain.DefaultNotificationPreferences()
	want.NewEvents = false
	assert.Equal(t, want, prefs)
}

func TestPreferenceFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: [unterminated\n"), 0644))

	prefs, err := NewPreferenceFile(path).Load()
	assert.Error(t, err)
	assert.Equal(t, domain.DefaultNotificationPreferences(), prefs)
}

func TestSubscriptionFile_RoundTripAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "subscription.yaml")
	f := NewSubscriptionFile(path)

	sub, err := f.Load()
	require.NoError(t, err)
	assert.Nil(t, sub)

	want := &domain.PushSubscription{
		ID:        "3f0c",
		Endpoint:  "/topics/nearby-abc",
		Token:     "device-token",
		PublicKey: "BPublicKey",
		CreatedAt: time.UnixMilli(1_700_000_000_000),
	}
	require.NoError(t, f.Save(want))

	got, err := NewSubscriptionFile(path).Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Endpoint, got.Endpoint)
	assert.Equal(t, want.Token, got.Token)
	assert.Equal(t, want.PublicKey, got.PublicKey)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, f.Save(nil))
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	require.NoError(t, f.Save(nil), "clearing twice is fine")

	sub, err = f.Load()
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestSubscriptionFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscription.yaml")
	require.NoError(t, os.WriteFile(path, []byte("id: [unterminated\n"), 0644))

	_, err := NewSubscriptionFile(path).Load()
	assert.Error(t, err)
}
