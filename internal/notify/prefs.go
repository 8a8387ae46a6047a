package notify

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mmcdole/nearby/internal/domain"
	"github.com/spf13/viper"
)

// PreferenceStore persists NotificationPreferences outside the main cache
type PreferenceStore interface {
	Load() (domain.NotificationPreferences, error)
	Save(prefs domain.NotificationPreferences) error
}

// PreferenceFile stores preferences as a small YAML file
type PreferenceFile struct {
	path string
}

// NewPreferenceFile returns a PreferenceFile at path (should end in .yaml)
func NewPreferenceFile(path string) *PreferenceFile {
	return &PreferenceFile{path: path}
}

// Load reads preferences, returning defaults if the file doesn't exist.
// Keys absent from the file keep their default values.
func (f *PreferenceFile) Load() (domain.NotificationPreferences, error) {
	prefs := domain.DefaultNotificationPreferences()

	v := viper.New()
	v.SetConfigFile(f.path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return prefs, nil
		}
		return prefs, fmt.Errorf("error reading preferences: %w", err)
	}

	if err := v.Unmarshal(&prefs); err != nil {
		return domain.DefaultNotificationPreferences(), fmt.Errorf("error parsing preferences: %w", err)
	}
	return prefs, nil
}

// Save writes all preference keys to the file
func (f *PreferenceFile) Save(prefs domain.NotificationPreferences) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("enabled", prefs.Enabled)
	v.Set("new_businesses", prefs.NewBusinesses)
	v.Set("new_events", prefs.NewEvents)
	v.Set("business_updates", prefs.BusinessUpdates)
	v.Set("event_updates", prefs.EventUpdates)
	v.Set("nearby_alerts", prefs.NearbyAlerts)

	if err := v.WriteConfigAs(f.path); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

// SubscriptionStore persists the push subscription handle between runs
type SubscriptionStore interface {
	Load() (*domain.PushSubscription, error)
	Save(sub *domain.PushSubscription) error
}

// SubscriptionFile stores the handle as YAML. A nil handle removes the file.
type SubscriptionFile struct {
	path string
}

// NewSubscriptionFile returns a SubscriptionFile at path (should end in .yaml)
func NewSubscriptionFile(path string) *SubscriptionFile {
	return &SubscriptionFile{path: path}
}

type subscriptionRecord struct {
	ID        string `mapstructure:"id"`
	Endpoint  string `mapstructure:"endpoint"`
	Token     string `mapstructure:"token"`
	PublicKey string `mapstructure:"public_key"`
	CreatedAt int64  `mapstructure:"created_at"` // Unix millis
}

// Load returns the stored handle, or nil when none was saved
func (f *SubscriptionFile) Load() (*domain.PushSubscription, error) {
	v := viper.New()
	v.SetConfigFile(f.path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading subscription: %w", err)
	}

	var rec subscriptionRecord
	if err := v.Unmarshal(&rec); err != nil {
		return nil, fmt.Errorf("error parsing subscription: %w", err)
	}
	if rec.ID == "" {
		return nil, nil
	}

	sub := &domain.PushSubscription{
		ID:        rec.ID,
		Endpoint:  rec.Endpoint,
		Token:     rec.Token,
		PublicKey: rec.PublicKey,
	}
	if rec.CreatedAt != 0 {
		sub.CreatedAt = time.UnixMilli(rec.CreatedAt)
	}
	return sub, nil
}

// Save writes sub, or removes the file when sub is nil
func (f *SubscriptionFile) Save(sub *domain.PushSubscription) error {
	if sub == nil {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove subscription: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create subscription directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("id", sub.ID)
	v.Set("endpoint", sub.Endpoint)
	v.Set("token", sub.Token)
	v.Set("public_key", sub.PublicKey)
	if !sub.CreatedAt.IsZero() {
		v.Set("created_at", sub.CreatedAt.UnixMilli())
	}

	if err := v.WriteConfigAs(f.path); err != nil {
		return fmt.Errorf("failed to write subscription: %w", err)
	}
	return nil
}
