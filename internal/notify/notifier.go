package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/nearby/internal/domain"
)

// maxSampleNames caps the item names listed in a diff notification
const maxSampleNames = 5

// State is the notifier's permission/subscription lifecycle state
type State int

const (
	StateUninitialized State = iota
	StateUnsupported
	StatePermissionDefault
	StatePermissionDenied
	StatePermissionGranted
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateUnsupported:
		return "unsupported"
	case StatePermissionDefault:
		return "permission_default"
	case StatePermissionDenied:
		return "permission_denied"
	case StatePermissionGranted:
		return "permission_granted"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

func stateFor(p domain.Permission) State {
	switch p {
	case domain.PermissionGranted:
		return StatePermissionGranted
	case domain.PermissionDenied:
		return StatePermissionDenied
	default:
		return StatePermissionDefault
	}
}

// Options configures a Notifier
type Options struct {
	PublicKey string // Push application server key
	Icon      string // Default notification icon
	Logger    *slog.Logger
	Now       func() time.Time

	// Subscriptions keeps the push handle between runs. Nil keeps it in
	// memory only.
	Subscriptions SubscriptionStore
}

// Notifier owns notification permission, push subscription and
// preferences, and announces records that are new between fetches.
// All platform failures degrade to "did nothing" and are only logged.
type Notifier struct {
	platform  domain.Capability
	prefStore PreferenceStore
	subStore  SubscriptionStore
	publicKey string
	icon      string
	logger    *slog.Logger
	now       func() time.Time

	mu           sync.Mutex
	state        State
	prefs        domain.NotificationPreferences
	background   domain.BackgroundContext
	subscription *domain.PushSubscription
}

// New creates a notifier. Preferences are loaded synchronously; a load
// failure falls back to the defaults.
func New(platform domain.Capability, prefStore PreferenceStore, opts Options) *Notifier {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	prefs, err := prefStore.Load()
	if err != nil {
		opts.Logger.Warn("failed to load notification preferences", "error", err)
		prefs = domain.DefaultNotificationPreferences()
	}

	state := StateUninitialized
	if !platform.Supported() {
		state = StateUnsupported
	}

	return &Notifier{
		platform:  platform,
		prefStore: prefStore,
		subStore:  opts.Subscriptions,
		publicKey: opts.PublicKey,
		icon:      opts.Icon,
		logger:    opts.Logger,
		now:       opts.Now,
		state:     state,
		prefs:     prefs,
	}
}

// Initialize reads the current permission and registers a background
// context. Never fails: without a background context delivery is
// foreground-only.
func (n *Notifier) Initialize(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.initializeLocked(ctx)
}

func (n *Notifier) initializeLocked(ctx context.Context) {
	if n.state != StateUninitialized {
		return
	}

	n.state = stateFor(n.platform.Permission())

	bg, err := n.platform.RegisterBackground(ctx)
	if err != nil {
		n.logger.Warn("background registration failed, using foreground notifications", "error", err)
	} else {
		n.background = bg
	}

	n.restoreSubscriptionLocked(ctx)
	n.syncSubscriptionLocked(ctx)
	n.logger.Info("notifications initialized", "state", n.state.String(), "background", n.background != nil)
}

// RequestPermission prompts for permission and reports whether it ended up granted.
func (n *Notifier) RequestPermission(ctx context.Context) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == StateUnsupported {
		return false
	}
	n.initializeLocked(ctx)

	switch n.state {
	case StatePermissionGranted, StateSubscribed:
		return true
	case StatePermissionDenied:
		return false
	}

	perm, err := n.platform.RequestPermission(ctx)
	if err != nil {
		n.logger.Warn("permission request failed", "error", err)
		return false
	}

	n.state = stateFor(perm)
	n.logger.Info("notification permission resolved", "permission", perm)
	n.syncSubscriptionLocked(ctx)
	return perm == domain.PermissionGranted
}

// syncSubscriptionLocked subscribes or unsubscribes to match preferences.
// Only acts once permission is granted.
func (n *Notifier) syncSubscriptionLocked(ctx context.Context) {
	if n.state != StatePermissionGranted && n.state != StateSubscribed {
		return
	}
	if n.prefs.Enabled {
		n.subscribeLocked(ctx)
	} else {
		n.unsubscribeLocked(ctx)
	}
}

// restoreSubscriptionLocked picks up a handle saved by an earlier run.
// Handles for a revoked permission or a rotated key are unsubscribed.
func (n *Notifier) restoreSubscriptionLocked(ctx context.Context) {
	if n.subStore == nil || n.background == nil {
		return
	}

	sub, err := n.subStore.Load()
	if err != nil {
		n.logger.Warn("failed to load push subscription", "error", err)
		return
	}
	if sub == nil {
		return
	}

	if n.state != StatePermissionGranted || sub.PublicKey != n.publicKey {
		if err := n.background.Unsubscribe(ctx, sub); err != nil {
			n.logger.Warn("stale push unsubscribe failed", "error", err, "subscription", sub.ID)
			return
		}
		n.logger.Info("dropped stale push subscription", "subscription", sub.ID)
		n.saveSubscriptionLocked(nil)
		return
	}

	n.subscription = sub
	n.state = StateSubscribed
	n.logger.Debug("restored push subscription", "subscription", sub.ID)
}

func (n *Notifier) saveSubscriptionLocked(sub *domain.PushSubscription) {
	if n.subStore == nil {
		return
	}
	if err := n.subStore.Save(sub); err != nil {
		n.logger.Warn("failed to save push subscription", "error", err)
	}
}

func (n *Notifier) subscribeLocked(ctx context.Context) {
	if n.state == StateSubscribed {
		return
	}
	if n.background == nil || !n.platform.PushSupported() {
		n.logger.Debug("push unavailable, staying foreground-only")
		return
	}

	sub, err := n.background.Subscribe(ctx, n.publicKey)
	if err != nil {
		n.logger.Warn("push subscription failed", "error", fmt.Errorf("%w: %w", domain.ErrSubscriptionFailed, err))
		return
	}

	n.subscription = sub
	n.state = StateSubscribed
	n.saveSubscriptionLocked(sub)
	n.logger.Info("subscribed to push", "subscription", sub.ID)
}

func (n *Notifier) unsubscribeLocked(ctx context.Context) {
	if n.state != StateSubscribed {
		return
	}
	// A failed unsubscribe keeps the saved handle so the next run retries
	if err := n.background.Unsubscribe(ctx, n.subscription); err != nil {
		n.logger.Warn("push unsubscribe failed", "error", err)
	} else {
		n.saveSubscriptionLocked(nil)
	}
	n.logger.Info("unsubscribed from push", "subscription", n.subscription.ID)
	n.subscription = nil
	n.state = StatePermissionGranted
}

// UpdatePreferences merges u into the stored preferences, persists them,
// and re-evaluates the push subscription. The merged preferences are
// returned even when persisting fails.
func (n *Notifier) UpdatePreferences(ctx context.Context, u domain.PreferencesUpdate) (domain.NotificationPreferences, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.prefs = u.Apply(n.prefs)

	var saveErr error
	if err := n.prefStore.Save(n.prefs); err != nil {
		n.logger.Error("failed to save notification preferences", "error", err)
		saveErr = err
	}

	if n.state != StateUnsupported {
		n.initializeLocked(ctx)
		n.syncSubscriptionLocked(ctx)
	}
	return n.prefs, saveErr
}

// Preferences returns the current preferences
func (n *Notifier) Preferences() domain.NotificationPreferences {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.prefs
}

// State returns the lifecycle state
func (n *Notifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Notifier) IsNotificationSupported() bool {
	return n.platform.Supported()
}

func (n *Notifier) IsPushSupported() bool {
	return n.platform.Supported() && n.platform.PushSupported()
}

// ShowNotification delivers through the background context when present,
// otherwise through the foreground primitive. Returns false when neither
// path could deliver; that is not an error.
func (n *Notifier) ShowNotification(ctx context.Context, note domain.Notification) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == StateUnsupported {
		return false
	}

	granted := n.state == StatePermissionGranted || n.state == StateSubscribed
	if n.state == StateUninitialized {
		granted = n.platform.Permission() == domain.PermissionGranted
	}
	if !granted {
		n.logger.Debug("notification dropped", "reason", domain.ErrPermissionUnavailable, "tag", note.Tag)
		return false
	}

	if note.Icon == "" {
		note.Icon = n.icon
	}

	if n.background != nil {
		err := n.background.ShowNotification(ctx, note)
		if err == nil {
			return true
		}
		n.logger.Warn("background notification failed, trying foreground", "error", err, "tag", note.Tag)
	}

	if err := n.platform.ShowForeground(ctx, note); err != nil {
		n.logger.Warn("foreground notification failed", "error", err, "tag", note.Tag)
		return false
	}
	return true
}

// CompareAndNotify announces the records in newList whose IDs are absent
// from oldList. Changed records with a known ID are not reported.
// Returns whether a notification was delivered.
func (n *Notifier) CompareAndNotify(ctx context.Context, oldList, newList []domain.Record, kind domain.Collection) bool {
	added := newRecords(oldList, newList)
	if len(added) == 0 {
		return false
	}

	n.mu.Lock()
	prefs := n.prefs
	n.mu.Unlock()

	if !prefs.Enabled || !kindEnabled(prefs, kind) {
		n.logger.Debug("new records not announced", "kind", kind, "count", len(added))
		return false
	}

	note := composeNotification(kind, added, n.now())
	n.logger.Info("announcing new records", "kind", kind, "count", len(added), "tag", note.Tag)
	return n.ShowNotification(ctx, note)
}

func kindEnabled(prefs domain.NotificationPreferences, kind domain.Collection) bool {
	switch kind {
	case domain.CollectionBusinesses:
		return prefs.NewBusinesses
	case domain.CollectionEvents:
		return prefs.NewEvents
	default:
		return false
	}
}

// newRecords returns records of newList whose IDs don't appear in oldList,
// in newList order and without duplicates.
func newRecords(oldList, newList []domain.Record) []domain.Record {
	seen := make(map[string]struct{}, len(oldList)+len(newList))
	for _, r := range oldList {
		seen[r.ID] = struct{}{}
	}

	var added []domain.Record
	for _, r := range newList {
		if r.ID == "" {
			continue
		}
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		added = append(added, r)
	}
	return added
}

func composeNotification(kind domain.Collection, added []domain.Record, now time.Time) domain.Notification {
	count := len(added)

	noun := string(kind)
	if count == 1 {
		noun = kind.Singular()
	}

	names := make([]string, 0, maxSampleNames)
	for _, r := range added {
		if len(names) == maxSampleNames {
			break
		}
		names = append(names, r.DisplayName())
	}
	body := strings.Join(names, ", ")
	if count > maxSampleNames {
		body += fmt.Sprintf(" and %d more", count-maxSampleNames)
	}

	return domain.Notification{
		Title: fmt.Sprintf("%d new %s", count, noun),
		Body:  body,
		Tag:   fmt.Sprintf("new-%s-%d", kind, now.UnixMilli()),
		Data: map[string]string{
			"type":           "new_" + string(kind),
			"count":          strconv.Itoa(count),
			"ids":            strings.Join(domain.IDs(added), ","),
			"notificationId": uuid.NewString(),
		},
	}
}

var _ domain.ChangeNotifier = (*Notifier)(nil)
