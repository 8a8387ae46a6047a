package domain

import "context"

// Capability is the host platform's notification primitive.
// Implementations come in two variants: a supported platform and
// platform.Unsupported, whose Supported returns false.
type Capability interface {
	// Supported reports whether the host can show notifications at all
	Supported() bool

	// PushSupported reports whether push subscriptions are possible
	PushSupported() bool

	// Permission returns the current permission without prompting
	Permission() Permission

	// RequestPermission prompts the user and returns the resulting permission
	RequestPermission(ctx context.Context) (Permission, error)

	// RegisterBackground registers a context that can deliver notifications
	// while the app is not in the foreground. Returns ErrNoBackground when
	// the platform has none.
	RegisterBackground(ctx context.Context) (BackgroundContext, error)

	// ShowForeground displays a notification from the foreground process
	ShowForeground(ctx context.Context, n Notification) error
}

// BackgroundContext delivers notifications and owns push subscriptions
type BackgroundContext interface {
	Subscribe(ctx context.Context, publicKey string) (*PushSubscription, error)
	Unsubscribe(ctx context.Context, sub *PushSubscription) error
	ShowNotification(ctx context.Context, n Notification) error
}

// ChangeNotifier announces records that are new between two fetches
type ChangeNotifier interface {
	CompareAndNotify(ctx context.Context, oldList, newList []Record, kind Collection) bool
}
