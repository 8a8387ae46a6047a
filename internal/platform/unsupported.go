// Package platform provides domain.Capability implementations for the
// hosts nearby runs on.
package platform

import (
	"context"

	"github.com/mmcdole/nearby/internal/domain"
)

// Unsupported is the capability of a host that cannot show notifications
type Unsupported struct{}

func (Unsupported) Supported() bool     { return false }
func (Unsupported) PushSupported() bool { return false }

func (Unsupported) Permission() domain.Permission { return domain.PermissionDenied }

func (Unsupported) RequestPermission(context.Context) (domain.Permission, error) {
	return domain.PermissionDenied, domain.ErrPermissionUnavailable
}

func (Unsupported) RegisterBackground(context.Context) (domain.BackgroundContext, error) {
	return nil, domain.ErrNoBackground
}

func (Unsupported) ShowForeground(context.Context, domain.Notification) error {
	return domain.ErrPermissionUnavailable
}

var _ domain.Capability = Unsupported{}
