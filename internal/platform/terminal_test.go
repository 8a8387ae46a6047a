package platform

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mmcdole/nearby/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackground struct{}

func (stubBackground) Subscribe(context.Context, string) (*domain.PushSubscription, error) {
	return &domain.PushSubscription{ID: "sub"}, nil
}

func (stubBackground) Unsubscribe(context.Context, *domain.PushSubscription) error { return nil }

func (stubBackground) ShowNotification(context.Context, domain.Notification) error { return nil }

func createTestTerminal(input string, opts TerminalOptions) (*Terminal, *bytes.Buffer) {
	out := &bytes.Buffer{}
	opts.In = strings.NewReader(input)
	opts.Out = out
	opts.Force = true
	return NewTerminal(opts), out
}

func TestUnsupported(t *testing.T) {
	var p Unsupported
	ctx := context.Background()

	assert.False(t, p.Supported())
	assert.False(t, p.PushSupported())

	_, err := p.RequestPermission(ctx)
	assert.ErrorIs(t, err, domain.ErrPermissionUnavailable)

	bg, err := p.RegisterBackground(ctx)
	assert.Nil(t, bg)
	assert.ErrorIs(t, err, domain.ErrNoBackground)

	assert.ErrorIs(t, p.ShowForeground(ctx, domain.Notification{}), domain.ErrPermissionUnavailable)
}

func TestTerminal_NotATerminal(t *testing.T) {
	term := NewTerminal(TerminalOptions{In: strings.NewReader("y\n"), Out: &bytes.Buffer{}})

	assert.False(t, term.Supported())
	_, err := term.RequestPermission(context.Background())
	assert.ErrorIs(t, err, domain.ErrPermissionUnavailable)
}

func TestTerminal_RequestPermission(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  domain.Permission
		saved bool
	}{
		{"yes", "y\n", domain.PermissionGranted, true},
		{"yes word", "YES\n", domain.PermissionGranted, true},
		{"no", "n\n", domain.PermissionDenied, true},
		{"empty answer", "\n", domain.PermissionDefault, false},
		{"closed input", "", domain.PermissionDefault, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var saved []domain.Permission
			term, out := createTestTerminal(tt.input, TerminalOptions{
				Persist: func(p domain.Permission) error {
					saved = append(saved, p)
					return nil
				},
			})

			got, err := term.RequestPermission(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, term.Permission())
			assert.Contains(t, out.String(), "[y/N]")
			if tt.saved {
				assert.Equal(t, []domain.Permission{tt.want}, saved)
			} else {
				assert.Empty(t, saved)
			}
		})
	}
}

func TestTerminal_RequestPermission_DoesNotReprompt(t *testing.T) {
	term, out := createTestTerminal("y\n", TerminalOptions{Permission: domain.PermissionDenied})

	got, err := term.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionDenied, got)
	assert.Empty(t, out.String())
}

func TestTerminal_RequestPermission_PersistError(t *testing.T) {
	term, _ := createTestTerminal("y\n", TerminalOptions{
		Persist: func(domain.Permission) error { return errors.New("disk full") },
	})

	got, err := term.RequestPermission(context.Background())
	assert.Error(t, err)
	assert.Equal(t, domain.PermissionGranted, got)
}

func TestTerminal_RegisterBackground(t *testing.T) {
	term, _ := createTestTerminal("", TerminalOptions{})
	_, err := term.RegisterBackground(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoBackground)
	assert.False(t, term.PushSupported())

	term, _ = createTestTerminal("", TerminalOptions{Background: stubBackground{}})
	bg, err := term.RegisterBackground(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, bg)
	assert.True(t, term.PushSupported())
}

func TestTerminal_ShowForeground(t *testing.T) {
	note := domain.Notification{Title: "2 new businesses", Body: "Cafe, Bakery", Tag: "new-businesses-1"}

	term, out := createTestTerminal("", TerminalOptions{})
	assert.ErrorIs(t, term.ShowForeground(context.Background(), note), domain.ErrPermissionUnavailable)
	assert.Empty(t, out.String())

	term, out = createTestTerminal("", TerminalOptions{Permission: domain.PermissionGranted})
	require.NoError(t, term.ShowForeground(context.Background(), note))
	assert.Contains(t, out.String(), "2 new businesses")
	assert.Contains(t, out.String(), "Cafe, Bakery")
}
