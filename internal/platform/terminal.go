package platform

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/nearby/internal/domain"
	"github.com/mmcdole/nearby/internal/ui/styles"
	"golang.org/x/term"
)

// TerminalOptions configures a Terminal capability
type TerminalOptions struct {
	In  io.Reader
	Out io.Writer

	// Force treats Out as a terminal even when it isn't one
	Force bool

	// Permission is the previously persisted decision
	Permission domain.Permission

	// Persist records a permission decision; may be nil
	Persist func(domain.Permission) error

	// Background delivers push notifications; nil means foreground only
	Background domain.BackgroundContext
}

// Terminal shows notifications as banners on an interactive terminal and
// asks for permission with a y/N prompt.
type Terminal struct {
	in         *bufio.Reader
	out        io.Writer
	supported  bool
	persist    func(domain.Permission) error
	background domain.BackgroundContext

	mu         sync.Mutex
	permission domain.Permission
}

// NewTerminal creates a terminal capability
func NewTerminal(opts TerminalOptions) *Terminal {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Permission == "" {
		opts.Permission = domain.PermissionDefault
	}

	return &Terminal{
		in:         bufio.NewReader(opts.In),
		out:        opts.Out,
		supported:  opts.Force || isTerminal(opts.Out),
		persist:    opts.Persist,
		background: opts.Background,
		permission: opts.Permission,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (t *Terminal) Supported() bool { return t.supported }

func (t *Terminal) PushSupported() bool { return t.supported && t.background != nil }

func (t *Terminal) Permission() domain.Permission {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.permission
}

// RequestPermission prompts only while the permission is still default.
// An empty answer or closed input leaves it default.
func (t *Terminal) RequestPermission(ctx context.Context) (domain.Permission, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.supported {
		return domain.PermissionDenied, domain.ErrPermissionUnavailable
	}
	if t.permission != domain.PermissionDefault {
		return t.permission, nil
	}
	if err := ctx.Err(); err != nil {
		return t.permission, err
	}

	fmt.Fprint(t.out, "Allow nearby to show notifications? [y/N]: ")
	line, err := t.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return t.permission, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		t.permission = domain.PermissionGranted
	case "n", "no":
		t.permission = domain.PermissionDenied
	default:
		return t.permission, nil
	}

	if t.persist != nil {
		if err := t.persist(t.permission); err != nil {
			return t.permission, fmt.Errorf("failed to save permission: %w", err)
		}
	}
	return t.permission, nil
}

func (t *Terminal) RegisterBackground(context.Context) (domain.BackgroundContext, error) {
	if t.background == nil {
		return nil, domain.ErrNoBackground
	}
	return t.background, nil
}

// ShowForeground renders the notification as a bordered banner
func (t *Terminal) ShowForeground(_ context.Context, n domain.Notification) error {
	if !t.supported || t.Permission() != domain.PermissionGranted {
		return domain.ErrPermissionUnavailable
	}

	_, err := fmt.Fprintln(t.out, renderBanner(n))
	return err
}

func renderBanner(n domain.Notification) string {
	lines := []string{styles.TitleStyle.Render(n.Title)}
	if n.Body != "" {
		lines = append(lines, styles.SubtitleStyle.Render(n.Body))
	}
	if n.Tag != "" {
		lines = append(lines, styles.DimStyle.Render(n.Tag))
	}
	return styles.Banner.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

var _ domain.Capability = (*Terminal)(nil)
