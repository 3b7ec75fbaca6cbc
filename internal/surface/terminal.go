package surface

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/fieldtriplabs/pvachat/internal/domain"
	"github.com/fieldtriplabs/pvachat/internal/logging"
)

// Terminal renders the conversation as plain text on a terminal.
type Terminal struct {
	opts Options
	in   io.Reader
	out  io.Writer
	log  *logging.Logger

	mu     sync.Mutex
	poster Poster
	userID string
}

// NewTerminal creates a terminal surface reading input from in and
// rendering to out.
func NewTerminal(opts Options, in io.Reader, out io.Writer, log *logging.Logger) *Terminal {
	return &Terminal{
		opts: opts,
		in:   in,
		out:  out,
		log:  log.Sub("surface"),
	}
}

// Attach subscribes the surface to a conversation's activity stream and
// remembers where to post the user's input.
func (t *Terminal) Attach(stream Stream, poster Poster, userID string) error {
	if t.out == nil || t.in == nil {
		return ErrRenderTargetMissing
	}

	t.mu.Lock()
	t.poster = poster
	t.userID = userID
	t.mu.Unlock()

	title := t.opts.Title
	if title == "" {
		title = "Chat"
	}
	fmt.Fprintf(t.out, "=== %s ===\n", title)

	stream.Subscribe(func(act domain.Activity) {
		line := renderActivity(act)
		if line == "" {
			return
		}
		fmt.Fprintln(t.out, line)
	})
	return nil
}

// Run reads the user's input line by line and posts each line as a
// message, until the input ends or the context is cancelled.
func (t *Terminal) Run(ctx context.Context) error {
	t.mu.Lock()
	poster := t.poster
	userID := t.userID
	t.mu.Unlock()
	if poster == nil {
		return ErrRenderTargetMissing
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(t.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			act := domain.Activity{
				Type: domain.TypeMessage,
				Text: line,
				From: domain.ChannelAccount{ID: userID, Role: domain.RoleUser},
				ChannelData: map[string]any{
					"clientActivityID": uuid.NewString(),
				},
			}
			if _, err := poster.PostActivity(ctx, act); err != nil {
				t.log.Warn().Err(err).Msg("failed to send message")
				fmt.Fprintln(t.out, "! message not sent")
			}
		}
	}
}

var _ Surface = (*Terminal)(nil)

// renderActivity formats one inbound activity, or returns "" for activity
// types that have no terminal representation.
func renderActivity(act domain.Activity) string {
	speaker := act.From.Name
	if speaker == "" {
		speaker = "agent"
	}

	switch act.Type {
	case domain.TypeMessage:
		var b strings.Builder
		if act.Text != "" {
			fmt.Fprintf(&b, "%s: %s", speaker, act.Text)
		}
		for _, att := range act.Attachments {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%s: [attachment %s]", speaker, att.ContentType)
		}
		return b.String()
	case domain.TypeTyping:
		return fmt.Sprintf("%s is typing...", speaker)
	default:
		return ""
	}
}
