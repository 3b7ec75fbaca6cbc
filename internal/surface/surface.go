// Package surface renders a conversation to the user and feeds their
// input back into it.
package surface

import (
	"context"
	"errors"

	"github.com/fieldtriplabs/pvachat/internal/domain"
)

// ErrRenderTargetMissing means the surface has nowhere to draw: no output
// writer or no input reader was supplied.
var ErrRenderTargetMissing = errors.New("surface: render target missing")

// Options carries the presentation values through to rendering. They have
// no protocol meaning; the surface consumes them as-is.
type Options struct {
	Title            string
	ButtonLabel      string
	HideUploadButton bool
	BotAvatarImage   string
	UserAvatarImage  string
}

// Surface is a rendering surface for one conversation.
type Surface interface {
	// Attach wires the surface to a conversation's stream and outbound
	// poster for the given user.
	Attach(stream Stream, poster Poster, userID string) error
	// Run blocks, relaying the user's input, until the input ends or the
	// context is cancelled.
	Run(ctx context.Context) error
}

// Stream delivers the activities that survived interception.
type Stream interface {
	Subscribe(fn func(domain.Activity))
}

// Poster sends the user's outbound activities.
type Poster interface {
	PostActivity(ctx context.Context, act domain.Activity) (string, error)
}
