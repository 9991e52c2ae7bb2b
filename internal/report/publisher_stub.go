//go:build !zmq

package report

import (
	"context"
	"errors"

	"github.com/andresmejia3/emotag/internal/types"
)

// ErrNoZMQ is returned by NewPublisher in builds without the zmq tag.
var ErrNoZMQ = errors.New("zmq publishing not enabled; build with -tags zmq")

type Publisher struct{}

func NewPublisher(_ string) (*Publisher, error) {
	return nil, ErrNoZMQ
}

func (p *Publisher) Report(context.Context, types.FrameEvent) error { return ErrNoZMQ }

func (p *Publisher) Close() error { return nil }
