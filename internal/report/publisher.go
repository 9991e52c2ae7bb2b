//go:build zmq

package report

import (
	"context"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"github.com/andresmejia3/emotag/internal/types"
)

// Publisher sends every event as a CBOR Message on a ZMQ PUB socket.
type Publisher struct {
	mu     sync.Mutex
	socket *zmq4.Socket
}

func NewPublisher(endpoint string) (*Publisher, error) {
	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, err
	}
	if err := socket.Bind(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}
	return &Publisher{socket: socket}, nil
}

func (p *Publisher) Report(_ context.Context, ev types.FrameEvent) error {
	payload, err := cbor.Marshal(NewMessage(ev))
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.socket.SendBytes(payload, zmq4.DONTWAIT)
	if err == zmq4.ErrorSocketClosed {
		return err
	}
	// PUB drops on back-pressure; EAGAIN is not a failure.
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.socket.Close()
}
