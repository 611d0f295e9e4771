// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package engine

import (
	"context"

	"github.com/nats-io/nats.go"
)

// Subscription is an active event subscription.
type Subscription interface {
	Unsubscribe() error
}

// Transport is the request/reply and subscribe surface the bridge needs.
type Transport interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	Subscribe(subject string, handler func(data []byte)) (Subscription, error)
}

// NatsTransport implements Transport over a NATS connection.
type NatsTransport struct {
	conn *nats.Conn
}

// NewNatsTransport wraps conn.
func NewNatsTransport(conn *nats.Conn) *NatsTransport {
	return &NatsTransport{conn: conn}
}

func (t *NatsTransport) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := t.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, err
	}
	return msg.Data, nil
}

func (t *NatsTransport) Subscribe(subject string, handler func(data []byte)) (Subscription, error) {
	sub, err := t.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}
