package kvconn

import (
	"context"
	"fmt"

	"github.com/cbkv-io/cbkv-go/pkg/memd"
)

// PlainAuthInitializer authenticates a freshly dialed connection with
// SASL PLAIN before it is handed to a pool, the minimal handshake a
// cluster in non-TLS, username/password mode requires.
type PlainAuthInitializer struct {
	Username string
	Password string
}

// Initialize implements Initializer.
func (a PlainAuthInitializer) Initialize(ctx context.Context, conn *Connection) error {
	if a.Username == "" {
		return nil
	}

	// RFC 4616 PLAIN: authzid NUL authcid NUL passwd
	creds := make([]byte, 0, len(a.Username)*2+len(a.Password)+2)
	creds = append(creds, 0)
	creds = append(creds, a.Username...)
	creds = append(creds, 0)
	creds = append(creds, a.Password...)

	req := memd.Request{
		OpCode: memd.OpSASLAuth,
		Key:    "PLAIN",
		Value:  creds,
	}

	resp, err := conn.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("kvconn: SASL PLAIN auth: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("kvconn: SASL PLAIN auth rejected: status 0x%x", uint16(resp.Status))
	}
	return nil
}

// ChainInitializer runs multiple Initializers in order, stopping at the
// first error — used to compose authentication with bucket selection.
type ChainInitializer []Initializer

// Initialize implements Initializer.
func (c ChainInitializer) Initialize(ctx context.Context, conn *Connection) error {
	for _, init := range c {
		if init == nil {
			continue
		}
		if err := init.Initialize(ctx, conn); err != nil {
			return err
		}
	}
	return nil
}
