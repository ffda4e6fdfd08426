package kvconn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cbkv-io/cbkv-go/pkg/kverrors"
	"github.com/cbkv-io/cbkv-go/pkg/memd"
)

// pipeFactory hands out one end of a net.Pipe and keeps the other end for
// the test to act as a fake server.
type pipeFactory struct {
	server net.Conn
}

func (f *pipeFactory) Dial(ctx context.Context, addr string) (net.Conn, error) {
	client, server := net.Pipe()
	f.server = server
	return client, nil
}

func dialTestConnection(t *testing.T) (*Connection, net.Conn, chan error) {
	t.Helper()
	factory := &pipeFactory{}
	deaths := make(chan error, 1)

	conn, err := Dial(context.Background(), "test-node:11210", factory, NoopInitializer{}, func(c *Connection, err error) {
		select {
		case deaths <- err:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn, factory.server, deaths
}

func TestSendReceivesMatchingReply(t *testing.T) {
	conn, server, _ := dialTestConnection(t)
	defer conn.Close()

	go func() {
		h, err := memd.ReadHeader(server)
		if err != nil {
			return
		}
		body := make([]byte, h.TotalBodyLen)
		_, _ = readFull(server, body)

		resp := memd.Header{
			Magic:        memd.MagicRes,
			OpCode:       h.OpCode,
			Status:       memd.StatusSuccess,
			Opaque:       h.Opaque,
			TotalBodyLen: 0,
		}
		_ = resp.WriteTo(server)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := conn.Send(ctx, memd.Request{OpCode: memd.OpGet, Key: "k"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != memd.StatusSuccess {
		t.Errorf("status = %v, want success", resp.Status)
	}
}

func TestSendFailsWhenConnectionDies(t *testing.T) {
	conn, server, deaths := dialTestConnection(t)
	defer conn.Close()

	server.Close()

	select {
	case <-deaths:
	case <-time.After(2 * time.Second):
		t.Fatal("onDeath callback never fired")
	}

	if !conn.IsDead() {
		t.Error("expected connection to be marked dead")
	}

	_, err := conn.Send(context.Background(), memd.Request{OpCode: memd.OpGet, Key: "k"})
	if err == nil {
		t.Fatal("expected error sending on dead connection")
	}
}

func TestSendHonorsContextTimeout(t *testing.T) {
	conn, server, _ := dialTestConnection(t)
	defer conn.Close()

	// Drain writes on the server side but never reply, so Send's write
	// completes and it blocks waiting for a response that the deadline
	// must cut short.
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := conn.Send(ctx, memd.Request{OpCode: memd.OpGet, Key: "k"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if kind := kverrors.Kind(err); kind != kverrors.KindTimeout {
		t.Fatalf("expected KindTimeout, got %v", kind)
	}
}

func TestSendHonorsExplicitCancellation(t *testing.T) {
	conn, server, _ := dialTestConnection(t)
	defer conn.Close()

	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Send(ctx, memd.Request{OpCode: memd.OpGet, Key: "k"})
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	err := <-errCh
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if kind := kverrors.Kind(err); kind != kverrors.KindCancelled {
		t.Fatalf("expected KindCancelled, got %v", kind)
	}
}

func readFull(r net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
