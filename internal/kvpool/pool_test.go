package kvpool

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cbkv-io/cbkv-go/internal/kvconn"
	"github.com/cbkv-io/cbkv-go/pkg/memd"
)

// echoFactory hands out net.Pipe connections and keeps the server end of
// each alive, running an echo responder goroutine that answers every
// request with StatusSuccess. killAll forcibly severs every server end
// currently outstanding, simulating the node dropping all connections.
type echoFactory struct {
	mu      sync.Mutex
	servers []net.Conn
}

func (f *echoFactory) Dial(ctx context.Context, addr string) (net.Conn, error) {
	client, server := net.Pipe()

	f.mu.Lock()
	f.servers = append(f.servers, server)
	f.mu.Unlock()

	go echoServer(server)
	return client, nil
}

func (f *echoFactory) killAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.servers {
		_ = s.Close()
	}
	f.servers = nil
}

func echoServer(conn net.Conn) {
	for {
		h, err := memd.ReadHeader(conn)
		if err != nil {
			return
		}
		body := make([]byte, h.TotalBodyLen)
		if h.TotalBodyLen > 0 {
			if _, err := readFullConn(conn, body); err != nil {
				return
			}
		}

		resp := memd.Header{
			Magic:  memd.MagicRes,
			OpCode: h.OpCode,
			Status: memd.StatusSuccess,
			Opaque: h.Opaque,
		}
		if err := resp.WriteTo(conn); err != nil {
			return
		}
	}
}

func readFullConn(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestSubmitRoundTripsThroughSingleConnection(t *testing.T) {
	factory := &echoFactory{}
	p := New("node-a", "node-a:11210", factory, kvconn.NoopInitializer{}, Config{MinSize: 1, MaxSize: 1, SendQueueCapacity: 8}, nil)
	defer p.Close()

	resp, err := p.Submit(context.Background(), memd.Request{OpCode: memd.OpGet, Key: "k"})
	require.NoError(t, err)
	require.Equal(t, memd.StatusSuccess, resp.Status)
}

func TestSubmitFansOutAcrossMultipleConnections(t *testing.T) {
	factory := &echoFactory{}
	p := New("node-a", "node-a:11210", factory, kvconn.NoopInitializer{}, Config{MinSize: 3, MaxSize: 3, SendQueueCapacity: 64}, nil)
	defer p.Close()

	require.Eventually(t, func() bool { return p.LiveCount() == 3 }, time.Second, 10*time.Millisecond)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Submit(context.Background(), memd.Request{OpCode: memd.OpGet, Key: "k"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestPoolRecoversAfterConnectionsAreKilled(t *testing.T) {
	factory := &echoFactory{}
	p := New("node-a", "node-a:11210", factory, kvconn.NoopInitializer{}, Config{MinSize: 2, MaxSize: 5, SendQueueCapacity: 64}, nil)
	defer p.Close()

	require.Eventually(t, func() bool { return p.LiveCount() == 2 }, time.Second, 10*time.Millisecond)

	_, err := p.Submit(context.Background(), memd.Request{OpCode: memd.OpSet, Key: "k"})
	require.NoError(t, err)

	factory.killAll()

	require.Eventually(t, func() bool { return p.LiveCount() >= 2 }, 2*time.Second, 10*time.Millisecond,
		"pool should recreate connections back up to MinSize after they are all killed")

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, err := p.Submit(ctx, memd.Request{OpCode: memd.OpSet, Key: "k"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	require.Equal(t, 10, succeeded, "all ten concurrent upserts should succeed once connections recover")
}

func TestSubmitResolvesEverySubmissionUnderQueuePressure(t *testing.T) {
	factory := &echoFactory{}
	p := New("node-a", "node-a:11210", factory, kvconn.NoopInitializer{}, Config{MinSize: 2, MaxSize: 2, SendQueueCapacity: 1}, nil)
	defer p.Close()

	// Submit from many goroutines against a one-slot queue and two
	// workers; every submission must return, either with a reply or with
	// a fast failure on a full queue, rather than block forever.
	var wg sync.WaitGroup
	fails := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Submit(context.Background(), memd.Request{OpCode: memd.OpGet, Key: "k"})
			fails <- err != nil
		}()
	}
	wg.Wait()
	close(fails)

	count := 0
	for range fails {
		count++
	}
	require.Equal(t, 50, count, "every submission must resolve, whether it succeeds or fails fast on a full queue")
}
