package health

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type fakeLink struct {
	mu sync.Mutex
	fn func(bool)
	up bool
}

func (f *fakeLink) Notify(fn func(bool)) {
	f.mu.Lock()
	f.fn = fn
	up := f.up
	f.mu.Unlock()
	fn(up)
}

func (f *fakeLink) set(up bool) {
	f.mu.Lock()
	f.up = up
	fn := f.fn
	f.mu.Unlock()
	fn(up)
}

func startServer(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 16)
	s := NewServer()
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return s, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_FollowsLink(t *testing.T) {
	s, c := startServer(t)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, Service))

	link := &fakeLink{}
	s.Bind(link)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, Service))

	link.set(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, Service))

	link.set(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, Service))
}

func TestHealth_UnknownService(t *testing.T) {
	_, c := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Error(t, err)
}
