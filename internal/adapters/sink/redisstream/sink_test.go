package redisstream

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	s := NewWithClient(nil, "frames:", 500)

	assert.Equal(t, "frames:src1", s.Stream("src1"))
	a := s.args(s.Stream("src1"), []byte("payload"))
	assert.Equal(t, "frames:src1", a.Stream)
	assert.EqualValues(t, 500, a.MaxLen)
	assert.True(t, a.Approx)
	assert.Equal(t, []byte("payload"), a.Values.(map[string]any)["data"])

	unbounded := NewWithClient(nil, "", 0)
	assert.Zero(t, unbounded.args("k", nil).MaxLen)
}

func TestSendBatch_EmptyIsNoop(t *testing.T) {
	s := NewWithClient(nil, "frames:", 0)
	assert.NoError(t, s.SendBatch(context.Background(), "k", nil))
}

func TestSendBatch_UnreachableServer(t *testing.T) {
	cli := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	s := NewWithClient(cli, "frames:", 0)
	t.Cleanup(func() { _ = s.Close() })

	err := s.SendBatch(context.Background(), "src1", [][]byte{[]byte("a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frames:src1")
}

// cmdRecorder keeps the command names of every pipeline sent.
type cmdRecorder struct {
	mu    sync.Mutex
	names []string
}

func (r *cmdRecorder) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (r *cmdRecorder) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return next
}

func (r *cmdRecorder) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		r.mu.Lock()
		for _, c := range cmds {
			r.names = append(r.names, c.Name())
		}
		r.mu.Unlock()
		return next(ctx, cmds)
	}
}

func (r *cmdRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func newMiniredisSink(t *testing.T) (*Sink, *redis.Client, *miniredis.Miniredis, *cmdRecorder) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rec := &cmdRecorder{}
	cli.AddHook(rec)
	s := NewWithClient(cli, "frames:", 0)
	t.Cleanup(func() { _ = s.Close() })
	return s, cli, mr, rec
}

func TestSendBatch_AppendsInOrderInsideMulti(t *testing.T) {
	s, cli, _, rec := newMiniredisSink(t)
	ctx := context.Background()

	require.NoError(t, s.SendBatch(ctx, "src1", [][]byte{[]byte("a"), []byte("b"), []byte("c")}))

	entries, err := cli.XRange(ctx, "frames:src1", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, entries[i].Values["data"])
	}
	assert.Equal(t, []string{"multi", "xadd", "xadd", "xadd", "exec"}, rec.recorded())

	n, err := cli.Exists(ctx, "frames:src2").Result()
	require.NoError(t, err)
	assert.Zero(t, n, "other keys untouched")
}

func TestSendBatch_SecondBatchAppends(t *testing.T) {
	s, cli, _, _ := newMiniredisSink(t)
	ctx := context.Background()

	require.NoError(t, s.SendBatch(ctx, "src1", [][]byte{[]byte("a")}))
	require.NoError(t, s.SendBatch(ctx, "src1", [][]byte{[]byte("b")}))

	entries, err := cli.XRange(ctx, "frames:src1", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Values["data"])
	assert.Equal(t, "b", entries[1].Values["data"])
	assert.NoError(t, s.Ping(ctx))
}

func TestSendBatch_ServerError(t *testing.T) {
	s, _, mr, _ := newMiniredisSink(t)
	mr.SetError("LOADING dataset in memory")

	err := s.SendBatch(context.Background(), "src1", [][]byte{[]byte("a")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frames:src1")

	mr.SetError("")
	assert.False(t, mr.Exists("frames:src1"))
}
