package wstransport

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ppg-community/ppg-go/internal/queryqueue"
	"github.com/ppg-community/ppg-go/internal/wire"
)

// fakeWSConn is a minimal, deterministic stand-in for *websocket.Conn: it
// records every write and lets a test script a sequence of reads, including
// the option to report a bufferedAmount for exercising backpressure.
type fakeWSConn struct {
	mu      sync.Mutex
	writes  []fakeWrite
	reads   []fakeRead
	readIdx int
	closed  bool
	bufAmt  int
}

type fakeWrite struct {
	messageType int
	data        []byte
}

type fakeRead struct {
	messageType int
	data        []byte
	err         error
}

func (f *fakeWSConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, fakeWrite{messageType, append([]byte(nil), data...)})
	return nil
}

func (f *fakeWSConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readIdx >= len(f.reads) {
		// Once the scripted reads run out, report the connection as
		// closed so readPump exits instead of blocking.
		return 0, nil, websocket.ErrCloseSent
	}
	r := f.reads[f.readIdx]
	f.readIdx++
	return r.messageType, r.data, r.err
}

func (f *fakeWSConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, fakeWrite{messageType, data})
	return nil
}

func (f *fakeWSConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWSConn) BufferedAmount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bufAmt
}

func (f *fakeWSConn) setBufferedAmount(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bufAmt = n
}

func (f *fakeWSConn) writesSnapshot() []fakeWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeWrite(nil), f.writes...)
}

func newTestConn(fake *fakeWSConn) *Conn {
	return &Conn{
		id:     "test",
		conn:   fake,
		queue:  queryqueue.New(nil),
		logger: zap.NewNop(),
		closed: make(chan struct{}),
	}
}

func TestBuildURL(t *testing.T) {
	t.Parallel()

	endpoint, err := url.Parse("https://example.com")
	require.NoError(t, err)

	got := BuildURL(endpoint, "mydb")
	assert.Equal(t, "wss", got.Scheme)
	assert.Equal(t, "/db/websocket", got.Path)
	assert.Equal(t, "mydb", got.Query().Get("database"))

	endpoint2, _ := url.Parse("http://example.com")
	got2 := BuildURL(endpoint2, "")
	assert.Equal(t, "ws", got2.Scheme)
	assert.Equal(t, "/db/websocket", got2.Path)
	assert.Empty(t, got2.RawQuery)
}

func TestConn_SendFramesWritesURNThenPayloadPairs(t *testing.T) {
	t.Parallel()

	fake := &fakeWSConn{}
	c := newTestConn(fake)

	go c.readPump()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Statement(ctx, wire.Query, "SELECT $1", []wire.RawParameter{wire.TextParam("hello")})
	require.Error(t, err) // no response is scripted; the fake reports the connection closed and readPump aborts the queue.

	writes := fake.writesSnapshot()
	require.GreaterOrEqual(t, len(writes), 2)
	assert.Equal(t, string(wire.URNQueryDescriptor), string(writes[0].data))

	var desc wire.QueryDescriptor
	require.NoError(t, json.Unmarshal(writes[1].data, &desc))
	assert.Equal(t, "SELECT $1", desc.Query)
}

func TestConn_StatementResolvesFromQueuedResponse(t *testing.T) {
	t.Parallel()

	descPayload, _ := json.Marshal(wire.DataRowDescription{Columns: []wire.Column{{Name: "c", Oid: 25}}})
	rowPayload, _ := json.Marshal(wire.DataRow{Values: []*string{strp("hello")}})
	completePayload := []byte(`{"complete":true}`)

	fake := &fakeWSConn{
		reads: []fakeRead{
			{messageType: websocket.TextMessage, data: []byte(wire.URNResultDescription)},
			{messageType: websocket.TextMessage, data: descPayload},
			{messageType: websocket.TextMessage, data: []byte(wire.URNResultDataRow)},
			{messageType: websocket.TextMessage, data: rowPayload},
			{messageType: websocket.TextMessage, data: []byte(wire.URNResultComplete)},
			{messageType: websocket.TextMessage, data: completePayload},
		},
	}
	c := newTestConn(fake)
	go c.readPump()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := c.Statement(ctx, wire.Query, "SELECT $1", []wire.RawParameter{wire.TextParam("hello")})
	require.NoError(t, err)
	require.Len(t, result.Columns, 1)

	row, ok, err := result.Rows.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", *row[0])
}

func TestConn_BinaryMessageIsFatalProtocolViolation(t *testing.T) {
	t.Parallel()

	fake := &fakeWSConn{
		reads: []fakeRead{
			{messageType: websocket.BinaryMessage, data: []byte{0x01, 0x02}},
		},
	}
	c := newTestConn(fake)

	rq := c.queue.Enqueue()
	c.readPump()

	_, err := rq.Promise(context.Background())
	require.Error(t, err)
	assert.False(t, c.IsConnected())

	writes := fake.writesSnapshot()
	foundClose := false
	for _, w := range writes {
		if w.messageType == websocket.CloseMessage {
			foundClose = true
		}
	}
	assert.True(t, foundClose)
}

func TestConn_UnrecognizedFrameShapeAbortsAllQueuedQueries(t *testing.T) {
	t.Parallel()

	fake := &fakeWSConn{
		reads: []fakeRead{
			{messageType: websocket.TextMessage, data: []byte(wire.URNResultDescription)},
			{messageType: websocket.TextMessage, data: []byte(`{"somethingUnexpected":true}`)},
		},
	}
	c := newTestConn(fake)
	rq1 := c.queue.Enqueue()
	rq2 := c.queue.Enqueue()

	c.readPump()

	_, err1 := rq1.Promise(context.Background())
	_, err2 := rq2.Promise(context.Background())
	require.Error(t, err1)
	require.Error(t, err2)
	assert.False(t, c.IsConnected())
}

func TestConn_CloseSendsNormalClosureAndMarksDisconnected(t *testing.T) {
	t.Parallel()

	fake := &fakeWSConn{}
	c := newTestConn(fake)

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())

	writes := fake.writesSnapshot()
	require.Len(t, writes, 1)
	assert.Equal(t, websocket.CloseMessage, writes[0].messageType)
}

func TestConn_BackpressureWaitsForBufferToDrain(t *testing.T) {
	t.Parallel()

	fake := &fakeWSConn{bufAmt: 2 << 20}
	c := newTestConn(fake)

	go func() {
		time.Sleep(30 * time.Millisecond)
		fake.setBufferedAmount(0)
	}()

	start := time.Now()
	err := c.send(context.Background(), websocket.TextMessage, []byte("payload"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func strp(s string) *string { return &s }
