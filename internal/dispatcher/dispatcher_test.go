package dispatcher

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedTransport blocks every RoundTrip until release is closed, then
// returns the configured response. This reproduces
// test_service_manager.py's blocking-then-release pattern for burst tests
// without real network I/O.
type gatedTransport struct {
	release    chan struct{}
	statusCode int
	body       string
	calls      atomic.Int64
}

func (t *gatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	<-t.release
	return &http.Response{
		StatusCode: t.statusCode,
		Body:       io.NopCloser(strings.NewReader(t.body)),
		Header:     make(http.Header),
	}, nil
}

func newTestDispatcher(t *testing.T, rpm int, transport http.RoundTripper) *Dispatcher {
	t.Helper()
	return New(Config{
		BaseURL:              "http://upstream.example.com",
		APIKey:               "test-key",
		MaxRequestsPerMinute: rpm,
		Client:               &http.Client{Transport: transport},
	})
}

func TestDispatch_SynchronousSuccess(t *testing.T) {
	gt := &gatedTransport{release: make(chan struct{}), statusCode: 200, body: "aaaa"}
	close(gt.release)

	d := newTestDispatcher(t, 60, gt)
	outcome, result := d.Dispatch(context.Background(), []byte("foobar"))

	require.Equal(t, Ack, outcome)
	require.NotNil(t, result)
	assert.Equal(t, 200, result.StatusCode)
	assert.Equal(t, "aaaa", string(result.Body))
}

func TestDispatch_BusyWithinRateWindow(t *testing.T) {
	gt := &gatedTransport{release: make(chan struct{}), statusCode: 200, body: "aaaa"}
	close(gt.release)

	// One request per minute: the second call lands inside the window.
	d := newTestDispatcher(t, 1, gt)

	outcome1, _ := d.Dispatch(context.Background(), []byte("x"))
	require.Equal(t, Ack, outcome1)

	outcome2, result2 := d.Dispatch(context.Background(), []byte("y"))
	assert.Equal(t, Busy, outcome2)
	assert.Nil(t, result2)
}

func TestDispatch_BurstExactlyOneAck(t *testing.T) {
	gt := &gatedTransport{release: make(chan struct{}), statusCode: 200, body: "aaaa"}
	d := newTestDispatcher(t, 60, gt)

	const n = 10
	outcomes := make([]Outcome, n)
	var wg sync.WaitGroup
	var started sync.WaitGroup
	started.Add(n)
	wg.Add(n)

	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			started.Done()
			started.Wait()
			outcome, _ := d.Dispatch(context.Background(), []byte("msg"))
			outcomes[i] = outcome
		}(i)
	}

	// Give every goroutine a chance to reach the gate before releasing the
	// one admitted call.
	time.Sleep(20 * time.Millisecond)
	close(gt.release)
	wg.Wait()

	var acks, busies int
	for _, o := range outcomes {
		if o == Ack {
			acks++
		} else {
			busies++
		}
	}

	assert.Equal(t, 1, acks)
	assert.Equal(t, n-1, busies)
}

func TestDispatch_TransportErrorReturnsBusy(t *testing.T) {
	d := New(Config{
		BaseURL:              "http://upstream.example.com",
		APIKey:               "test-key",
		MaxRequestsPerMinute: 60,
		Client:               &http.Client{Transport: erroringTransport{}},
	})

	outcome, result := d.Dispatch(context.Background(), []byte("x"))
	assert.Equal(t, Busy, outcome)
	assert.Nil(t, result)
}

type erroringTransport struct{}

func (erroringTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, assertErr{}
}

type assertErr struct{}

func (assertErr) Error() string { return "simulated transport failure" }
