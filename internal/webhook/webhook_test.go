package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigrelay/internal/task"
)

func TestNotify_EmptyURLNoop(t *testing.T) {
	n := NewNotifier(0, nil)
	tk := task.New("a", []byte("x"), "")
	n.Notify(context.Background(), tk) // must not panic or block
}

func TestNotify_DeliversSanitizedTaskJSON(t *testing.T) {
	var mu sync.Mutex
	var received task.ExternalTask

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tk := task.New("a", []byte("foobar"), srv.URL)
	tk.MarkDone([]byte("aaaa"))

	n := NewNotifier(0, nil)
	n.Notify(context.Background(), tk)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "a", received.ID)
	assert.Equal(t, "SUCCESS", string(received.Status))
	assert.Equal(t, "YWFhYQ==", received.Signature)
}

func TestNotify_NonOKSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tk := task.New("a", []byte("x"), srv.URL)
	n := NewNotifier(0, nil)
	assert.NotPanics(t, func() { n.Notify(context.Background(), tk) })
}

func TestValidateTarget_EmptyIsValid(t *testing.T) {
	require.NoError(t, ValidateTarget(context.Background(), "", nil))
}

func TestValidateTarget_BadScheme(t *testing.T) {
	err := ValidateTarget(context.Background(), "foo://google.com", nil)
	require.Error(t, err)
}

func TestValidateTarget_ResolutionFailure(t *testing.T) {
	err := ValidateTarget(context.Background(), "http://this-host-does-not-exist.invalid", nil)
	require.Error(t, err)
}
