package logserver

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sf1r/coreengine/pkg/docmodel"
)

func TestForwarder_Disabled(t *testing.T) {
	var f Forwarder
	require.False(t, f.Enabled())
	f.Submit(Mutation{}) // must not panic or block
}

func TestForwarder_SubmitPostsAsynchronously(t *testing.T) {
	var mu sync.Mutex
	var received string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		mu.Lock()
		received = string(buf[:n])
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(srv.URL)
	f.Submit(Mutation{Hash: docmodel.HashDocID("A"), BundleText: "<DOCID>A\n"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received != ""
	}, time.Second, 10*time.Millisecond)
}
