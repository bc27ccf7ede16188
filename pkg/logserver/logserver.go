// Package logserver implements a fire-and-forget mirror of document
// mutations to an external log-server endpoint, so a collection can be
// recovered or replayed from the log rather than only from bundle
// file backups. Failures here never block or fail the originating
// mutation.
package logserver

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sf1r/coreengine/pkg/docmodel"
)

// Mutation is a single insert/update/delete to mirror.
type Mutation struct {
	Hash       docmodel.ContentHash
	BundleText string // reassembled bundle record text; empty for deletes
	Delete     bool
}

// Forwarder posts Mutations to Endpoint asynchronously. A zero-value
// Forwarder (Endpoint == "") is disabled and Submit becomes a no-op,
// matching the "when enabled" clause of the mutation-mirroring
// contract.
type Forwarder struct {
	Endpoint string
	Client   *http.Client
	Timeout  time.Duration
}

// New builds a Forwarder posting to endpoint. An empty endpoint
// disables forwarding.
func New(endpoint string) *Forwarder {
	return &Forwarder{
		Endpoint: endpoint,
		Client:   http.DefaultClient,
		Timeout:  5 * time.Second,
	}
}

// Enabled reports whether the forwarder has a configured endpoint.
func (f *Forwarder) Enabled() bool {
	return f != nil && f.Endpoint != ""
}

// Submit asynchronously mirrors m to the log-server endpoint. It
// never blocks the caller and never returns an error: failures are
// logged and dropped.
func (f *Forwarder) Submit(m Mutation) {
	if !f.Enabled() {
		return
	}
	go f.send(m)
}

func (f *Forwarder) send(m Mutation) {
	ctx, cancel := context.WithTimeout(context.Background(), f.Timeout)
	defer cancel()

	var body bytes.Buffer
	fmt.Fprintf(&body, "hash=%s\n", hex.EncodeToString(m.Hash[:]))
	if m.Delete {
		body.WriteString("op=delete\n")
	} else {
		body.WriteString("op=write\n")
		body.WriteString(m.BundleText)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, &body)
	if err != nil {
		log.Printf("logserver: failed to build request: %v", err)
		return
	}

	resp, err := f.client().Do(req)
	if err != nil {
		log.Printf("logserver: submit failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("logserver: submit rejected with status %v", resp.Status)
	}
}

func (f *Forwarder) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}
