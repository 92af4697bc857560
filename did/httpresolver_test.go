// SPDX-License-Identifier: LGPL-3.0-or-later

package did

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebResolverFetchesDocument(t *testing.T) {
	doc := &Document{ID: "did:web:example.com", Authentication: []string{"did:web:example.com#key-1"}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/.well-known/did.json", r.URL.Path)
		_ = json.NewEncoder(w).Encode(doc)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	r := NewWebResolver(time.Second)
	// webDocumentURL always builds an https:// URL; point resolution at
	// the test server by overriding the client's transport instead.
	r.client.Transport = rewriteSchemeTransport{targetHost: host}

	got, err := r.Resolve(context.Background(), "did:web:example.com")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
}

func TestWebResolverRejectsNonWebMethod(t *testing.T) {
	r := NewWebResolver(time.Second)
	_, err := r.Resolve(context.Background(), "did:key:z6Mk")
	require.Error(t, err)
}

func TestWebDocumentURLWithPath(t *testing.T) {
	u, err := webDocumentURL("did:web:example.com:mediator:v1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/mediator/v1/did.json", u)
}

// rewriteSchemeTransport redirects every request to host over plain
// HTTP, so the https:// URLs webDocumentURL builds can hit a local
// httptest server without a real TLS endpoint.
type rewriteSchemeTransport struct {
	targetHost string
}

func (t rewriteSchemeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.targetHost
	return http.DefaultTransport.RoundTrip(req)
}
