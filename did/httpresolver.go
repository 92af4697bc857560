// SPDX-License-Identifier: LGPL-3.0-or-later

package did

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WebResolver resolves did:web identifiers by fetching their published
// DID document over HTTPS (https://www.w3.org/TR/did-web/). It is the
// mediator's default out-of-the-box Resolver; operators who need a
// universal resolver or a different DID method wrap or replace it,
// since resolution is an external collaborator this package never
// owns the rules for (spec §6).
type WebResolver struct {
	client *http.Client
}

// NewWebResolver builds a WebResolver with the given HTTP timeout.
func NewWebResolver(timeout time.Duration) *WebResolver {
	return &WebResolver{client: &http.Client{Timeout: timeout}}
}

// Resolve implements Resolver for did:web identifiers only; any other
// method is rejected rather than silently mis-resolved.
func (r *WebResolver) Resolve(ctx context.Context, d AgentDID) (*Document, error) {
	docURL, err := webDocumentURL(d)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("did: build resolution request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("did: fetch %s: %w", docURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("did: %s returned status %d", docURL, resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("did: decode document from %s: %w", docURL, err)
	}
	return &doc, nil
}

// webDocumentURL implements the did:web method's path mapping:
// did:web:example.com -> https://example.com/.well-known/did.json
// did:web:example.com:a:b -> https://example.com/a/b/did.json
func webDocumentURL(d AgentDID) (string, error) {
	s := string(d)
	const prefix = "did:web:"
	if !strings.HasPrefix(s, prefix) {
		return "", fmt.Errorf("did: %w: %s is not a did:web identifier", ErrUnsupportedKey, s)
	}
	rest, _ := AgentDID(s).Fragment()
	parts := strings.Split(strings.TrimPrefix(string(rest), prefix), ":")
	for i, p := range parts {
		decoded, err := url.PathUnescape(p)
		if err != nil {
			return "", fmt.Errorf("did: decode did:web segment %q: %w", p, err)
		}
		parts[i] = decoded
	}

	host := parts[0]
	if len(parts) == 1 {
		return "https://" + host + "/.well-known/did.json", nil
	}
	return "https://" + host + "/" + strings.Join(parts[1:], "/") + "/did.json", nil
}
