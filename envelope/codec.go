// SPDX-License-Identifier: LGPL-3.0-or-later

package envelope

import (
	"context"
	"encoding/base64"

	"github.com/didcomm-x/mediator/did"
	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/secrets"
)

// Codec packs and unpacks DIDComm envelopes, resolving sender/recipient
// key material through the DID and secrets collaborators (spec §6).
type Codec struct {
	DIDs    did.Resolver
	Secrets secrets.Resolver

	// MaxDepth bounds iterative peeling (spec §9 "cap depth (e.g. 8)").
	MaxDepth int
}

// NewCodec builds a Codec with the spec's default peeling depth of 8.
func NewCodec(dids did.Resolver, sec secrets.Resolver) *Codec {
	return &Codec{DIDs: dids, Secrets: sec, MaxDepth: 8}
}

// PackOptions configures pack_encrypted (spec §4.1).
type PackOptions struct {
	Enc string // content encryption algorithm; defaults to A256CBC-HS512
}

func b64e(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func b64d(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "base64url decode")
	}
	return b, nil
}

func didOf(kid string) did.AgentDID {
	d, _ := did.AgentDID(kid).Fragment()
	return d
}

func resolveDoc(ctx context.Context, resolver did.Resolver, d did.AgentDID) (*did.Document, error) {
	doc, err := resolver.Resolve(ctx, d)
	if err != nil {
		return nil, merr.Wrap(merr.DIDNotResolved, err, "resolve "+string(d))
	}
	return doc, nil
}
