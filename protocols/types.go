// SPDX-License-Identifier: LGPL-3.0-or-later

// Package protocols implements the dispatch table keyed on message.type
// (component C7, spec §4.6): trust-ping, routing/forward, message
// pickup, admin and global-ACL management, OOB discovery, problem
// report, and the store-and-forward default.
package protocols

import (
	"context"

	"github.com/didcomm-x/mediator/acl"
	"github.com/didcomm-x/mediator/envelope"
	"github.com/didcomm-x/mediator/internal/metrics"
	"github.com/didcomm-x/mediator/store"
)

// Deps bundles the collaborators every handler may need.
type Deps struct {
	Store   store.Store
	Codec   *envelope.Codec
	ACLMode acl.Mode

	// MediatorKid signs messages the mediator originates itself
	// (trust-ping replies, problem reports).
	MediatorKid string
}

// HandlerInput is what the processor hands each dispatched handler.
type HandlerInput struct {
	Message    *envelope.Message
	Meta       *envelope.UnpackMetadata
	Session    *store.Session
	RawBytes   []byte
	SHA256Hash string
}

// Delivery asks the processor to persist a message for RecipientDID via
// store.NewMessage, optionally publishing it immediately via C10.
type Delivery struct {
	RecipientDID      string
	FromDID           string
	Blob              []byte
	ExpiresTime       int64
	ForceLiveDelivery bool
}

// Forward asks the processor to enqueue an onward ciphertext for Next,
// honoring DelayMilli per spec §4.6's routing/2.0/forward semantics.
type Forward struct {
	Next       string
	Ciphertext []byte
	DelayMilli int64
}

// Response is ProcessMessageResponse from spec §4.5, decomposed into
// what the processor actually has to act on.
type Response struct {
	// Ephemeral is returned directly to the sender and never stored
	// (problem reports, status/delivery-request replies).
	Ephemeral []byte

	// Deliver, if set, is stored (and possibly live-delivered) for its
	// recipient.
	Deliver *Delivery

	// Forward, if set, is routed onward per routing/2.0/forward.
	Forward *Forward
}

// Handler processes one dispatched message and reports what the
// processor should do next.
type Handler func(ctx context.Context, deps *Deps, in HandlerInput) (*Response, error)

func problemReport(code, comment string) []byte {
	metrics.ProblemReportsSent.WithLabelValues(code).Inc()
	msg := &envelope.Message{
		ID:   code + "-report",
		Type: "https://didcomm.org/report-problem/2.0/problem-report",
		Body: []byte(`{"code":"` + code + `","comment":"` + jsonEscape(comment) + `"}`),
	}
	out, err := envelope.PackPlaintext(msg)
	if err != nil {
		// PackPlaintext only fails on missing id/type, which are always
		// set above; fall back to a minimal literal rather than panic.
		return []byte(`{"code":"` + code + `"}`)
	}
	return []byte(out)
}

func jsonEscape(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch r {
		case '"', '\\':
			out = append(out, '\\', byte(r))
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, string(r)...)
		}
	}
	return string(out)
}
