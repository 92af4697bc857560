// SPDX-License-Identifier: LGPL-3.0-or-later

// Package processor implements the inbound message pipeline (component
// C6, spec §4.5): decode, unpack, dispatch on message.type, and act on
// what the matched protocols.Handler reports back.
package processor

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/didcomm-x/mediator/envelope"
	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/internal/metrics"
	"github.com/didcomm-x/mediator/protocols"
	"github.com/didcomm-x/mediator/store"
)

// LiveDeliveryPublisher is C10's half of the contract: the processor
// publishes a freshly stored message to whatever active stream is
// registered for a did_hash, without needing to know how that stream is
// implemented.
type LiveDeliveryPublisher interface {
	Publish(didHash, msgID string, blob []byte)
	HasActiveSession(didHash string) bool
}

// Processor wires C1 (envelope), C7 (protocol dispatch), C4 (storage),
// and C10 (live delivery) into the single pipeline spec §4.5 describes.
type Processor struct {
	Codec     *envelope.Codec
	Store     store.Store
	Registry  *protocols.Registry
	Live      LiveDeliveryPublisher
	Deps      *protocols.Deps
}

// New builds a Processor from its collaborators.
func New(codec *envelope.Codec, st store.Store, registry *protocols.Registry, live LiveDeliveryPublisher, deps *protocols.Deps) *Processor {
	return &Processor{Codec: codec, Store: st, Registry: registry, Live: live, Deps: deps}
}

// Delivered names one message.Process stored for a recipient, the
// shape POST /inbound's response reports back to the caller (spec
// §4.7: `stored: [{recipient_did_hash, msg_id}]`).
type Delivered struct {
	RecipientDIDHash string
	MsgID            string
}

// Process unpacks raw, dispatches it through the matching
// protocols.Handler, and performs whatever persistence/forwarding side
// effect the handler reported. It returns bytes to hand straight back
// to the caller (an ephemeral reply, or nil when nothing should be
// returned synchronously) plus what, if anything, was stored.
func (p *Processor) Process(ctx context.Context, raw []byte, session *store.Session) ([]byte, []Delivered, error) {
	env, err := p.Codec.Unpack(ctx, raw)
	if err != nil {
		return nil, nil, err
	}
	if env.Envelope.Kind != envelope.KindPlaintext || env.Envelope.Plaintext == nil {
		return nil, nil, merr.New(merr.InvalidState, "unpack did not resolve to a plaintext message")
	}
	msg := env.Envelope.Plaintext
	metrics.MessagesReceived.WithLabelValues(msg.Type).Inc()

	start := time.Now()
	defer func() {
		metrics.ProcessingDuration.WithLabelValues(msg.Type).Observe(time.Since(start).Seconds())
	}()

	if msg.ExpiresTime != 0 && time.Now().Unix() >= msg.ExpiresTime {
		return nil, nil, merr.New(merr.MessageExpired, "message has already expired")
	}

	handler := p.Registry.Lookup(msg.Type)
	resp, err := handler(ctx, p.Deps, protocols.HandlerInput{
		Message:    msg,
		Meta:       &env.Metadata,
		Session:    session,
		RawBytes:   raw,
		SHA256Hash: env.SHA256Hash,
	})
	if err != nil {
		return nil, nil, err
	}

	var delivered []Delivered
	if resp.Deliver != nil {
		d, err := p.deliver(ctx, resp.Deliver)
		if err != nil {
			return nil, nil, err
		}
		delivered = append(delivered, *d)
	}
	if resp.Forward != nil {
		p.scheduleForward(resp.Forward)
	}

	return resp.Ephemeral, delivered, nil
}

func (p *Processor) deliver(ctx context.Context, d *protocols.Delivery) (*Delivered, error) {
	stored := store.NewMessage(d.RecipientDID, d.FromDID, d.Blob, d.ExpiresTime)
	if err := p.Store.StoreMessage(ctx, stored); err != nil {
		return nil, merr.Wrap(merr.DatabaseError, err, "store delivered message")
	}
	metrics.MessagesStored.Inc()
	if d.ForceLiveDelivery || p.Live.HasActiveSession(stored.ToHash) {
		p.Live.Publish(stored.ToHash, stored.ID, stored.Blob)
		metrics.MessagesDelivered.Inc()
	}
	return &Delivered{RecipientDIDHash: stored.ToHash, MsgID: stored.ID}, nil
}

// scheduleForward implements routing/2.0/forward's delay_milli
// semantics (spec §4.6): a negative delay means "uniformly random
// somewhere in [0, |delay|]", both bounded by protocols.MaxDelay.
// Forwarding runs detached from the request that triggered it, using
// context.Background, so the onward hop is not cancelled when the
// client that asked for it to be scheduled goes away.
func (p *Processor) scheduleForward(f *protocols.Forward) {
	delay := f.DelayMilli
	if delay < 0 {
		bound := -delay
		if bound > protocols.MaxDelay {
			bound = protocols.MaxDelay
		}
		n, err := rand.Int(rand.Reader, big.NewInt(bound+1))
		if err != nil {
			delay = bound
		} else {
			delay = n.Int64()
		}
	}
	if delay > protocols.MaxDelay {
		delay = protocols.MaxDelay
	}

	time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
		ctx := context.Background()
		stored := store.NewMessage(f.Next, "", f.Ciphertext, 0)
		if err := p.Store.StoreMessage(ctx, stored); err != nil {
			return
		}
		metrics.MessagesStored.Inc()
		if p.Live.HasActiveSession(stored.ToHash) {
			p.Live.Publish(stored.ToHash, stored.ID, stored.Blob)
			metrics.MessagesDelivered.Inc()
		}
	})
}
