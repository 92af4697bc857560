// SPDX-License-Identifier: LGPL-3.0-or-later

package protocols

import (
	"context"

	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/internal/metrics"
)

// handleStoreForward is the default fallback for any message.type not
// matched by a more specific handler (spec §4.6's last row): store and
// forward to the recipient if its ACL allows inbound delivery, else
// answer with a problem report.
func handleStoreForward(ctx context.Context, deps *Deps, in HandlerInput) (*Response, error) {
	if len(in.Message.To) == 0 {
		return nil, merr.New(merr.RequestDataError, "message has no recipient")
	}
	recipient := in.Message.To[0]

	set, err := loadACLByDID(ctx, deps, recipient)
	if err != nil {
		return nil, err
	}
	if !set.CheckBlocked(deps.ACLMode) {
		metrics.ACLDenials.WithLabelValues("blocked").Inc()
		return &Response{Ephemeral: problemReport("e.p.acl-denied", "recipient does not accept inbound messages")}, nil
	}
	if !set.CheckInbound(deps.ACLMode) {
		metrics.ACLDenials.WithLabelValues("inbound").Inc()
		return &Response{Ephemeral: problemReport("e.p.acl-denied", "recipient does not accept inbound messages")}, nil
	}

	return &Response{Deliver: &Delivery{
		RecipientDID: recipient,
		FromDID:      in.Message.From,
		Blob:         in.RawBytes,
		ExpiresTime:  in.Message.ExpiresTime,
	}}, nil
}
