// SPDX-License-Identifier: LGPL-3.0-or-later

package protocols

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/internal/metrics"
)

const forwardType = "https://didcomm.org/routing/2.0/forward"

// MaxDelay bounds the routing/2.0/forward delay_milli header (Open
// Question decision: capped rather than unbounded).
const MaxDelay = 24 * 60 * 60 * 1000

type forwardBody struct {
	Next       string `json:"next"`
	DelayMilli int64  `json:"delay_milli,omitempty"`
}

// handleForward implements spec §4.6's routing/2.0/forward row: body.next
// names the onward recipient, attachments[0] carries the opaque ciphertext,
// and both the sender's and the onward recipient's ACLs must permit it.
func handleForward(ctx context.Context, deps *Deps, in HandlerInput) (*Response, error) {
	var body forwardBody
	if err := json.Unmarshal(in.Message.Body, &body); err != nil || body.Next == "" {
		return nil, merr.New(merr.Malformed, "forward message missing body.next")
	}
	if len(in.Message.Attachments) == 0 || in.Message.Attachments[0].Data.Base64 == "" {
		return nil, merr.New(merr.Malformed, "forward message missing onward ciphertext attachment")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(in.Message.Attachments[0].Data.Base64)
	if err != nil {
		ciphertext, err = base64.RawURLEncoding.DecodeString(in.Message.Attachments[0].Data.Base64)
		if err != nil {
			return nil, merr.Wrap(merr.Malformed, err, "decode forward attachment")
		}
	}

	if in.Message.From != "" {
		senderACL, err := loadACLByDID(ctx, deps, in.Message.From)
		if err != nil {
			return nil, err
		}
		if !senderACL.CheckForwardFrom(deps.ACLMode) {
			metrics.ACLDenials.WithLabelValues("forward_from").Inc()
			return nil, merr.New(merr.ACLDenied, "sender is not permitted to forward")
		}
	}
	recipientACL, err := loadACLByDID(ctx, deps, body.Next)
	if err != nil {
		return nil, err
	}
	if !recipientACL.CheckForwardTo(deps.ACLMode) {
		metrics.ACLDenials.WithLabelValues("forward_to").Inc()
		return nil, merr.New(merr.ACLDenied, "recipient does not accept forwarded messages")
	}

	if body.DelayMilli > MaxDelay || body.DelayMilli < -MaxDelay {
		return nil, merr.New(merr.RequestDataError, "delay_milli exceeds maximum")
	}

	return &Response{Forward: &Forward{Next: body.Next, Ciphertext: ciphertext, DelayMilli: body.DelayMilli}}, nil
}
