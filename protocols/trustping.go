// SPDX-License-Identifier: LGPL-3.0-or-later

package protocols

import (
	"context"
	"encoding/json"
	"time"

	"github.com/didcomm-x/mediator/envelope"
)

const trustPingType = "https://didcomm.org/trust-ping/2.0/ping"

type trustPingBody struct {
	ResponseRequested *bool `json:"response_requested,omitempty"`
}

// handleTrustPing implements spec §4.6's trust-ping row: a non-anonymous
// ping that did not opt out of a response gets a reciprocal pong stored
// and force-live-delivered back to the sender.
func handleTrustPing(ctx context.Context, deps *Deps, in HandlerInput) (*Response, error) {
	var body trustPingBody
	_ = json.Unmarshal(in.Message.Body, &body)

	if in.Message.From == "" || (body.ResponseRequested != nil && !*body.ResponseRequested) {
		return &Response{}, nil
	}

	var from string
	if len(in.Message.To) > 0 {
		from = in.Message.To[0]
	}
	pong := &envelope.Message{
		ID:          in.Message.ID + "-pong",
		Type:        trustPingType,
		Thid:        in.Message.ID,
		From:        from,
		To:          []string{in.Message.From},
		CreatedTime: time.Now().Unix(),
		ExpiresTime: time.Now().Add(300 * time.Second).Unix(),
	}
	packed, err := envelope.PackPlaintext(pong)
	if err != nil {
		return nil, err
	}

	return &Response{Deliver: &Delivery{
		RecipientDID:      in.Message.From,
		FromDID:           pong.From,
		Blob:              []byte(packed),
		ExpiresTime:       pong.ExpiresTime,
		ForceLiveDelivery: true,
	}}, nil
}
