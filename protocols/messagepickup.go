// SPDX-License-Identifier: LGPL-3.0-or-later

package protocols

import (
	"context"
	"encoding/json"

	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/store"
)

const (
	statusRequestType        = "https://didcomm.org/messagepickup/3.0/status-request"
	deliveryRequestType      = "https://didcomm.org/messagepickup/3.0/delivery-request"
	messagesReceivedType     = "https://didcomm.org/messagepickup/3.0/messages-received"
	liveDeliveryChangeType   = "https://didcomm.org/messagepickup/3.0/live-delivery-change"
	maxPickupPageSize        = 100
)

func requireSession(in HandlerInput) (*store.Session, error) {
	if in.Session == nil || in.Session.State != store.SessionStateAuthenticated {
		return nil, merr.New(merr.AuthenticationError, "message pickup requires an authenticated session")
	}
	return in.Session, nil
}

// handleStatusRequest implements spec §4.6's status-request row: the
// count and byte total queued in the session's own inbox.
func handleStatusRequest(ctx context.Context, deps *Deps, in HandlerInput) (*Response, error) {
	session, err := requireSession(in)
	if err != nil {
		return nil, err
	}

	count := 0
	var bytes int64
	cursor := "-"
	for {
		page, err := deps.Store.ListMessages(ctx, session.DIDHash, store.FolderReceive, cursor, maxPickupPageSize)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			msg, err := deps.Store.GetMessage(ctx, item.MessageID)
			if err != nil {
				continue
			}
			count++
			bytes += msg.Size
		}
		if page.Cursor == "" || page.Cursor == cursor {
			break
		}
		cursor = page.Cursor
	}

	data, _ := json.Marshal(map[string]any{"message_count": count, "total_bytes": bytes})
	return &Response{Ephemeral: data}, nil
}

type deliveryRequestBody struct {
	Limit int `json:"limit"`
}

// handleDeliveryRequest implements spec §4.6's delivery-request row: up
// to limit queued ciphertexts, left in place until acknowledged.
func handleDeliveryRequest(ctx context.Context, deps *Deps, in HandlerInput) (*Response, error) {
	session, err := requireSession(in)
	if err != nil {
		return nil, err
	}

	var body deliveryRequestBody
	_ = json.Unmarshal(in.Message.Body, &body)
	limit := body.Limit
	if limit <= 0 || limit > maxPickupPageSize {
		limit = maxPickupPageSize
	}

	page, err := deps.Store.FetchMessages(ctx, session.DIDHash, "-", limit, store.FetchDeletePolicyNone)
	if err != nil {
		return nil, err
	}

	type item struct {
		MsgID string `json:"msg_id"`
		Blob  string `json:"blob"`
	}
	out := make([]item, 0, len(page.Items))
	for _, entry := range page.Items {
		msg, err := deps.Store.GetMessage(ctx, entry.MessageID)
		if err != nil {
			continue
		}
		out = append(out, item{MsgID: msg.ID, Blob: string(msg.Blob)})
	}

	data, _ := json.Marshal(map[string]any{"messages": out})
	return &Response{Ephemeral: data}, nil
}

type messagesReceivedBody struct {
	MsgIDs []string `json:"msg_ids"`
}

// handleMessagesReceived implements spec §4.6's messages-received row:
// the caller's own did_hash is the authorization for delete_message.
func handleMessagesReceived(ctx context.Context, deps *Deps, in HandlerInput) (*Response, error) {
	session, err := requireSession(in)
	if err != nil {
		return nil, err
	}

	var body messagesReceivedBody
	if err := json.Unmarshal(in.Message.Body, &body); err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "decode messages-received body")
	}

	type failure struct {
		MsgID string `json:"msg_id"`
		Error string `json:"error"`
	}
	var failures []failure
	for _, id := range body.MsgIDs {
		if err := deps.Store.DeleteMessage(ctx, id, session.DIDHash); err != nil {
			failures = append(failures, failure{MsgID: id, Error: err.Error()})
		}
	}

	data, _ := json.Marshal(map[string]any{"errors": failures})
	return &Response{Ephemeral: data}, nil
}

type liveDeliveryChangeBody struct {
	LiveDelivery bool `json:"live_delivery"`
}

// handleLiveDeliveryChange implements spec §4.6's live-delivery-change
// row: the flag is persisted on the session; C8's streaming surface
// consults it when the client opens a channel.
func handleLiveDeliveryChange(ctx context.Context, deps *Deps, in HandlerInput) (*Response, error) {
	session, err := requireSession(in)
	if err != nil {
		return nil, err
	}

	var body liveDeliveryChangeBody
	if err := json.Unmarshal(in.Message.Body, &body); err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "decode live-delivery-change body")
	}

	session.LiveDelivery = body.LiveDelivery
	if err := deps.Store.PutSession(ctx, session); err != nil {
		return nil, merr.Wrap(merr.DatabaseError, err, "persist live-delivery flag")
	}

	data, _ := json.Marshal(map[string]any{"live_delivery": session.LiveDelivery})
	return &Response{Ephemeral: data}, nil
}
