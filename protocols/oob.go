// SPDX-License-Identifier: LGPL-3.0-or-later

package protocols

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/store"
)

const oobDiscoveryType = "https://didcomm.org/oob/2.0/discovery"

// DefaultOOBInviteTTL is how long an OOB invite may be fetched before it
// is considered gone when its create request carries no ttl_secs; a
// positive ttl_secs replaces it and is not capped (spec §4.6 "TTL bounded").
const DefaultOOBInviteTTL = 24 * time.Hour

type oobBody struct {
	Action   string          `json:"action"` // "create" | "fetch" | "delete"
	ID       string          `json:"id,omitempty"`
	Invite   json.RawMessage `json:"invite,omitempty"`
	TTLSecs  int64           `json:"ttl_secs,omitempty"`
}

// handleOOBDiscovery implements spec §4.6's `…/oob/…` row: create,
// fetch, and delete short-id out-of-band invitations.
func handleOOBDiscovery(ctx context.Context, deps *Deps, in HandlerInput) (*Response, error) {
	var body oobBody
	if err := json.Unmarshal(in.Message.Body, &body); err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "decode oob body")
	}

	switch body.Action {
	case "create":
		if len(body.Invite) == 0 {
			return nil, merr.New(merr.RequestDataError, "oob create requires invite")
		}
		ttl := DefaultOOBInviteTTL
		if body.TTLSecs > 0 {
			ttl = time.Duration(body.TTLSecs) * time.Second
		}
		invite := &store.OOBInvite{
			ID:        uuid.NewString(),
			Blob:      body.Invite,
			CreatedBy: in.Message.From,
			ExpiresAt: time.Now().Add(ttl),
		}
		if err := deps.Store.PutOOBInvite(ctx, invite); err != nil {
			return nil, err
		}
		return &Response{Ephemeral: mustJSON(map[string]any{"id": invite.ID, "expires_at": invite.ExpiresAt})}, nil

	case "fetch":
		if body.ID == "" {
			return nil, merr.New(merr.RequestDataError, "oob fetch requires id")
		}
		invite, err := deps.Store.GetOOBInvite(ctx, body.ID)
		if err != nil {
			return nil, err
		}
		if time.Now().After(invite.ExpiresAt) {
			_ = deps.Store.DeleteOOBInvite(ctx, body.ID)
			return nil, merr.New(merr.MessageExpired, "oob invite has expired")
		}
		return &Response{Ephemeral: invite.Blob}, nil

	case "delete":
		if body.ID == "" {
			return nil, merr.New(merr.RequestDataError, "oob delete requires id")
		}
		if err := deps.Store.DeleteOOBInvite(ctx, body.ID); err != nil {
			return nil, err
		}
		return &Response{Ephemeral: mustJSON(map[string]any{"ok": true})}, nil

	default:
		return nil, merr.Newf(merr.RequestDataError, "unknown oob action %q", body.Action)
	}
}
