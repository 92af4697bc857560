// SPDX-License-Identifier: LGPL-3.0-or-later

package protocols

import (
	"context"
	"encoding/json"
	"time"

	"github.com/didcomm-x/mediator/did"
	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/store"
)

const adminManagementType = "https://didcomm.org/mediator/1.0/admin-management"

type adminManagementBody struct {
	Action string `json:"action"` // "add" | "remove" | "check"
	DID    string `json:"did,omitempty"`
}

func requireAdmin(ctx context.Context, deps *Deps, session *store.Session) error {
	if session == nil || session.State != store.SessionStateAuthenticated {
		return merr.New(merr.AuthenticationError, "admin operations require an authenticated session")
	}
	account, ok, err := deps.Store.IsAdmin(ctx, session.DIDHash)
	if err != nil {
		return err
	}
	if !ok || account == nil {
		return merr.New(merr.PermissionError, "caller is not an admin")
	}
	return nil
}

// handleAdminManagement implements spec §4.6's admin-management row:
// admin-only add/remove of admin accounts, plus "check" to look up
// whether one DID is an admin. There is no action that lists all admins.
func handleAdminManagement(ctx context.Context, deps *Deps, in HandlerInput) (*Response, error) {
	if err := requireAdmin(ctx, deps, in.Session); err != nil {
		return nil, err
	}

	var body adminManagementBody
	if err := json.Unmarshal(in.Message.Body, &body); err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "decode admin-management body")
	}

	switch body.Action {
	case "add":
		if body.DID == "" {
			return nil, merr.New(merr.RequestDataError, "admin add requires did")
		}
		hash := did.Hash(did.AgentDID(body.DID))
		if err := deps.Store.AddAdmin(ctx, &store.AdminAccount{DIDHash: hash, Role: store.AdminRoleAdmin, AddedAt: time.Now()}); err != nil {
			return nil, err
		}
		return &Response{Ephemeral: mustJSON(map[string]any{"ok": true})}, nil

	case "remove":
		if body.DID == "" {
			return nil, merr.New(merr.RequestDataError, "admin remove requires did")
		}
		caller, _, err := deps.Store.IsAdmin(ctx, in.Session.DIDHash)
		if err != nil {
			return nil, err
		}
		if caller.Role != store.AdminRoleRootAdmin {
			return nil, merr.New(merr.PermissionError, "only the root admin may remove admins")
		}
		targetHash := did.Hash(did.AgentDID(body.DID))
		target, ok, err := deps.Store.IsAdmin(ctx, targetHash)
		if err != nil {
			return nil, err
		}
		if ok && target.Role == store.AdminRoleRootAdmin {
			return nil, merr.New(merr.PermissionError, "the root admin cannot be removed")
		}
		if err := deps.Store.RemoveAdmin(ctx, targetHash); err != nil {
			return nil, err
		}
		return &Response{Ephemeral: mustJSON(map[string]any{"ok": true})}, nil

	case "check":
		if body.DID == "" {
			return nil, merr.New(merr.RequestDataError, "admin check requires did")
		}
		account, ok, err := deps.Store.IsAdmin(ctx, did.Hash(did.AgentDID(body.DID)))
		if err != nil {
			return nil, err
		}
		if !ok {
			return &Response{Ephemeral: mustJSON(map[string]any{"is_admin": false})}, nil
		}
		return &Response{Ephemeral: mustJSON(map[string]any{"is_admin": true, "role": account.Role})}, nil

	default:
		return nil, merr.Newf(merr.RequestDataError, "unknown admin-management action %q", body.Action)
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return b
}
