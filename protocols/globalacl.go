// SPDX-License-Identifier: LGPL-3.0-or-later

package protocols

import (
	"context"
	"encoding/json"

	"github.com/didcomm-x/mediator/acl"
	"github.com/didcomm-x/mediator/did"
	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/store"
)

const globalACLManagementType = "https://didcomm.org/mediator/1.0/global-acl-management"

type globalACLBody struct {
	Action  string `json:"action"` // "get" | "set"
	DID     string `json:"did"`
	Ruleset string `json:"ruleset,omitempty"` // comma-separated flags, parsed by acl.Parse
}

// handleGlobalACLManagement implements spec §4.6's global-acl-management
// row: admin-only read/update of a DID's ACL bitfield. Implemented as a
// full operation (see DESIGN.md's MediatorLocalACLManagement decision)
// since C4's GetACL/SetACL already exist and nothing blocks it.
func handleGlobalACLManagement(ctx context.Context, deps *Deps, in HandlerInput) (*Response, error) {
	if err := requireAdmin(ctx, deps, in.Session); err != nil {
		return nil, err
	}

	var body globalACLBody
	if err := json.Unmarshal(in.Message.Body, &body); err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "decode global-acl-management body")
	}
	if body.DID == "" {
		return nil, merr.New(merr.RequestDataError, "global-acl-management requires did")
	}
	hash := did.Hash(did.AgentDID(body.DID))

	switch body.Action {
	case "get":
		entry, err := deps.Store.GetACL(ctx, hash)
		if err != nil {
			return nil, err
		}
		set := acl.Set(0)
		if entry != nil {
			set = entry.Set
		}
		return &Response{Ephemeral: mustJSON(map[string]any{"did": body.DID, "ruleset": set.String()})}, nil

	case "set":
		set, err := acl.Parse(body.Ruleset)
		if err != nil {
			return nil, merr.Wrap(merr.RequestDataError, err, "parse ruleset")
		}
		if err := deps.Store.SetACL(ctx, &store.ACLEntry{DIDHash: hash, Set: set}); err != nil {
			return nil, err
		}
		return &Response{Ephemeral: mustJSON(map[string]any{"ok": true})}, nil

	default:
		return nil, merr.Newf(merr.RequestDataError, "unknown global-acl-management action %q", body.Action)
	}
}
