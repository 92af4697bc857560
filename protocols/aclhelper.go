// SPDX-License-Identifier: LGPL-3.0-or-later

package protocols

import (
	"context"

	"github.com/didcomm-x/mediator/acl"
	"github.com/didcomm-x/mediator/did"
)

// loadACLByDID returns the stored bitfield for d, or the zero Set if
// none is on record — an absent record means "no explicit bits set",
// which CheckX interprets per the mediator's global mode.
func loadACLByDID(ctx context.Context, deps *Deps, d string) (acl.Set, error) {
	entry, err := deps.Store.GetACL(ctx, did.Hash(did.AgentDID(d)))
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, nil
	}
	return entry.Set, nil
}
