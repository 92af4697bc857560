// SPDX-License-Identifier: LGPL-3.0-or-later

// Package acl implements the mediator's packed-bitfield ACL set: a
// 16-bit flag word interpreted under one of two mode-wide policies
// (component C3, spec §4.2).
package acl

import (
	"strings"

	"github.com/didcomm-x/mediator/internal/merr"
)

// Mode is the process-wide ACL interpretation policy. It is read from
// config at startup and never changes at runtime (spec §9 "Global ACL
// mode as compile-/config-time flag").
type Mode int

const (
	// ExplicitAllow: a set bit grants the permission.
	ExplicitAllow Mode = iota
	// ExplicitDeny: a set bit revokes the permission.
	ExplicitDeny
)

// ParseMode reads the config-file token ("explicit_allow" |
// "explicit_deny") into a Mode, defaulting to ExplicitDeny on an empty
// string so an unconfigured mediator fails closed.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "explicit_deny":
		return ExplicitDeny, nil
	case "explicit_allow":
		return ExplicitAllow, nil
	default:
		return ExplicitDeny, merr.Newf(merr.Malformed, "acl: unrecognized mode %q", s)
	}
}

// Bit positions, least-significant-first (spec §4.2).
const (
	bitBlocked = 1 << iota
	bitLocal
	bitInbound
	bitCreateInvites
	bitForwardFrom
	bitForwardTo
)

// Set is the 16-bit packed ACL bitfield for one DID (spec §3).
type Set uint16

// DenyAll is every defined bit set, the ruleset token "DENY_ALL" parses
// to. Under ExplicitDeny this denies every checked permission; under
// ExplicitAllow it grants every one, so DENY_ALL is only meaningful
// paired with the mediator's actual configured mode.
const DenyAll Set = bitBlocked | bitLocal | bitInbound | bitCreateInvites | bitForwardFrom | bitForwardTo

var flagBits = map[string]Set{
	"BLOCKED":        bitBlocked,
	"LOCAL":          bitLocal,
	"INBOUND":        bitInbound,
	"CREATE_INVITES": bitCreateInvites,
	"FORWARD_FROM":   bitForwardFrom,
	"FORWARD_TO":     bitForwardTo,
	"DENY_ALL":       DenyAll,
}

// Parse tokenizes a comma-separated ruleset ("DENY_ALL,LOCAL,BLOCKED")
// into a Set, failing on any unrecognized flag (spec §4.2).
func Parse(ruleset string) (Set, error) {
	var s Set
	if strings.TrimSpace(ruleset) == "" {
		return 0, nil
	}
	for _, tok := range strings.Split(ruleset, ",") {
		name := strings.ToUpper(strings.TrimSpace(tok))
		bit, ok := flagBits[name]
		if !ok {
			return 0, merr.Newf(merr.Malformed, "acl: unknown flag %q", tok)
		}
		s |= bit
	}
	return s, nil
}

// String renders s as a comma-separated ruleset of the individual flags
// actually set.
func (s Set) String() string {
	names := []string{"BLOCKED", "LOCAL", "INBOUND", "CREATE_INVITES", "FORWARD_FROM", "FORWARD_TO"}
	bits := []Set{bitBlocked, bitLocal, bitInbound, bitCreateInvites, bitForwardFrom, bitForwardTo}
	var set []string
	for i, b := range bits {
		if s&b != 0 {
			set = append(set, names[i])
		}
	}
	return strings.Join(set, ",")
}

// check applies the mode-aware predicate rule (spec §4.2): under
// ExplicitDeny a set bit means "denied", so the predicate inverts;
// under ExplicitAllow a set bit means "allowed" directly.
func check(s Set, mode Mode, bit Set) bool {
	if mode == ExplicitDeny {
		return s&bit == 0
	}
	return s&bit != 0
}

// CheckBlocked reports whether the DID is permitted to connect at all.
func (s Set) CheckBlocked(mode Mode) bool { return check(s, mode, bitBlocked) }

// CheckLocal reports whether the DID is recognized as locally hosted.
func (s Set) CheckLocal(mode Mode) bool { return check(s, mode, bitLocal) }

// CheckInbound reports whether the DID may send messages through the
// mediator.
func (s Set) CheckInbound(mode Mode) bool { return check(s, mode, bitInbound) }

// CheckCreateInvites reports whether the DID may create/delete OOB
// invitations.
func (s Set) CheckCreateInvites(mode Mode) bool { return check(s, mode, bitCreateInvites) }

// CheckForwardFrom reports whether the DID may originate forwarded
// messages.
func (s Set) CheckForwardFrom(mode Mode) bool { return check(s, mode, bitForwardFrom) }

// CheckForwardTo reports whether the DID may receive forwarded
// messages.
func (s Set) CheckForwardTo(mode Mode) bool { return check(s, mode, bitForwardTo) }
