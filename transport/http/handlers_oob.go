// SPDX-License-Identifier: LGPL-3.0-or-later

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/store"
)

// DefaultOOBInviteTTL is used when the mediator's configured limit is
// zero (spec §4.7 "POST/GET/DELETE /oob?_oobid=…").
const DefaultOOBInviteTTL = 24 * time.Hour

func (s *Server) oobTTL() time.Duration {
	if s.OOBInviteTTL > 0 {
		return s.OOBInviteTTL
	}
	return DefaultOOBInviteTTL
}

// handleOOBCreate implements POST /oob.
func (s *Server) handleOOBCreate(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	blob, err := io.ReadAll(r.Body)
	if err != nil || len(blob) == 0 {
		writeErr(w, session.ID, merr.New(merr.Malformed, "oob create requires an invitation body"))
		return
	}

	invite := &store.OOBInvite{
		ID:        uuid.NewString(),
		Blob:      blob,
		CreatedBy: session.DID,
		ExpiresAt: time.Now().Add(s.oobTTL()),
	}
	if err := s.Store.PutOOBInvite(r.Context(), invite); err != nil {
		writeErr(w, session.ID, err)
		return
	}
	writeData(w, session.ID, map[string]any{"_oobid": invite.ID, "expires_at": invite.ExpiresAt})
}

// handleOOBFetch implements GET /oob?_oobid=…; unauthenticated, since an
// invitation is meant to be handed to a not-yet-known party.
func (s *Server) handleOOBFetch(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("_oobid")
	if id == "" {
		writeErr(w, "", merr.New(merr.RequestDataError, "missing _oobid"))
		return
	}
	invite, err := s.Store.GetOOBInvite(r.Context(), id)
	if err != nil {
		writeErr(w, "", err)
		return
	}
	if time.Now().After(invite.ExpiresAt) {
		_ = s.Store.DeleteOOBInvite(r.Context(), id)
		writeErr(w, "", merr.New(merr.MessageExpired, "oob invite has expired"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(json.RawMessage(invite.Blob))
}

// handleOOBDelete implements DELETE /oob?_oobid=….
func (s *Server) handleOOBDelete(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	id := r.URL.Query().Get("_oobid")
	if id == "" {
		writeErr(w, session.ID, merr.New(merr.RequestDataError, "missing _oobid"))
		return
	}
	if err := s.Store.DeleteOOBInvite(r.Context(), id); err != nil {
		writeErr(w, session.ID, err)
		return
	}
	writeOK(w, session.ID)
}
