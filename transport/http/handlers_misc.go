// SPDX-License-Identifier: LGPL-3.0-or-later

package http

import (
	"encoding/json"
	"net/http"

	"github.com/didcomm-x/mediator/internal/merr"
)

// handleWellKnownDID serves the mediator's own DID document so a new
// agent can discover it without an out-of-band invitation (spec §4.6
// OOB discovery companion route).
func (s *Server) handleWellKnownDID(w http.ResponseWriter, r *http.Request) {
	doc, err := s.Resolver.Resolve(r.Context(), s.MediatorDID)
	if err != nil {
		writeErr(w, "", merr.Wrap(merr.DIDNotResolved, err, "resolve mediator did"))
		return
	}
	w.Header().Set("Content-Type", "application/did+json")
	_ = json.NewEncoder(w).Encode(doc)
}

// handleWebsocket upgrades GET /ws to the bidirectional streaming
// surface; the session was already resolved by requireAuth.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	s.WS.Handle(w, r, sessionFrom(r.Context()))
}
