// SPDX-License-Identifier: LGPL-3.0-or-later

package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/didcomm-x/mediator/internal/merr"
)

type challengeRequest struct {
	DID string `json:"did"`
}

// handleChallenge implements POST /authenticate/challenge (spec §4.4
// step 1).
func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DID == "" {
		writeErr(w, "", merr.New(merr.Malformed, "challenge request requires did"))
		return
	}
	result, err := s.Auth.IssueChallenge(r.Context(), req.DID)
	if err != nil {
		writeErr(w, "", err)
		return
	}
	writeData(w, result.SessionID, result)
}

// handleAuthenticate implements POST /authenticate (spec §4.4 step 2):
// the body is the signed challenge-response packed DIDComm message.
func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeErr(w, "", merr.Wrap(merr.Malformed, err, "read request body"))
		return
	}
	pair, err := s.Auth.VerifyChallengeResponse(r.Context(), raw)
	if err != nil {
		writeErr(w, "", err)
		return
	}
	writeData(w, "", pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleRefresh implements POST /authenticate/refresh.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeErr(w, "", merr.New(merr.Malformed, "refresh request requires refresh_token"))
		return
	}
	pair, err := s.Auth.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeErr(w, "", err)
		return
	}
	writeData(w, "", pair)
}

// handleWhoami reports the authenticated session's own identity.
func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	writeData(w, session.ID, map[string]any{
		"did":           session.DID,
		"did_hash":      session.DIDHash,
		"live_delivery": session.LiveDelivery,
	})
}
