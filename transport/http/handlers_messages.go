// SPDX-License-Identifier: LGPL-3.0-or-later

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"

	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/store"
)

// startIDPattern is spec §4.7's start_id grammar: epoch-ms + sequence.
var startIDPattern = regexp.MustCompile(`^\d{13,14}-\d{1,3}$`)

func validStartID(id string) bool {
	return id == "" || id == "-" || startIDPattern.MatchString(id)
}

// handleInbound implements POST /inbound: the body is one packed
// DIDComm message (spec §4.7).
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeErr(w, session.ID, merr.Wrap(merr.Malformed, err, "read request body"))
		return
	}

	ephemeral, delivered, err := s.Processor.Process(r.Context(), raw, session)
	if err != nil {
		writeErr(w, session.ID, err)
		return
	}

	if ephemeral != nil {
		writeData(w, session.ID, map[string]any{"ephemeral": json.RawMessage(ephemeral)})
		return
	}

	type storedRef struct {
		RecipientDIDHash string `json:"recipient_did_hash"`
		MsgID            string `json:"msg_id"`
	}
	out := make([]storedRef, 0, len(delivered))
	for _, d := range delivered {
		out = append(out, storedRef{RecipientDIDHash: d.RecipientDIDHash, MsgID: d.MsgID})
	}
	writeData(w, session.ID, map[string]any{"stored": out})
}

type outboundRequest struct {
	MessageIDs []string `json:"message_ids"`
}

// handleOutbound implements POST /outbound: the caller must own every
// message it names (sender or recipient).
func (s *Server) handleOutbound(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var req outboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, session.ID, merr.Wrap(merr.Malformed, err, "decode outbound request"))
		return
	}

	type item struct {
		MsgID string `json:"msg_id"`
		Blob  string `json:"blob"`
	}
	out := make([]item, 0, len(req.MessageIDs))
	for _, id := range req.MessageIDs {
		msg, err := s.Store.GetMessage(r.Context(), id)
		if err != nil {
			continue
		}
		if msg.ToHash != session.DIDHash && msg.FromHash != session.DIDHash {
			continue
		}
		out = append(out, item{MsgID: msg.ID, Blob: string(msg.Blob)})
	}
	writeData(w, session.ID, map[string]any{"messages": out})
}

type fetchRequest struct {
	Limit        int    `json:"limit"`
	StartID      string `json:"start_id,omitempty"`
	DeletePolicy string `json:"delete_policy,omitempty"` // "none" | "on_receive"
}

// handleFetch implements POST /fetch (spec §4.7).
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, session.ID, merr.Wrap(merr.Malformed, err, "decode fetch request"))
		return
	}
	if req.Limit < 1 || req.Limit > 100 {
		writeErr(w, session.ID, merr.New(merr.RequestDataError, "limit must be in [1,100]"))
		return
	}
	if !validStartID(req.StartID) {
		writeErr(w, session.ID, merr.New(merr.ConfigError, "start_id does not match the required grammar"))
		return
	}
	startID := req.StartID
	if startID == "" {
		startID = "-"
	}
	policy := store.FetchDeletePolicyNone
	if req.DeletePolicy == "on_receive" {
		policy = store.FetchDeletePolicyOnReceive
	}

	page, err := s.Store.FetchMessages(r.Context(), session.DIDHash, startID, req.Limit, policy)
	if err != nil {
		writeErr(w, session.ID, err)
		return
	}

	type item struct {
		StreamID string `json:"stream_id"`
		MsgID    string `json:"msg_id"`
		Blob     string `json:"blob,omitempty"`
	}
	out := make([]item, 0, len(page.Items))
	var deleteErrors []string
	for _, entry := range page.Items {
		msg, err := s.Store.GetMessage(r.Context(), entry.MessageID)
		if err != nil {
			deleteErrors = append(deleteErrors, entry.MessageID)
			continue
		}
		out = append(out, item{StreamID: entry.StreamID, MsgID: msg.ID, Blob: string(msg.Blob)})
	}
	writeData(w, session.ID, map[string]any{
		"messages":      out,
		"cursor":        page.Cursor,
		"delete_errors": deleteErrors,
	})
}

// handleList implements GET /list/{did_hash}/{inbox|outbox}: a session
// may only list its own did_hash.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	didHash := r.PathValue("did_hash")
	if didHash != session.DIDHash {
		writeErr(w, session.ID, merr.New(merr.PermissionError, "cannot list another did_hash's stream"))
		return
	}

	var folder store.Folder
	switch r.PathValue("folder") {
	case "inbox":
		folder = store.FolderReceive
	case "outbox":
		folder = store.FolderSend
	default:
		writeErr(w, session.ID, merr.New(merr.RequestDataError, "folder must be inbox or outbox"))
		return
	}

	cursor := r.URL.Query().Get("cursor")
	if cursor == "" {
		cursor = "-"
	}
	limit := s.ListedMessagesLimit
	if limit <= 0 {
		limit = 100
	}

	page, err := s.Store.ListMessages(r.Context(), didHash, folder, cursor, limit)
	if err != nil {
		writeErr(w, session.ID, err)
		return
	}
	writeData(w, session.ID, page)
}

type deleteRequest struct {
	MessageIDs []string `json:"message_ids"`
}

// handleDelete implements DELETE /delete: at most DeletedMessagesMax ids
// per call (100 when unset).
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, session.ID, merr.Wrap(merr.Malformed, err, "decode delete request"))
		return
	}
	max := s.DeletedMessagesMax
	if max <= 0 {
		max = 100
	}
	if len(req.MessageIDs) > max {
		writeErr(w, session.ID, merr.New(merr.RequestDataError, "too many message_ids in one delete request"))
		return
	}

	type failure struct {
		MsgID string `json:"msg_id"`
		Error string `json:"error"`
	}
	var failures []failure
	for _, id := range req.MessageIDs {
		if err := s.Store.DeleteMessage(r.Context(), id, session.DIDHash); err != nil {
			failures = append(failures, failure{MsgID: id, Error: err.Error()})
		}
	}
	writeData(w, session.ID, map[string]any{"errors": failures})
}
