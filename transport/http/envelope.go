// SPDX-License-Identifier: LGPL-3.0-or-later

// Package http implements the REST + streaming surface (component C8,
// spec §4.7): packed-message ingress/egress, session authentication,
// OOB discovery, and the well-known/whoami diagnostic routes.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/didcomm-x/mediator/internal/merr"
)

// envelope is the uniform response shape spec §9 requires: HTTP status
// always mirrors httpCode, and errorCode is 0 on success.
type envelope struct {
	SessionID    string      `json:"sessionId,omitempty"`
	HTTPCode     int         `json:"httpCode"`
	ErrorCode    int         `json:"errorCode"`
	ErrorCodeStr string      `json:"errorCodeStr,omitempty"`
	Message      string      `json:"message,omitempty"`
	Data         interface{} `json:"data,omitempty"`
}

// errorCodes assigns each merr.Kind a stable small integer, since the
// response envelope's errorCode is numeric while merr.Kind is a string
// enum designed for Go-side errors.Is/As matching.
var errorCodes = map[merr.Kind]int{
	merr.Malformed:           1,
	merr.InvalidState:        2,
	merr.NoCompatibleCrypto:  3,
	merr.Unsupported:         4,
	merr.DIDNotResolved:      5,
	merr.DIDUrlNotFound:      6,
	merr.ACLDenied:           7,
	merr.PermissionError:     8,
	merr.MessageExpired:      9,
	merr.RequestDataError:    10,
	merr.DatabaseError:       11,
	merr.ConfigError:         12,
	merr.AuthenticationError: 13,
}

func writeData(w http.ResponseWriter, sessionID string, data interface{}) {
	writeEnvelope(w, envelope{SessionID: sessionID, HTTPCode: http.StatusOK, Data: data})
}

func writeOK(w http.ResponseWriter, sessionID string) {
	writeEnvelope(w, envelope{SessionID: sessionID, HTTPCode: http.StatusOK})
}

func writeErr(w http.ResponseWriter, sessionID string, err error) {
	kind := merr.As(err)
	writeEnvelope(w, envelope{
		SessionID:    sessionID,
		HTTPCode:     kind.HTTPStatus(),
		ErrorCode:    errorCodes[kind],
		ErrorCodeStr: string(kind),
		Message:      err.Error(),
	})
}

func writeEnvelope(w http.ResponseWriter, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.HTTPCode)
	_ = json.NewEncoder(w).Encode(env)
}
