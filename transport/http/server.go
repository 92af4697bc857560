// SPDX-License-Identifier: LGPL-3.0-or-later

package http

import (
	"net/http"
	"time"

	"github.com/didcomm-x/mediator/auth"
	"github.com/didcomm-x/mediator/did"
	"github.com/didcomm-x/mediator/envelope"
	"github.com/didcomm-x/mediator/livedelivery"
	"github.com/didcomm-x/mediator/processor"
	"github.com/didcomm-x/mediator/store"
	"github.com/didcomm-x/mediator/transport/wsserver"
)

// PathPrefix is the versioned path prefix every route is mounted under
// (spec §4.7 "e.g. /mediator/v1").
const PathPrefix = "/mediator/v1"

// Server wires every collaborator the REST + streaming surface needs.
type Server struct {
	Store       store.Store
	Codec       *envelope.Codec
	Auth        *auth.Engine
	Processor   *processor.Processor
	Live        *livedelivery.Registry
	Resolver    did.Resolver
	MediatorDID did.AgentDID
	WS          *wsserver.Server

	ListedMessagesLimit int
	DeletedMessagesMax  int
	OOBInviteTTL        time.Duration
}

// Handler builds the full routed http.Handler, CORS included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+PathPrefix+"/inbound", s.requireAuth(s.handleInbound))
	mux.HandleFunc("POST "+PathPrefix+"/outbound", s.requireAuth(s.handleOutbound))
	mux.HandleFunc("POST "+PathPrefix+"/fetch", s.requireAuth(s.handleFetch))
	mux.HandleFunc("GET "+PathPrefix+"/list/{did_hash}/{folder}", s.requireAuth(s.handleList))
	mux.HandleFunc("DELETE "+PathPrefix+"/delete", s.requireAuth(s.handleDelete))

	mux.HandleFunc("POST "+PathPrefix+"/authenticate/challenge", s.handleChallenge)
	mux.HandleFunc("POST "+PathPrefix+"/authenticate", s.handleAuthenticate)
	mux.HandleFunc("POST "+PathPrefix+"/authenticate/refresh", s.handleRefresh)

	mux.HandleFunc("POST "+PathPrefix+"/oob", s.requireAuth(s.handleOOBCreate))
	mux.HandleFunc("GET "+PathPrefix+"/oob", s.handleOOBFetch)
	mux.HandleFunc("DELETE "+PathPrefix+"/oob", s.requireAuth(s.handleOOBDelete))

	mux.HandleFunc("GET "+PathPrefix+"/ws", s.requireAuth(s.handleWebsocket))

	mux.HandleFunc("GET /.well-known/did", s.handleWellKnownDID)
	mux.HandleFunc("GET /.well-known/did.json", s.handleWellKnownDID)
	mux.HandleFunc("GET "+PathPrefix+"/whoami", s.requireAuth(s.handleWhoami))

	return s.corsMiddleware(mux)
}
