// SPDX-License-Identifier: LGPL-3.0-or-later

// Package wsserver implements the bidirectional streaming half of
// component C8 (spec §4.7 "GET /ws", §4.9 live delivery): a session
// that opens a socket with live_delivery enabled gets newly stored
// messages pushed to it as they arrive, instead of having to poll
// fetch/messages-received.
package wsserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/didcomm-x/mediator/internal/logger"
	"github.com/didcomm-x/mediator/livedelivery"
	"github.com/didcomm-x/mediator/processor"
	"github.com/didcomm-x/mediator/store"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 30 * time.Second
	// streamBuffer bounds how many pending pushes a slow consumer can
	// accumulate before livedelivery.Registry starts dropping them.
	streamBuffer = 32
)

// pushFrame is what a live push looks like on the wire.
type pushFrame struct {
	MsgID string `json:"msg_id"`
	Blob  string `json:"blob"`
}

// errorFrame reports a processing failure for one inbound frame without
// tearing down the connection.
type errorFrame struct {
	Error string `json:"error"`
}

// Server upgrades GET /ws into a socket that both accepts packed
// DIDComm messages (fed through the same Processor as POST /inbound)
// and, when the session opted into live delivery, streams freshly
// stored messages back down.
type Server struct {
	Processor *processor.Processor
	Live      *livedelivery.Registry
	upgrader  websocket.Upgrader
}

// New builds a Server from its collaborators.
func New(p *processor.Processor, live *livedelivery.Registry) *Server {
	return &Server{
		Processor: p,
		Live:      live,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request and runs the connection's read/write
// loops until the client disconnects. session is the already-verified
// bearer-token session (C8's requireAuth middleware resolves it before
// the upgrade).
func (s *Server) Handle(w http.ResponseWriter, r *http.Request, session *store.Session) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.ErrorMsg("websocket upgrade failed", logger.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	var stream *livedelivery.Stream
	if session.LiveDelivery {
		stream = s.Live.Register(session.DIDHash, streamBuffer)
		defer s.Live.Unregister(stream)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if stream != nil {
		go s.writeLoop(ctx, conn, stream)
	}
	s.readLoop(ctx, conn, session)
}

// readLoop decodes each inbound frame as a packed DIDComm message and
// runs it through the same pipeline POST /inbound uses; an ephemeral
// reply (e.g. trust-ping's pong) is written straight back.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, session *store.Session) {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		ephemeral, _, err := s.Processor.Process(ctx, raw, session)
		if err != nil {
			s.writeJSON(conn, errorFrame{Error: err.Error()})
			continue
		}
		if ephemeral != nil {
			s.writeRaw(conn, ephemeral)
		}
	}
}

// writeLoop fans out live-delivery pushes until the stream is evicted
// or the connection's context is cancelled.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, stream *livedelivery.Stream) {
	for {
		select {
		case <-ctx.Done():
			return
		case push, ok := <-stream.Chan():
			if !ok {
				return
			}
			s.writeJSON(conn, pushFrame{MsgID: push.MsgID, Blob: string(push.Blob)})
		}
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, v interface{}) {
	blob, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.writeRaw(conn, blob)
}

func (s *Server) writeRaw(conn *websocket.Conn, blob []byte) {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, blob); err != nil {
		logger.ErrorMsg("websocket write failed", logger.Error(err))
	}
}
