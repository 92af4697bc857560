// SPDX-License-Identifier: LGPL-3.0-or-later

package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/cors"

	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/store"
)

type ctxKey int

const sessionCtxKey ctxKey = iota

func withSession(ctx context.Context, s *store.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, s)
}

func sessionFrom(ctx context.Context) *store.Session {
	s, _ := ctx.Value(sessionCtxKey).(*store.Session)
	return s
}

// corsMiddleware wraps the mux in browser-reachable CORS headers, since
// the mediator is meant to be called directly from DIDComm clients
// running in a browser (spec §4.7).
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(next)
}

// requireAuth resolves the bearer access token to a session and injects
// it into the request context; every route but authentication, the
// well-known DID document and GET /oob requires one.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok || token == "" {
			writeErr(w, "", merr.New(merr.AuthenticationError, "missing bearer token"))
			return
		}
		_, session, err := s.Auth.VerifyAccessToken(r.Context(), token)
		if err != nil {
			writeErr(w, "", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session)))
	}
}
