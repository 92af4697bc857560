// SPDX-License-Identifier: LGPL-3.0-or-later

// Package server wires every component (C1-C10) together into one
// running mediator process: it reads a config.Config, builds the
// Store/Codec/Auth/Processor/Registry stack, and runs the REST+
// streaming surface, the expiry sweeper, and the health server side by
// side until its context is canceled.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/didcomm-x/mediator/acl"
	"github.com/didcomm-x/mediator/auth"
	"github.com/didcomm-x/mediator/config"
	"github.com/didcomm-x/mediator/did"
	"github.com/didcomm-x/mediator/envelope"
	"github.com/didcomm-x/mediator/internal/logger"
	"github.com/didcomm-x/mediator/livedelivery"
	"github.com/didcomm-x/mediator/pkg/health"
	"github.com/didcomm-x/mediator/processor"
	"github.com/didcomm-x/mediator/protocols"
	"github.com/didcomm-x/mediator/secrets"
	"github.com/didcomm-x/mediator/store"
	"github.com/didcomm-x/mediator/store/memory"
	"github.com/didcomm-x/mediator/store/postgres"
	"github.com/didcomm-x/mediator/sweeper"
	transporthttp "github.com/didcomm-x/mediator/transport/http"
	"github.com/didcomm-x/mediator/transport/wsserver"
)

// MediatorSigningKid is the kid the mediator's own secret is addressed
// by in its secrets file (spec §6 "mediator DID + secrets file"); genkey
// writes under this kid by default and serve looks it up under it.
const MediatorSigningKid = "mediator-signing-key"

// Server is the fully-wired mediator process.
type Server struct {
	cfg *config.Config

	store   store.Store
	live    *livedelivery.Registry
	sweeper *sweeper.Sweeper

	rest    *transporthttp.Server
	restSrv *http.Server

	healthChecker *health.Checker
	healthSrv     *health.Server
}

// New wires every collaborator from cfg. The returned Server has not
// started listening; call Run to do that.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("server: open store: %w", err)
	}

	secretsResolver, err := secrets.LoadFile(cfg.Mediator.SecretsFile)
	if err != nil {
		return nil, fmt.Errorf("server: load secrets: %w", err)
	}

	resolver := did.NewCachingResolver(did.NewWebResolver(10*time.Second), time.Minute)
	codec := envelope.NewCodec(resolver, secretsResolver)

	aclMode, err := acl.ParseMode(cfg.ACL.Mode)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	if err := bootstrapAdmins(ctx, st, cfg); err != nil {
		return nil, fmt.Errorf("server: bootstrap: %w", err)
	}

	authEngine := auth.NewEngine(st, codec, MediatorSigningKid, aclMode)

	deps := &protocols.Deps{
		Store:       st,
		Codec:       codec,
		ACLMode:     aclMode,
		MediatorKid: MediatorSigningKid,
	}
	registry := protocols.NewRegistry()

	live := livedelivery.New()
	proc := processor.New(codec, st, registry, live, deps)

	sw := sweeper.New(st)
	if cfg.Sweeper.Interval > 0 {
		sw.Interval = cfg.Sweeper.Interval
	}

	ws := wsserver.New(proc, live)

	rest := &transporthttp.Server{
		Store:               st,
		Codec:               codec,
		Auth:                authEngine,
		Processor:           proc,
		Live:                live,
		Resolver:            resolver,
		MediatorDID:         did.AgentDID(cfg.Mediator.DID),
		WS:                  ws,
		ListedMessagesLimit: cfg.Limits.ListedMessages,
		DeletedMessagesMax:  cfg.Limits.DeletedMessages,
		OOBInviteTTL:        cfg.Limits.OOBInviteTTL,
	}

	restSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           rest.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// WriteTimeout is intentionally unset: the live-delivery
		// websocket holds its response open for the life of the
		// connection.
		IdleTimeout: 120 * time.Second,
	}

	checker := health.NewHealthChecker(5 * time.Second)
	checker.RegisterCheck("store", health.StoreHealthCheck(st.Ping))
	checker.RegisterCheck("resources", health.ResourceHealthCheck)
	if cfg.Sweeper.Enabled {
		checker.RegisterCheck("sweeper", func(context.Context) error {
			return sw.Healthy(5 * sw.Interval)
		})
	}
	checker.SetCacheTTL(2 * time.Second)

	healthPort := metricsPort(cfg)
	healthSrv := health.NewServer(checker, healthPort)

	return &Server{
		cfg:           cfg,
		store:         st,
		live:          live,
		sweeper:       sw,
		rest:          rest,
		restSrv:       restSrv,
		healthChecker: checker,
		healthSrv:     healthSrv,
	}, nil
}

// Run blocks, serving the REST+streaming surface, the expiry sweeper,
// and the health endpoint until ctx is canceled, then shuts each down.
func (s *Server) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("mediator listening", logger.String("addr", s.cfg.ListenAddr))
		if err := s.restSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("rest server: %w", err)
		}
		return nil
	})

	if s.cfg.Sweeper.Enabled {
		group.Go(func() error {
			if err := s.sweeper.Run(gctx); err != nil && err != context.Canceled {
				return fmt.Errorf("sweeper: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		return s.healthSrv.Start()
	})

	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.restSrv.Shutdown(shutdownCtx); err != nil {
			logger.ErrorMsg("rest server shutdown", logger.Error(err))
		}
		if err := s.healthSrv.Stop(shutdownCtx); err != nil {
			logger.ErrorMsg("health server shutdown", logger.Error(err))
		}
		if err := s.store.Close(); err != nil {
			logger.ErrorMsg("store close", logger.Error(err))
		}
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return memory.New(), nil
	case "postgres":
		return postgres.NewStoreFromDSN(ctx, cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// bootstrapAdmins ensures the mediator's own DID and the configured
// admin DIDs exist with their designated roles (spec §4.3 "Admin setup
// on boot"). The first configured admin becomes root admin; the rest
// are granted ordinary admin rights. With no admins configured, the
// mediator administers itself.
func bootstrapAdmins(ctx context.Context, st store.Store, cfg *config.Config) error {
	defaultSet, err := acl.Parse(cfg.ACL.DefaultSet)
	if err != nil {
		return fmt.Errorf("acl default set: %w", err)
	}

	mediatorHash := did.Hash(did.AgentDID(cfg.Mediator.DID))
	rootAdminDID := cfg.Mediator.DID
	if len(cfg.Admins) > 0 {
		rootAdminDID = cfg.Admins[0]
	}
	rootAdminHash := did.Hash(did.AgentDID(rootAdminDID))

	if err := st.Bootstrap(ctx, mediatorHash, rootAdminHash, store.ACLEntry{Set: defaultSet}); err != nil {
		return err
	}

	for i, adminDID := range cfg.Admins {
		if i == 0 {
			continue
		}
		hash := did.Hash(did.AgentDID(adminDID))
		if _, ok, err := st.IsAdmin(ctx, hash); err != nil {
			return err
		} else if ok {
			continue
		}
		if err := st.AddAdmin(ctx, &store.AdminAccount{DIDHash: hash, Role: store.AdminRoleAdmin, AddedAt: time.Now()}); err != nil {
			return err
		}
	}
	return nil
}

// metricsPort extracts the port health/metrics listens on from
// config.Metrics.Addr (":9090"-style), defaulting to 9090 when unset
// or unparseable.
func metricsPort(cfg *config.Config) int {
	const fallback = 9090
	addr := cfg.Metrics.Addr
	if addr == "" {
		return fallback
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// bare ":9090" form has no host; SplitHostPort still handles
		// it, so this only triggers on a genuinely malformed value.
		return fallback
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fallback
	}
	return port
}
