// Server runs the Sync Gateway: the gRPC face of the outbox and mapping tables that workers poll.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpchealth "google.golang.org/grpc/health"

	"guild-sync/backend/internal/config"
	"guild-sync/backend/internal/db"
	"guild-sync/backend/internal/gateway"
	"guild-sync/backend/internal/health"
	healthhandler "guild-sync/backend/internal/health/handler"
	mappingdomain "guild-sync/backend/internal/mapping/domain"
	mappingrepo "guild-sync/backend/internal/mapping/repository"
	outboxrepo "guild-sync/backend/internal/outbox/repository"
	"guild-sync/backend/internal/security"
	"guild-sync/backend/internal/server"
	"guild-sync/backend/internal/server/interceptors"
	"guild-sync/backend/internal/syncevent/domain"
	telemetryotel "guild-sync/backend/internal/telemetry/otel"
)

const healthInterval = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireGateway(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Settings{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		ServiceName: cfg.ServiceNameOr("guild-sync-gateway"),
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	outbox := outboxrepo.NewPostgresRepository(database, cfg.SyncMaxAttempts)
	lease := cfg.ClaimLease()
	deps := server.Deps{
		Role:    gateway.NewLocal[mappingdomain.RoleMapping](domain.DomainRole, outbox, mappingrepo.NewRolePostgresRepository(database), lease),
		Channel: gateway.NewLocal[mappingdomain.ChannelMapping](domain.DomainChannel, outbox, mappingrepo.NewChannelPostgresRepository(database), lease),
		Health:  grpchealth.NewServer(),
	}

	var verifier interceptors.ServiceVerifier
	if cfg.GatewayTokenPublicKey != "" {
		pub, err := security.ParsePublicKey(cfg.GatewayTokenPublicKey)
		if err != nil {
			log.Fatalf("gateway token public key: %v", err)
		}
		verifier = security.NewTokenProvider(nil, pub, cfg.GatewayTokenIssuer, cfg.GatewayTokenAudience, cfg.TokenTTL())
	} else {
		log.Println("gateway: GATEWAY_TOKEN_PUBLIC_KEY not set; service authentication disabled")
	}

	checker := health.NewChecker()
	checker.Add("database", health.PingCheck(database))
	go healthhandler.Sync(ctx, checker, deps.Health, healthInterval, server.ServiceNames()...)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	s := server.NewServer(verifier)
	server.RegisterServices(s, deps)

	go func() {
		log.Printf("gateway: gRPC server listening on %s (claim lease %s, max attempts %d)", cfg.GRPCAddr, lease, cfg.SyncMaxAttempts)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("gateway: shutting down gRPC server...")
	stop()
	s.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("gateway: gRPC server stopped")
}
