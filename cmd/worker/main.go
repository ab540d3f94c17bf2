// Worker runs the role and channel dispatch loops: it polls the Sync Gateway for pending events,
// applies them to the Discord guild and acknowledges each one. Serves /healthz and /readyz on WORKER_HTTP_ADDR.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	channelsync "guild-sync/backend/internal/channelsync/service"
	"guild-sync/backend/internal/config"
	"guild-sync/backend/internal/discord"
	"guild-sync/backend/internal/dispatch"
	"guild-sync/backend/internal/gateway"
	gatewayclient "guild-sync/backend/internal/gateway/client"
	"guild-sync/backend/internal/health"
	healthhandler "guild-sync/backend/internal/health/handler"
	mappingdomain "guild-sync/backend/internal/mapping/domain"
	"guild-sync/backend/internal/retry"
	rolesync "guild-sync/backend/internal/rolesync/service"
	"guild-sync/backend/internal/security"
	"guild-sync/backend/internal/syncevent/domain"
	"guild-sync/backend/internal/telemetry"
	telemetryotel "guild-sync/backend/internal/telemetry/otel"
	"guild-sync/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireWorker(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Settings{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		ServiceName: cfg.ServiceNameOr("guild-sync-worker"),
		InstanceID:  cfg.WorkerID,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	metrics, err := telemetryotel.NewSyncMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatalf("otel metrics: %v", err)
	}
	emitter := telemetry.Multi{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	outcomes, err := producer.New(cfg.KafkaBrokersList(), cfg.SyncKafkaTopic, cfg.LokiURL)
	if err != nil {
		log.Fatalf("outcome producer: %v", err)
	}
	if outcomes != nil {
		defer outcomes.Close()
		emitter = append(emitter, outcomes)
	}

	conn, err := dialGateway(cfg)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}
	defer conn.Close()

	guild := discord.NewRetrying(discord.NewRESTClient(cfg.DiscordBotToken, cfg.DiscordAPIBaseURL), retry.Default()).
		WithObserver(metrics.ExternalAttempt)

	roleGW := gatewayclient.New[mappingdomain.RoleMapping](conn, gateway.NamespaceRole)
	channelGW := gatewayclient.New[mappingdomain.ChannelMapping](conn, gateway.NamespaceChannel)

	opts := []dispatch.Option{
		dispatch.WithInterval(cfg.PollInterval()),
		dispatch.WithBatchSize(cfg.SyncBatchSize),
		dispatch.WithMetrics(metrics),
		dispatch.WithEmitter(emitter),
		dispatch.WithWorkerID(cfg.WorkerID),
	}
	roles := dispatch.New(domain.DomainRole, roleGW, rolesync.NewService(roleGW, guild), opts...)
	channels := dispatch.New(domain.DomainChannel, channelGW, channelsync.NewService(channelGW, guild), opts...)

	checker := health.NewChecker()
	checker.Add("gateway", gatewayCheck(conn))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return roles.Run(gctx) })
	g.Go(func() error { return channels.Run(gctx) })
	if cfg.WorkerHTTPAddr != "" {
		srv := &http.Server{Addr: cfg.WorkerHTTPAddr, Handler: healthhandler.Router(checker), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Printf("worker: ops HTTP listening on %s", cfg.WorkerHTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Printf("worker: %s polling %s every %s (batch %d)", cfg.WorkerID, cfg.GatewayAddr, cfg.PollInterval(), cfg.SyncBatchSize)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("worker: %v", err)
	}

	log.Println("worker: dispatch loops stopped; draining outcomes")
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("worker: stopped")
}

// dialGateway connects to the Sync Gateway with otelgrpc tracing and, when a private key is configured,
// a service token on every call.
func dialGateway(cfg *config.Config) (*grpc.ClientConn, error) {
	transport := insecure.NewCredentials()
	if cfg.GatewayTLS {
		transport = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(transport),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	if cfg.GatewayTokenPrivateKey != "" {
		signer, err := security.ParsePrivateKey(cfg.GatewayTokenPrivateKey)
		if err != nil {
			return nil, err
		}
		provider := security.NewTokenProvider(signer, signer.Public(), cfg.GatewayTokenIssuer, cfg.GatewayTokenAudience, cfg.TokenTTL())
		opts = append(opts, grpc.WithPerRPCCredentials(security.NewServiceCredentials(provider, cfg.WorkerID, cfg.GatewayTLS)))
	} else {
		log.Println("worker: GATEWAY_TOKEN_PRIVATE_KEY not set; calling the gateway without a service token")
	}
	return grpc.NewClient(cfg.GatewayAddr, opts...)
}

func gatewayCheck(conn *grpc.ClientConn) health.Check {
	client := healthpb.NewHealthClient(conn)
	return func(ctx context.Context) error {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			return err
		}
		if resp.Status != healthpb.HealthCheckResponse_SERVING {
			return errors.New("gateway status " + resp.Status.String())
		}
		return nil
	}
}
