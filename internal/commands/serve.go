package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/parajoin/internal/editor"
	"github.com/nainya/parajoin/internal/metrics"
	"github.com/nainya/parajoin/internal/server"
	"github.com/nainya/parajoin/pkg/repo"
)

func addServe(topLevel *cobra.Command, ro *rootOptions) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve JoinService over gRPC with metrics, health and pprof over HTTP.",
		Example: `
parajoin serve --data-dir ./books --grpc-port 50051 --metrics-port 9090
PARAJOIN_REDIS_URL=redis://localhost:6379/0 parajoin serve
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return ro.serve(cmd)
		},
	}
	cmd.Flags().String("data-dir", "", "Directory holding the book files.")
	cmd.Flags().Int("grpc-port", 0, "gRPC listen port.")
	cmd.Flags().Int("metrics-port", 0, "Observability HTTP port.")

	topLevel.AddCommand(cmd)
}

func (ro *rootOptions) serve(cmd *cobra.Command) error {
	cfg, err := ro.loadConfig(cmd)
	if err != nil {
		return err
	}

	log := newLogger(cfg, os.Stdout)
	log.LogServerStart(cfg.GrpcPort, cfg.DataDir)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	r, err := repo.New(repo.Options{Dir: cfg.DataDir, BackupDir: cfg.BackupDir})
	if err != nil {
		return fmt.Errorf("failed to open data directory: %w", err)
	}

	locker, closeLocker, err := newLocker(cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	ed, err := editor.New(editor.Config{
		Repo:    r,
		Locker:  locker,
		Options: cfg.JoinOptions(),
		Logger:  log,
		Metrics: m,
	})
	if err != nil {
		return err
	}

	log.WithFields(map[string]interface{}{
		"separator":    cfg.JoinOptions().Separator,
		"reset_policy": cfg.JoinOptions().Reset.String(),
		"redis_leases": cfg.RedisURL != "",
	}).Info("Engine configured").Send()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GrpcPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(m, log)),
	)
	server.RegisterJoinServiceServer(grpcServer, server.NewServer(ed))

	// Register reflection service for grpcurl/grpcui
	reflection.Register(grpcServer)

	ready := func() error {
		_, err := r.List()
		return err
	}
	obs := server.NewObservabilityServer(cfg.MetricsPort, registry, ready, log)
	go func() {
		if err := obs.Start(); err != nil {
			log.Error("Observability server failed").Err(err).Send()
		}
	}()

	stop := make(chan struct{})
	m.StartUptime(stop)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		log.LogServerShutdown()
		close(stop)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := obs.Shutdown(ctx); err != nil {
			log.Warn("Observability shutdown failed").Err(err).Send()
		}
		grpcServer.GracefulStop()
	}()

	log.LogServerReady(cfg.GrpcPort)
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}
