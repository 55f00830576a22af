package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	schema "github.com/centralbank/fabric-asset-api/backend/migrations"
	"github.com/centralbank/fabric-asset-api/backend/pkg/common"
	"github.com/centralbank/fabric-asset-api/backend/pkg/common/db"
	"github.com/centralbank/fabric-asset-api/backend/pkg/common/migrations"
	"github.com/centralbank/fabric-asset-api/backend/pkg/fabricclient"
	"github.com/centralbank/fabric-asset-api/backend/pkg/journal"
	"github.com/centralbank/fabric-asset-api/backend/pkg/resources"
	"github.com/centralbank/fabric-asset-api/backend/pkg/wallet"
	"github.com/hyperledger/fabric-lib-go/common/flogging"
	"github.com/hyperledger/fabric-lib-go/healthz"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var logger = flogging.MustGetLogger("asset-service")

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:          "asset-service",
		Short:        "REST access to the asset contract on a Fabric channel",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := common.LoadConfig(v, configFile)
			if err != nil {
				return err
			}
			flogging.Init(flogging.Config{LogSpec: cfg.LogSpec, Writer: os.Stderr})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "YAML config file (default $"+common.ConfigFileEnv+")")
	cmd.Flags().String("port", "", "HTTP listen port (overrides PORT)")
	v.BindPFlag("PORT", cmd.Flags().Lookup("port"))
	return cmd
}

func run(ctx context.Context, cfg *common.Config) error {
	res := resources.NewLoader(cfg.ResourceRoot)
	wallets := wallet.NewResolver(cfg.Fabric.WalletProfile, res)

	var registry *prometheus.Registry
	var reg prometheus.Registerer
	if cfg.Metrics {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reg = registry
	}

	manager := fabricclient.NewManager(
		fabricclient.Settings{
			ConnectionProfile: cfg.Fabric.ConnectionProfile,
			Channel:           cfg.Fabric.Channel,
			ContractID:        cfg.Fabric.ContractID,
		},
		wallets,
		res,
		&fabricclient.SDKConnector{Timeout: cfg.Fabric.Timeout},
		fabricclient.NewMetrics(reg),
	)
	defer manager.Close()

	health := healthz.NewHealthHandler()
	if err := health.RegisterChecker("wallet", wallets); err != nil {
		return errors.Wrap(err, "failed to register wallet health check")
	}

	var recorder journal.Recorder = journal.Nop{}
	if cfg.Journal.Enabled {
		database, err := openJournal(ctx, cfg.Journal.DB)
		if err != nil {
			return err
		}
		defer database.Close()

		recorder = journal.NewPostgres(database)
		if err := health.RegisterChecker("journal", dbChecker{database}); err != nil {
			return errors.Wrap(err, "failed to register journal health check")
		}
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: NewRouter(NewService(manager, recorder), RouterOptions{
			AuthSecret: []byte(cfg.Auth.JWTSecret),
			Health:     health,
			Registry:   registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Asset Service running on :%s (channel %s, contract %s)", cfg.Port, cfg.Fabric.Channel, cfg.Fabric.ContractID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server failed")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openJournal(ctx context.Context, cfg common.DBConfig) (*sql.DB, error) {
	database, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := migrations.RunMigrations(database, schema.Journal, schema.JournalDir); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

type dbChecker struct {
	db *sql.DB
}

func (c dbChecker) HealthCheck(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
