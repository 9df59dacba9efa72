package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dsall/regvault/internal/backup"
	"github.com/dsall/regvault/internal/buildinfo"
	"github.com/dsall/regvault/internal/bus"
	"github.com/dsall/regvault/internal/cli"
	"github.com/dsall/regvault/internal/common"
	"github.com/dsall/regvault/internal/config"
	"github.com/dsall/regvault/internal/fallback"
	"github.com/dsall/regvault/internal/filex"
	"github.com/dsall/regvault/internal/logging"
	"github.com/dsall/regvault/internal/metrics"
	"github.com/dsall/regvault/internal/models"
	"github.com/dsall/regvault/internal/obfusc"
	"github.com/dsall/regvault/internal/repositories/clients"
	"github.com/dsall/regvault/internal/repositories/metadata"
	"github.com/dsall/regvault/internal/repositories/payments"
	"github.com/dsall/regvault/internal/repositories/snapshots"
	"github.com/dsall/regvault/internal/schema"
	"github.com/dsall/regvault/internal/services"
	"github.com/dsall/regvault/internal/syncer"
)

// generateDeviceID builds a fresh device identifier from the hostname and
// a random suffix. Persisted through the metadata table on first run.
func generateDeviceID() (string, error) {
	suffix, err := common.MakeRandHexString(6)
	if err != nil {
		return "", err
	}
	host, _ := os.Hostname()
	if host == "" {
		host = "device"
	}
	return fmt.Sprintf("%s-%s", host, suffix), nil
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	if err := filex.EnsureDir(cfg.DataDir); err != nil {
		return err
	}

	handle, err := schema.OpenOrReset(ctx, filepath.Join(cfg.DataDir, "regvault.db"), schema.ExpectedVersion)
	if err != nil {
		return err
	}
	defer handle.Close()
	if handle.ResetOccurred {
		logger.Warn(ctx, "database was reset during recovery, local data was lost")
	}

	deviceID, err := metadata.EnsureDeviceID(ctx, metadata.NewSQLiteRepository(handle.DB), generateDeviceID)
	if err != nil {
		return err
	}

	cache, err := fallback.Open(filepath.Join(cfg.DataDir, "fallback.db"), fallback.DefaultCapacity)
	if err != nil {
		return err
	}
	defer cache.Close()

	var layer *obfusc.Layer
	if cfg.EnableObfuscation {
		secret, salt, err := obfusc.LoadOrCreateSecret(filepath.Join(cfg.DataDir, "device_secret"))
		if err != nil {
			return err
		}
		defer common.WipeByteArray(secret)
		layer = obfusc.NewLayer(obfusc.NewKeystreamCodec(secret, salt), logger)
	} else {
		layer = obfusc.NewLayer(nil, logger)
	}

	tracker := metrics.NewTracker()
	changes := bus.New()
	defer changes.Close()

	clientRepo := clients.NewSQLiteRepository(handle.DB)
	paymentRepo := payments.NewSQLiteRepository(handle.DB)
	snapshotRepo := snapshots.NewSQLiteRepository(handle.DB)

	backups := backup.NewManager(snapshotRepo, clientRepo, paymentRepo,
		tracker, logger, cfg.BackupInterval, cfg.BackupKeep)

	store := services.NewStore(handle, clientRepo, paymentRepo, cache,
		backups, layer, changes, tracker, logger, deviceID)
	backups.SetRestorer(store)

	var deliver syncer.Deliverer
	if cfg.SyncEndpoint != "" {
		deliver = syncer.NewHTTPDeliverer(cfg.SyncEndpoint, nil)
	} else {
		// Local-only mode: deliveries succeed without leaving the device
		// so records still converge to synced.
		deliver = syncer.DelivererFunc(func(ctx context.Context, _ []models.Client) error {
			return nil
		})
	}

	engine := syncer.New(store, deliver, tracker, logger, changes, syncer.Options{
		MaxRetries:        cfg.RetryCeiling,
		SweepInterval:     cfg.SweepInterval,
		StartupSweepDelay: cfg.StartupSweepDelay,
		DeliverTimeout:    cfg.DeliverTimeout,
	})
	store.SetSyncer(engine)

	if n, err := store.RecoverFromFallback(ctx); err != nil {
		logger.Warn(ctx, "fallback recovery failed", "error", err)
	} else if n > 0 {
		logger.Info(ctx, "recovered records from fallback cache", "count", n)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go engine.Run(runCtx)
	go backups.Run(runCtx)

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error(ctx, "metrics endpoint failed", "error", err)
			}
		}()
	}

	app := cli.NewApp(store, backups, changes)
	app.Run(runCtx)

	stop()
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	backups.Flush(flushCtx)
	return nil
}

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg := config.LoadConfig()
	logger := logging.NewFileLogger(cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.Fatalf("%v", err)
	}
}
