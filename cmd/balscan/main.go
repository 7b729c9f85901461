package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"balscan/internal/application"
	"balscan/internal/config"
	"balscan/internal/infrastructure/addressfile"
	"balscan/internal/infrastructure/blockchaininfo"
	"balscan/internal/infrastructure/etherscan"
	"balscan/internal/infrastructure/ethrpc"
	"balscan/internal/infrastructure/httpclient"
	"balscan/internal/infrastructure/kafka"
	"balscan/internal/infrastructure/logging"
	"balscan/internal/infrastructure/mysql"
	"balscan/internal/infrastructure/resultcache"
	"balscan/internal/infrastructure/resultfile"
	"balscan/internal/infrastructure/sqlite"
	"balscan/internal/infrastructure/telemetry"
	"balscan/internal/interfaces/httpapi"
	"balscan/internal/ratelimit"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

type ethProvider interface {
	application.BalanceProvider
	httpapi.BalanceLookup
}

type ledgerStore interface {
	application.CycleRepository
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger, logFile, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		slog.Error("logger init error", "err", err)
		logger = slog.Default()
	}
	if logFile != nil {
		defer logFile.Close()
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "balscan",
		ServiceVersion: version,
		Endpoint:       cfg.OtelEndpoint,
	})
	if err != nil {
		logger.Warn("tracing init error", "err", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown error", "err", err)
		}
	}()

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("balscan stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	metrics := httpapi.NewMetrics()
	httpClient := httpclient.New(cfg.HTTPTimeout)
	userAgent := "balscan/" + version

	var fetchers []application.Fetcher
	ethClient, err := newETHProvider(cfg, httpClient, userAgent, logger)
	if err != nil {
		return err
	}
	if ethClient == nil {
		logger.Warn("ETHERSCAN_API_KEY not set, ETH addresses will be skipped")
	} else {
		fetcher, err := newFetcher(ethClient, cfg.ETHRateLimit, cfg.ETHMaxPackSize, metrics, logger)
		if err != nil {
			return err
		}
		fetchers = append(fetchers, fetcher)
	}

	btcClient, err := blockchaininfo.NewClient(blockchaininfo.Config{
		BaseURL:    cfg.BTCAPIURL,
		Shape:      blockchaininfo.Shape(cfg.BTCResponseShape),
		UserAgent:  userAgent,
		HTTPClient: httpClient,
	})
	if err != nil {
		return fmt.Errorf("blockchain.info client: %w", err)
	}
	btcFetcher, err := newFetcher(btcClient, cfg.BTCRateLimit, cfg.BTCMaxPackSize, metrics, logger)
	if err != nil {
		return err
	}
	fetchers = append(fetchers, btcFetcher)

	scanner, err := application.NewScanner(cfg.MaxWorkers, fetchers...)
	if err != nil {
		return err
	}

	source, err := addressfile.NewSource(cfg.InputFile)
	if err != nil {
		return err
	}
	sink, err := resultfile.NewSink(cfg.OutputFile)
	if err != nil {
		return err
	}
	mode, err := application.ParseRunMode(cfg.RunMode)
	if err != nil {
		return err
	}

	opts := []application.DriverOption{
		application.WithLogger(logger),
		application.WithCycleObserver(metrics),
	}

	ledger, err := openLedger(cfg)
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if ledger != nil {
		defer ledger.Close()
		opts = append(opts, application.WithLedger(ledger))
	}

	var mirror *resultcache.Sink
	if cfg.RedisAddr != "" {
		sink, err := resultcache.NewSink(resultcache.Config{Addr: cfg.RedisAddr, Key: cfg.RedisKey})
		if err != nil {
			logger.Warn("redis result mirror disabled", "err", err)
		} else {
			mirror = sink
			defer mirror.Close()
			opts = append(opts, application.WithMirror(mirror))
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()
		tracker, err := application.NewHitTracker(cfg.HitCacheSize)
		if err != nil {
			return err
		}
		opts = append(opts, application.WithHitPublisher(tracker, producer))
	}

	driver, err := application.NewCycleDriver(source, scanner, sink, application.DriverConfig{
		Mode:     mode,
		Interval: cfg.CycleInterval,
	}, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.HTTPAddr != "" {
		var cycles httpapi.CycleStore
		if ledger != nil {
			cycles = ledger
		}
		var balances httpapi.BalanceLookup
		if ethClient != nil {
			balances = ethClient
		}
		server, err := httpapi.NewServer(cfg, driver, cycles, balances, metrics, httpapi.BuildInfo{
			Version:   version,
			Commit:    commit,
			BuildTime: buildTime,
		})
		if err != nil {
			return err
		}
		if mirror != nil {
			server.AddReadinessCheck("redis", mirror)
		}
		go func() {
			logger.Info("http server listening", "addr", cfg.HTTPAddr)
			if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
				logger.Error("http server error", "err", err)
			}
		}()
	}

	logger.Info("balscan started",
		"mode", string(mode),
		"input", source.Path(),
		"output", sink.Path(),
		"chains", len(fetchers),
	)
	return driver.Run(ctx)
}

func newFetcher(provider application.BalanceProvider, rate, packSize int, metrics *httpapi.Metrics, logger *slog.Logger) (*application.ServiceFetcher, error) {
	limiter, err := ratelimit.New(provider.Chain().String(), rate, ratelimit.WithObserver(metrics))
	if err != nil {
		return nil, err
	}
	return application.NewServiceFetcher(provider, limiter, packSize, metrics, logger)
}

// newETHProvider returns nil when the etherscan provider is selected without an API key.
func newETHProvider(cfg config.Config, httpClient *http.Client, userAgent string, logger *slog.Logger) (ethProvider, error) {
	if cfg.ETHProvider == "rpc" {
		client, err := ethrpc.NewClient(ethrpc.Config{URL: cfg.ETHRPCURL, UserAgent: userAgent, HTTPClient: httpClient})
		if err != nil {
			return nil, fmt.Errorf("eth rpc client: %w", err)
		}
		return client, nil
	}
	if cfg.EtherscanAPIKey == "" {
		return nil, nil
	}
	client, err := etherscan.NewClient(etherscan.Config{
		BaseURL:    cfg.ETHAPIURL,
		APIKey:     cfg.EtherscanAPIKey,
		UserAgent:  userAgent,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("etherscan client: %w", err)
	}
	return client, nil
}

func openLedger(cfg config.Config) (ledgerStore, error) {
	switch cfg.LedgerDriver {
	case "":
		return nil, nil
	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.LedgerDSN)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "mysql":
		base, err := mysql.NewRepository(cfg.LedgerDSN)
		if err != nil {
			return nil, err
		}
		cached, err := mysql.NewCachedRepository(base, mysql.CacheConfig{Addr: cfg.RedisAddr})
		if err != nil {
			slog.Warn("ledger cache disabled", "err", err)
			return base, nil
		}
		return cached, nil
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", cfg.LedgerDriver)
	}
}
