package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	EtherscanAPIKey  string
	ETHAPIURL        string
	ETHProvider      string
	ETHRPCURL        string
	BTCAPIURL        string
	ETHRateLimit     int
	BTCRateLimit     int
	ETHMaxPackSize   int
	BTCMaxPackSize   int
	BTCResponseShape string
	HTTPTimeout      time.Duration
	InputFile        string
	OutputFile       string
	RunMode          string
	CycleInterval    time.Duration
	MaxWorkers       int
	HTTPAddr         string
	LedgerDriver     string
	LedgerDSN        string
	RedisAddr        string
	RedisKey         string
	KafkaBrokers     []string
	KafkaTopic       string
	KafkaGroupID     string
	HitCacheSize     int
	OtelEndpoint     string
	LogLevel         string
	LogFormat        string
	LogFile          string
	LogMaxSizeMB     int
	LogMaxBackups    int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// Layered consults each source in order and returns the first non-empty value.
type Layered []EnvSource

func (l Layered) Lookup(key string) (string, bool) {
	for _, source := range l {
		if source == nil {
			continue
		}
		if value, ok := source.Lookup(key); ok && value != "" {
			return value, true
		}
	}
	return "", false
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	apiKey := lookupString(source, "ETHERSCAN_API_KEY", "")
	if apiKey == "" {
		apiKey = lookupString(source, "ETHER_SCAN_API_KEY", "")
	}

	ethRate, err := parseIntEnv(source, "ETH_RATE_LIMIT", 5, 1)
	if err != nil {
		return Config{}, err
	}
	btcRate, err := parseIntEnv(source, "BTC_RATE_LIMIT", 5, 1)
	if err != nil {
		return Config{}, err
	}
	ethPack, err := parseIntEnv(source, "ETH_MAX_PACK_SIZE", 20, 1)
	if err != nil {
		return Config{}, err
	}
	btcPack, err := parseIntEnv(source, "BTC_MAX_PACK_SIZE", 20, 1)
	if err != nil {
		return Config{}, err
	}
	maxWorkers, err := parseIntEnv(source, "MAX_WORKERS", 0, 0)
	if err != nil {
		return Config{}, err
	}
	hitCacheSize, err := parseIntEnv(source, "HIT_CACHE_SIZE", 10000, 1)
	if err != nil {
		return Config{}, err
	}
	logMaxSize, err := parseIntEnv(source, "LOG_MAX_SIZE_MB", 50, 1)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseIntEnv(source, "LOG_MAX_BACKUPS", 3, 0)
	if err != nil {
		return Config{}, err
	}

	httpTimeout, err := parseDurationEnv(source, "HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	if httpTimeout <= 0 {
		return Config{}, errors.New("invalid HTTP_TIMEOUT: must be positive")
	}
	cycleInterval, err := parseDurationEnv(source, "CYCLE_INTERVAL", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	if cycleInterval < 0 {
		return Config{}, errors.New("invalid CYCLE_INTERVAL: must not be negative")
	}

	runMode := strings.ToLower(lookupString(source, "RUN_MODE", "once"))
	if runMode != "once" && runMode != "continuous" {
		return Config{}, fmt.Errorf("invalid RUN_MODE %q", runMode)
	}
	shape := strings.ToLower(lookupString(source, "BTC_RESPONSE_SHAPE", "map"))
	if shape != "map" && shape != "list" {
		return Config{}, fmt.Errorf("invalid BTC_RESPONSE_SHAPE %q", shape)
	}
	ethProvider := strings.ToLower(lookupString(source, "ETH_PROVIDER", "etherscan"))
	ethRPCURL := lookupString(source, "ETH_RPC_URL", "")
	switch ethProvider {
	case "etherscan":
	case "rpc":
		if ethRPCURL == "" {
			return Config{}, errors.New("ETH_RPC_URL is required for the rpc provider")
		}
	default:
		return Config{}, fmt.Errorf("invalid ETH_PROVIDER %q", ethProvider)
	}
	ledgerDriver := strings.ToLower(lookupString(source, "LEDGER_DRIVER", ""))
	ledgerDSN := lookupString(source, "LEDGER_DSN", "")
	switch ledgerDriver {
	case "":
	case "sqlite":
		if ledgerDSN == "" {
			ledgerDSN = "balscan.db"
		}
	case "mysql":
		if ledgerDSN == "" {
			return Config{}, errors.New("LEDGER_DSN is required for the mysql ledger")
		}
	default:
		return Config{}, fmt.Errorf("invalid LEDGER_DRIVER %q", ledgerDriver)
	}

	return Config{
		EtherscanAPIKey:  apiKey,
		ETHAPIURL:        lookupString(source, "ETH_API_URL", "https://api.etherscan.io/api"),
		ETHProvider:      ethProvider,
		ETHRPCURL:        ethRPCURL,
		BTCAPIURL:        lookupString(source, "BTC_API_URL", "https://blockchain.info"),
		ETHRateLimit:     ethRate,
		BTCRateLimit:     btcRate,
		ETHMaxPackSize:   ethPack,
		BTCMaxPackSize:   btcPack,
		BTCResponseShape: shape,
		HTTPTimeout:      httpTimeout,
		InputFile:        lookupString(source, "INPUT_FILE", "addresses.txt"),
		OutputFile:       lookupString(source, "OUTPUT_FILE", "results.txt"),
		RunMode:          runMode,
		CycleInterval:    cycleInterval,
		MaxWorkers:       maxWorkers,
		HTTPAddr:         lookupString(source, "HTTP_ADDR", ""),
		LedgerDriver:     ledgerDriver,
		LedgerDSN:        ledgerDSN,
		RedisAddr:        lookupString(source, "REDIS_ADDR", ""),
		RedisKey:         lookupString(source, "REDIS_KEY", "balscan:results"),
		KafkaBrokers:     parseList(source, "KAFKA_BROKERS"),
		KafkaTopic:       lookupString(source, "KAFKA_TOPIC", "balscan-hits"),
		KafkaGroupID:     lookupString(source, "KAFKA_GROUP_ID", "balscan-hits-tail"),
		HitCacheSize:     hitCacheSize,
		OtelEndpoint:     lookupString(source, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LogLevel:         lookupString(source, "LOG_LEVEL", "warn"),
		LogFormat:        lookupString(source, "LOG_FORMAT", "text"),
		LogFile:          lookupString(source, "LOG_FILE", "logs/balscan.log"),
		LogMaxSizeMB:     logMaxSize,
		LogMaxBackups:    logMaxBackups,
	}, nil
}

func lookupString(source EnvSource, key, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func parseIntEnv(source EnvSource, key string, defaultValue, minValue int) (int, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value < minValue {
		return 0, fmt.Errorf("invalid %s: must be at least %d", key, minValue)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseList(source EnvSource, key string) []string {
	raw, ok := source.Lookup(key)
	if !ok {
		return nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		if value := strings.TrimSpace(item); value != "" {
			values = append(values, value)
		}
	}
	return values
}
