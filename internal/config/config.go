package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"arbitrage-engine/pkg/crypto"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server    ServerConfig
	Security  SecurityConfig
	Bot       BotConfig
	Logging   LoggingConfig
	Venues    VenuesConfig
	Strategy  StrategyConfig
	RedisURL  string
}

// VenueCredentials is a single venue's API-key triple, spec §6's
// "<VENUE>_API_KEY/_API_SECRET/_PASSPHRASE" env var group. Passphrase is
// empty for venues that don't use one (e.g. Binance, Bybit, Hyperliquid).
type VenueCredentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// VenuesConfig holds one credential triple per supported venue, keyed by
// lowercase venue name ("binance", "okx", "bybit", "bitget", "kucoin",
// "hyperliquid", "paradex", "gateio").
type VenuesConfig struct {
	Credentials map[string]VenueCredentials
}

// StrategyConfig is spec §6's strategy-level knobs: single-exchange
// synthetic mode for backtesting against one venue's own book, and the
// live trading gates (concurrency cap, symbol universe).
type StrategyConfig struct {
	SingleExchangeMode     bool
	PrimaryExchange        string
	SyntheticSpreadBps     float64
	SyntheticFundingDelta  float64
	EstimatedPositionSize  float64
	MaxConcurrentTrades    int
	SymbolsToTrade         []string
	StartingCapital        float64
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	EncryptionKey string
}

// BotConfig - настройки бота
type BotConfig struct {
	// WebSocket настройки (event-driven, без polling)
	WSReconnectDelay  time.Duration // задержка перед переподключением WS
	WSPingInterval    time.Duration // интервал ping для поддержания соединения
	WSReadTimeout     time.Duration // таймаут чтения WS сообщений

	// Периодические задачи (не влияют на торговлю)
	BalanceUpdateFreq time.Duration // обновление балансов для UI
	StatsUpdateFreq   time.Duration // обновление статистики для UI

	// Retry логика для критических операций
	MaxRetries      int
	RetryBackoff    time.Duration
	OrderTimeout    time.Duration // таймаут ожидания исполнения ордера

	// Торговые параметры
	MaxConcurrentArbs int // максимум одновременных арбитражей (0 = без лимита)
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	encryptionKey := getEnv("ENCRYPTION_KEY", "")
	if encryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required for decrypting venue API credentials")
	}
	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Security: SecurityConfig{
			EncryptionKey: encryptionKey,
		},
		Bot: BotConfig{
			// WebSocket - event-driven, без polling!
			WSReconnectDelay:  getEnvAsDuration("WS_RECONNECT_DELAY", 1*time.Second),
			WSPingInterval:    getEnvAsDuration("WS_PING_INTERVAL", 15*time.Second),
			WSReadTimeout:     getEnvAsDuration("WS_READ_TIMEOUT", 30*time.Second),

			// Периодические задачи для UI (не критичны для торговли)
			BalanceUpdateFreq: getEnvAsDuration("BALANCE_UPDATE_FREQ", 1*time.Minute),
			StatsUpdateFreq:   getEnvAsDuration("STATS_UPDATE_FREQ", 5*time.Second),

			// Retry для ордеров
			MaxRetries:   getEnvAsInt("MAX_RETRIES", 4),
			RetryBackoff: getEnvAsDuration("RETRY_BACKOFF", 500*time.Millisecond),
			OrderTimeout: getEnvAsDuration("ORDER_TIMEOUT", 5*time.Second),

			// Торговые лимиты
			MaxConcurrentArbs: getEnvAsInt("MAX_CONCURRENT_ARBS", 0), // 0 = без лимита
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RedisURL: getEnv("REDIS_URL", "redis://127.0.0.1:6379"),
		Venues: VenuesConfig{
			Credentials: loadVenueCredentials(encryptionKey),
		},
		Strategy: StrategyConfig{
			SingleExchangeMode:    getEnvAsBool("SINGLE_EXCHANGE_MODE", false),
			PrimaryExchange:       getEnv("PRIMARY_EXCHANGE", "binance"),
			SyntheticSpreadBps:    getEnvAsFloat("SYNTHETIC_SPREAD_BPS", 15.0),
			SyntheticFundingDelta: getEnvAsFloat("SYNTHETIC_FUNDING_DELTA", 0.0001),
			EstimatedPositionSize: getEnvAsFloat("ESTIMATED_POSITION_SIZE", 1000.0),
			MaxConcurrentTrades:   getEnvAsInt("MAX_CONCURRENT_TRADES", 10),
			SymbolsToTrade:        getEnvAsCSV("SYMBOLS_TO_TRADE", []string{"BTCUSDT", "ETHUSDT"}),
			StartingCapital:       getEnvAsFloat("STARTING_CAPITAL", 10000.0),
		},
	}

	return cfg, nil
}

// supportedVenues lists the venue names loadVenueCredentials looks for
// "<VENUE>_API_KEY/_API_SECRET/_PASSPHRASE" triples under, matching
// internal/venues' fee table. It is not the same set as internal/exchange's
// connectors (exchange.SupportedExchanges).
var supportedVenues = []string{
	"binance", "okx", "bybit", "bitget", "kucoin", "hyperliquid", "paradex", "gateio",
}

// encryptedPrefix marks an env var value as AES-256-GCM ciphertext
// (base64, produced by pkg/crypto.EncryptWithKeyString) rather than a
// plaintext secret — lets operators store venue credentials at rest
// (e.g. in a secrets manager synced to the process environment) without
// the plaintext ever touching disk or a shell history.
const encryptedPrefix = "enc:"

func loadVenueCredentials(encryptionKey string) map[string]VenueCredentials {
	creds := make(map[string]VenueCredentials, len(supportedVenues))
	for _, venue := range supportedVenues {
		prefix := strings.ToUpper(venue)
		apiKey := decryptIfWrapped(getEnv(prefix+"_API_KEY", ""), encryptionKey)
		apiSecret := decryptIfWrapped(getEnv(prefix+"_API_SECRET", ""), encryptionKey)
		passphrase := decryptIfWrapped(getEnv(prefix+"_PASSPHRASE", ""), encryptionKey)
		if apiKey == "" && apiSecret == "" && passphrase == "" {
			continue
		}
		creds[venue] = VenueCredentials{
			APIKey:     apiKey,
			APISecret:  apiSecret,
			Passphrase: passphrase,
		}
	}
	return creds
}

// decryptIfWrapped decrypts value with encryptionKey when it carries
// encryptedPrefix, otherwise returns it unchanged. A ciphertext that
// fails to decrypt (wrong key, corrupted value) is dropped rather than
// passed through as the literal "enc:..." string, which would otherwise
// be sent to a venue as a bogus credential.
func decryptIfWrapped(value, encryptionKey string) string {
	if !strings.HasPrefix(value, encryptedPrefix) {
		return value
	}
	plaintext, err := crypto.DecryptWithKeyString(strings.TrimPrefix(value, encryptedPrefix), encryptionKey)
	if err != nil {
		return ""
	}
	return plaintext
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsCSV(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
