package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers: список через запятую. Пустое значение отключает Kafka:
	// события доставляются в сервис уведомлений напрямую.
	KafkaBrokers       string
	KafkaTopic         string
	KafkaConsumerGroup string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxPending   int
	OutboxMaxAge       time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	AttachmentBaseURL string
	AttachmentTimeout time.Duration

	OTLPEndpoint string
	OTLPInsecure bool

	OrderNumberAttempts int

	BootstrapAdminID       string
	BootstrapAdminUsername string
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		KafkaTopic:                  kafka.TopicOrderEvents,
		KafkaConsumerGroup:          "storefront-notifications",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           10,
		OutboxRetryDelay:            500 * time.Millisecond,
		OutboxMaxPending:            1000,
		OutboxMaxAge:                5 * time.Minute,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
		AttachmentTimeout:           10 * time.Second,
		OTLPInsecure:                true,
		OrderNumberAttempts:         5,
		BootstrapAdminUsername:      "admin",
	}
}

// LoadConfigFromEnv накладывает переменные STOREFRONT_* на DefaultConfig.
// Некорректные значения игнорируются с предупреждением.
func LoadConfigFromEnv(logger *log.Entry) Config {
	if logger == nil {
		logger = log.WithField("component", "config")
	}
	env := envReader{lookup: os.LookupEnv, logger: logger}
	cfg := DefaultConfig()

	env.str("STOREFRONT_GRPC_ADDR", &cfg.GRPCAddr)
	env.str("STOREFRONT_METRICS_ADDR", &cfg.MetricsAddr)

	var driver string
	if env.str("STOREFRONT_STORAGE_DRIVER", &driver) {
		cfg.StorageDriver = StorageDriver(strings.ToLower(driver))
	}
	env.str("STOREFRONT_POSTGRES_DSN", &cfg.PostgresDSN)
	env.boolean("STOREFRONT_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)

	env.str("STOREFRONT_KAFKA_BROKERS", &cfg.KafkaBrokers)
	env.str("STOREFRONT_KAFKA_TOPIC", &cfg.KafkaTopic)
	env.str("STOREFRONT_KAFKA_CONSUMER_GROUP", &cfg.KafkaConsumerGroup)

	env.duration("STOREFRONT_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	env.positiveInt("STOREFRONT_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	env.positiveInt("STOREFRONT_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	env.duration("STOREFRONT_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)
	env.positiveInt("STOREFRONT_OUTBOX_MAX_PENDING", &cfg.OutboxMaxPending)
	env.duration("STOREFRONT_OUTBOX_MAX_AGE", &cfg.OutboxMaxAge)

	env.duration("STOREFRONT_IDEMPOTENCY_TTL", &cfg.IdempotencyTTL)
	env.duration("STOREFRONT_IDEMPOTENCY_CLEANUP_INTERVAL", &cfg.IdempotencyCleanupInterval)
	env.positiveInt("STOREFRONT_IDEMPOTENCY_CLEANUP_BATCH_SIZE", &cfg.IdempotencyCleanupBatchSize)

	env.str("STOREFRONT_ATTACHMENT_BASE_URL", &cfg.AttachmentBaseURL)
	env.duration("STOREFRONT_ATTACHMENT_TIMEOUT", &cfg.AttachmentTimeout)

	env.str("STOREFRONT_OTLP_ENDPOINT", &cfg.OTLPEndpoint)
	env.boolean("STOREFRONT_OTLP_INSECURE", &cfg.OTLPInsecure)

	env.positiveInt("STOREFRONT_ORDER_NUMBER_ATTEMPTS", &cfg.OrderNumberAttempts)

	env.str("STOREFRONT_BOOTSTRAP_ADMIN_ID", &cfg.BootstrapAdminID)
	env.str("STOREFRONT_BOOTSTRAP_ADMIN_USERNAME", &cfg.BootstrapAdminUsername)

	return cfg
}

type envReader struct {
	lookup func(string) (string, bool)
	logger *log.Entry
}

func (e envReader) value(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e envReader) invalid(key, value string, err error) {
	e.logger.WithError(err).WithFields(log.Fields{
		"key":   key,
		"value": value,
	}).Warn("invalid config value, using default")
}

func (e envReader) str(key string, dst *string) bool {
	v, ok := e.value(key)
	if ok {
		*dst = v
	}
	return ok
}

func (e envReader) boolean(key string, dst *bool) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		e.invalid(key, v, err)
		return
	}
	*dst = parsed
}

func (e envReader) duration(key string, dst *time.Duration) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		if err == nil {
			err = strconv.ErrRange
		}
		e.invalid(key, v, err)
		return
	}
	*dst = parsed
}

func (e envReader) positiveInt(key string, dst *int) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		if err == nil {
			err = strconv.ErrRange
		}
		e.invalid(key, v, err)
		return
	}
	*dst = parsed
}
