package configs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"cian-pipeline/internal/constants"
	"cian-pipeline/internal/core/filter"

	"github.com/joho/godotenv"
)

// DBconfig хранит конфигурацию для БД
type DBconfig struct {
	URL string
}

// RabbitMQConfig хранит конфигурацию для RabbitMQ
type RabbitMQConfig struct {
	URL           string
	PrefetchCount int
}

// RedisConfig хранит конфигурацию для Redis
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CollectorConfig — параметры цикла сбора кандидатов.
type CollectorConfig struct {
	CycleInterval time.Duration // пауза между циклами обхода источников
	MaxPages      int           // максимум страниц выдачи на источник
	RandomDelay   time.Duration // верхняя граница случайной задержки между запросами
	StaleAfter    time.Duration // возраст деталей, после которого обогащение повторяется
}

// EnricherConfig — параметры воркера обогащения.
type EnricherConfig struct {
	MaxRetries     int           // попытки при временных сбоях страницы деталей
	RetryBaseDelay time.Duration // базовая задержка, удваивается с каждой попыткой
	LockTTL        time.Duration // TTL блокировки записи в Redis
}

// AnalyzerConfig — параметры цикла фильтрации и пересчета оценок.
type AnalyzerConfig struct {
	Interval         time.Duration // пауза между циклами анализа
	BusyInterval     time.Duration // укороченная пауза, когда работа была
	FilterBatchLimit int           // pending-объявлений за один прогон
	MinBucketSamples int           // минимальная выборка корзины для доверия медиане
	RetainOnEmpty    bool          // пустой пересчет корзин сохраняет прежние значения
	ExportFile       string        // файл выгрузки production-витрины
	ExportLimit      int           // максимум объявлений в выгрузке
	FilterProfile    string        // имя активного профиля фильтров
}

// AppConfig хранит всю конфигурацию приложения
type AppConfig struct {
	Database  DBconfig
	RabbitMQ  RabbitMQConfig
	Redis     RedisConfig
	Collector CollectorConfig
	Enricher  EnricherConfig
	Analyzer  AnalyzerConfig
}

// LoadConfig загружает конфигурацию из переменных окружения.
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		// Отсутствие .env не фатально: в контейнере окружение задано снаружи.
		log.Printf("Info: Could not load .env file (path: %v): %v.\n", envPath, err)
	}

	cfg := &AppConfig{}

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL environment variable is required")
	}
	cfg.RabbitMQ.PrefetchCount = getEnvAsInt("RABBITMQ_PREFETCH_COUNT", 4)

	cfg.Redis.Addr = getEnvAsString("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvAsString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	cfg.Collector.CycleInterval = getEnvAsDuration("COLLECTOR_CYCLE_INTERVAL", 30*time.Minute)
	cfg.Collector.MaxPages = getEnvAsInt("COLLECTOR_MAX_PAGES", 5)
	cfg.Collector.RandomDelay = getEnvAsDuration("COLLECTOR_RANDOM_DELAY", 5*time.Second)
	cfg.Collector.StaleAfter = getEnvAsDuration("COLLECTOR_STALE_AFTER", 24*time.Hour)

	cfg.Enricher.MaxRetries = getEnvAsInt("ENRICHER_MAX_RETRIES", 3)
	cfg.Enricher.RetryBaseDelay = getEnvAsDuration("ENRICHER_RETRY_BASE_DELAY", 5*time.Second)
	cfg.Enricher.LockTTL = getEnvAsDuration("ENRICHER_LOCK_TTL", 2*time.Minute)

	cfg.Analyzer.Interval = getEnvAsDuration("ANALYZER_INTERVAL", 10*time.Minute)
	cfg.Analyzer.BusyInterval = getEnvAsDuration("ANALYZER_BUSY_INTERVAL", 1*time.Minute)
	cfg.Analyzer.FilterBatchLimit = getEnvAsInt("ANALYZER_FILTER_BATCH_LIMIT", 50)
	cfg.Analyzer.MinBucketSamples = getEnvAsInt("BASELINE_MIN_SAMPLES", 5)
	cfg.Analyzer.RetainOnEmpty = getEnvAsBool("BASELINE_RETAIN_ON_EMPTY", true)
	cfg.Analyzer.ExportFile = getEnvAsString("PRODUCTION_EXPORT_FILE", "production_listings.json")
	cfg.Analyzer.ExportLimit = getEnvAsInt("PRODUCTION_EXPORT_LIMIT", 100)
	cfg.Analyzer.FilterProfile = getEnvAsString("FILTER_PROFILE", constants.ProfileDefault)

	return cfg, nil
}

// FilterProfile возвращает именованный профиль параметров фильтров.
// Неизвестное имя откатывается на default.
func FilterProfile(name string) filter.Config {
	base := filter.Config{
		Name:                 constants.ProfileDefault,
		MinPrice:             getEnvAsInt64("FILTER_MIN_PRICE", 3_000_000),
		MaxPrice:             getEnvAsInt64("FILTER_MAX_PRICE", 30_000_000),
		MinPricePerM2:        getEnvAsFloat("FILTER_MIN_PRICE_PER_M2", 0),
		MaxPricePerM2:        getEnvAsFloat("FILTER_MAX_PRICE_PER_M2", 0),
		EnableMarketFilter:   getEnvAsBool("FILTER_ENABLE_MARKET", false),
		MinMarketDiscountPct: getEnvAsFloat("FILTER_MIN_MARKET_DISCOUNT_PCT", 5),
		MaxMetroMinutes:      getEnvAsInt("FILTER_MAX_METRO_MINUTES", 15),
		MinArea:              getEnvAsFloat("FILTER_MIN_AREA", 28),
		MaxArea:              getEnvAsFloat("FILTER_MAX_AREA", 0),
		ExcludeStudios:       getEnvAsBool("FILTER_EXCLUDE_STUDIOS", false),
		RejectFirstFloor:     getEnvAsBool("FILTER_REJECT_FIRST_FLOOR", false),
		RejectLastFloor:      getEnvAsBool("FILTER_REJECT_LAST_FLOOR", false),
		MinDescriptionLength: getEnvAsInt("FILTER_MIN_DESCRIPTION_LENGTH", 20),
		BlockedKeywords:      []string{"коммунальная", "доля", "хостел", "общежитие"},
		CheckDuplicates:      getEnvAsBool("FILTER_CHECK_DUPLICATES", true),
		DuplicateWindow:      getEnvAsDuration("FILTER_DUPLICATE_WINDOW", 14*24*time.Hour),
		FastTrackViewsPerDay: getEnvAsInt("FILTER_FAST_TRACK_VIEWS_PER_DAY", 0),
	}

	switch name {
	case constants.ProfilePremium:
		premium := base
		premium.Name = constants.ProfilePremium
		premium.MinPrice = 15_000_000
		premium.MaxPrice = 100_000_000
		premium.MaxMetroMinutes = 10
		premium.MinArea = 60
		premium.RejectFirstFloor = true
		premium.RejectLastFloor = true
		premium.MinDescriptionLength = 50
		return premium
	case constants.ProfileBargain:
		bargain := base
		bargain.Name = constants.ProfileBargain
		bargain.EnableMarketFilter = true
		bargain.MinMarketDiscountPct = 10
		bargain.FastTrackViewsPerDay = 120
		return bargain
	default:
		return base
	}
}

// getEnvAsString читает переменную окружения как строку или возвращает значение по умолчанию
func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt читает переменную окружения как int или возвращает значение по умолчанию
// Логирует ошибку, если переменная есть, но не может быть преобразована в int
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

// getEnvAsInt64 читает переменную окружения как int64 или возвращает значение по умолчанию
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	valueInt, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int64: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

// getEnvAsFloat читает переменную окружения как float64 или возвращает значение по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	valueFloat, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as float: %v. Using default value: %g\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueFloat
}

// getEnvAsBool читает переменную окружения как bool или возвращает значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

// getEnvAsDuration читает переменную окружения как time.Duration ("30m", "24h")
// или возвращает значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valDur, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as duration: %v. Using default value: %s\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valDur
}
