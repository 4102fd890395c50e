// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"BOT_TOKEN" required:"true"`
	// Чат для служебных сообщений (итоги чисток). 0 — отключено.
	LogChatID int64 `envconfig:"LOG_CHAT_ID" default:"0"`
	// Псевдоаккаунт анонимных админов — его активность не учитываем никогда.
	ExcludedUsername string `envconfig:"EXCLUDED_USERNAME" default:"GroupAnonymousBot"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "mongo" (имя сервиса в docker-compose), для локалки переопределяй MONGO_URI.
	MongoURI string `envconfig:"MONGO_URI" default:"mongodb://mongo:27017"`
	DBName   string `envconfig:"DB_NAME" default:"points_bot"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`
	// Таймаут одного вызова Telegram API. Без него один зависший вызов
	// останавливает фоновую чистку навсегда.
	GatewayTimeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s"`

	// --- Sweeps (фоновые чистки) ---
	// Период сверки членства (кто вышел из групп)
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"24h"`
	// Период авто-кика спящих без очков
	EnforceInterval time.Duration `envconfig:"ENFORCE_INTERVAL" default:"24h"`
	// Период уборки осиротевших записей (без групп и очков)
	JanitorInterval time.Duration `envconfig:"JANITOR_INTERVAL" default:"1h"`
	// Пауза после старта перед первой чисткой — даём боту прогреться
	SweepStartDelay time.Duration `envconfig:"SWEEP_START_DELAY" default:"2m"`
	// Порог спячки: 180 дней без очков → кандидат на кик
	DormancyThreshold time.Duration `envconfig:"DORMANCY_THRESHOLD" default:"4320h"`
	// Свежие записи не удаляем сразу, даже если они пустые
	OrphanGracePeriod time.Duration `envconfig:"ORPHAN_GRACE_PERIOD" default:"72h"`

	// --- Points ---
	PointsMin int64 `envconfig:"POINTS_MIN" default:"1"`
	PointsMax int64 `envconfig:"POINTS_MAX" default:"100"`
	// Сколько участников показываем в /top
	TopLimit int64 `envconfig:"TOP_LIMIT" default:"25"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT должен быть > 0")
	}
	if c.ReconcileInterval <= 0 || c.EnforceInterval <= 0 || c.JanitorInterval <= 0 {
		return fmt.Errorf("интервалы чисток должны быть > 0")
	}
	if c.DormancyThreshold <= 0 {
		return fmt.Errorf("DORMANCY_THRESHOLD должен быть > 0")
	}
	if c.OrphanGracePeriod < 0 {
		return fmt.Errorf("ORPHAN_GRACE_PERIOD не может быть отрицательным")
	}
	if c.PointsMin <= 0 || c.PointsMax < c.PointsMin {
		return fmt.Errorf("некорректные POINTS_MIN/POINTS_MAX")
	}
	if c.TopLimit <= 0 {
		return fmt.Errorf("TOP_LIMIT должен быть > 0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
