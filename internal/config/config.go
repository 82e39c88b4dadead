package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Order     OrderConfig     `yaml:"order"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Services  ServicesConfig  `yaml:"services"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Messaging MessagingConfig `yaml:"messaging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	AutoMigrate     bool          `yaml:"autoMigrate"`
}

type OrderConfig struct {
	TxTimeout        time.Duration `yaml:"txTimeout"`
	MaxRetryAttempts int           `yaml:"maxRetryAttempts"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// AuthConfig points at the Keycloak realm used both to obtain service tokens
// for outbound calls and to introspect inbound bearer tokens.
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ServerURL    string `yaml:"serverUrl"`
	Realm        string `yaml:"realm"`
	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
}

type ServicesConfig struct {
	Name     string        `yaml:"name"`
	Timeout  time.Duration `yaml:"timeout"`
	Catalog  ServiceConfig `yaml:"catalog"`
	Identity ServiceConfig `yaml:"identity"`
	Payment  ServiceConfig `yaml:"payment"`
}

type ServiceConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

type BreakerConfig struct {
	FailureThreshold int           `yaml:"failureThreshold"`
	RecoveryTimeout  time.Duration `yaml:"recoveryTimeout"`
	Interval         time.Duration `yaml:"interval"`
}

type MessagingConfig struct {
	URL        string        `yaml:"url"`
	Exchange   string        `yaml:"exchange"`
	RetryCount int           `yaml:"retryCount"`
	RetryDelay time.Duration `yaml:"retryDelay"`
}

type TracingConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8084,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            3306,
			User:            "purchases",
			Password:        "secret",
			Name:            "purchases",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Order: OrderConfig{
			TxTimeout:        5 * time.Second,
			MaxRetryAttempts: 3,
		},
		Log: LogConfig{Level: "info"},
		Auth: AuthConfig{
			Enabled:   true,
			ServerURL: "http://localhost:8080",
			Realm:     "marketplace",
			ClientID:  "purchases-service",
		},
		Services: ServicesConfig{
			Name:     "purchases-service",
			Timeout:  5 * time.Second,
			Catalog:  ServiceConfig{BaseURL: "http://localhost:8081"},
			Identity: ServiceConfig{BaseURL: "http://localhost:8082"},
			Payment:  ServiceConfig{BaseURL: "http://localhost:8083"},
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			Interval:         60 * time.Second,
		},
		Messaging: MessagingConfig{
			Exchange:   "purchases.events",
			RetryCount: 3,
			RetryDelay: 2 * time.Second,
		},
		Tracing: TracingConfig{Insecure: true},
	}
}

// ApplyEnv overrides cfg with any matching environment variable. Values
// already in cfg act as the defaults.
func ApplyEnv(cfg *Config) error {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", cfg.Server.Port)
	v.SetDefault("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout.String())
	v.SetDefault("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout.String())
	v.SetDefault("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout.String())
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout.String())
	v.SetDefault("DB_HOST", cfg.Database.Host)
	v.SetDefault("DB_PORT", cfg.Database.Port)
	v.SetDefault("DB_USER", cfg.Database.User)
	v.SetDefault("DB_PASSWORD", cfg.Database.Password)
	v.SetDefault("DB_NAME", cfg.Database.Name)
	v.SetDefault("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	v.SetDefault("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	v.SetDefault("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime.String())
	v.SetDefault("DB_AUTO_MIGRATE", cfg.Database.AutoMigrate)
	v.SetDefault("ORDER_TX_TIMEOUT", cfg.Order.TxTimeout.String())
	v.SetDefault("ORDER_MAX_RETRY_ATTEMPTS", cfg.Order.MaxRetryAttempts)
	v.SetDefault("LOG_LEVEL", cfg.Log.Level)
	v.SetDefault("AUTH_ENABLED", cfg.Auth.Enabled)
	v.SetDefault("KEYCLOAK_SERVER_URL", cfg.Auth.ServerURL)
	v.SetDefault("KEYCLOAK_REALM", cfg.Auth.Realm)
	v.SetDefault("KEYCLOAK_CLIENT_ID", cfg.Auth.ClientID)
	v.SetDefault("KEYCLOAK_CLIENT_SECRET", cfg.Auth.ClientSecret)
	v.SetDefault("SERVICE_NAME", cfg.Services.Name)
	v.SetDefault("CLIENT_TIMEOUT", cfg.Services.Timeout.String())
	v.SetDefault("CATALOG_BASE_URL", cfg.Services.Catalog.BaseURL)
	v.SetDefault("IDENTITY_BASE_URL", cfg.Services.Identity.BaseURL)
	v.SetDefault("PAYMENT_BASE_URL", cfg.Services.Payment.BaseURL)
	v.SetDefault("BREAKER_FAILURE_THRESHOLD", cfg.Breaker.FailureThreshold)
	v.SetDefault("BREAKER_RECOVERY_TIMEOUT", cfg.Breaker.RecoveryTimeout.String())
	v.SetDefault("BREAKER_INTERVAL", cfg.Breaker.Interval.String())
	v.SetDefault("RABBITMQ_URL", cfg.Messaging.URL)
	v.SetDefault("RABBITMQ_EXCHANGE", cfg.Messaging.Exchange)
	v.SetDefault("RABBITMQ_RETRY_COUNT", cfg.Messaging.RetryCount)
	v.SetDefault("RABBITMQ_RETRY_DELAY", cfg.Messaging.RetryDelay.String())
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint)
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", cfg.Tracing.Insecure)

	readTimeout, err := time.ParseDuration(v.GetString("SERVER_READ_TIMEOUT"))
	if err != nil {
		return err
	}
	writeTimeout, err := time.ParseDuration(v.GetString("SERVER_WRITE_TIMEOUT"))
	if err != nil {
		return err
	}
	idleTimeout, err := time.ParseDuration(v.GetString("SERVER_IDLE_TIMEOUT"))
	if err != nil {
		return err
	}
	shutdownTimeout, err := time.ParseDuration(v.GetString("SERVER_SHUTDOWN_TIMEOUT"))
	if err != nil {
		return err
	}
	connMaxLifetime, err := time.ParseDuration(v.GetString("DB_CONN_MAX_LIFETIME"))
	if err != nil {
		return err
	}
	txTimeout, err := time.ParseDuration(v.GetString("ORDER_TX_TIMEOUT"))
	if err != nil {
		return err
	}
	clientTimeout, err := time.ParseDuration(v.GetString("CLIENT_TIMEOUT"))
	if err != nil {
		return err
	}
	recoveryTimeout, err := time.ParseDuration(v.GetString("BREAKER_RECOVERY_TIMEOUT"))
	if err != nil {
		return err
	}
	interval, err := time.ParseDuration(v.GetString("BREAKER_INTERVAL"))
	if err != nil {
		return err
	}
	retryDelay, err := time.ParseDuration(v.GetString("RABBITMQ_RETRY_DELAY"))
	if err != nil {
		return err
	}

	cfg.Server = ServerConfig{
		Port:            v.GetInt("SERVER_PORT"),
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
	}
	cfg.Database = DatabaseConfig{
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: connMaxLifetime,
		AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
	}
	cfg.Order = OrderConfig{
		TxTimeout:        txTimeout,
		MaxRetryAttempts: v.GetInt("ORDER_MAX_RETRY_ATTEMPTS"),
	}
	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Auth = AuthConfig{
		Enabled:      v.GetBool("AUTH_ENABLED"),
		ServerURL:    v.GetString("KEYCLOAK_SERVER_URL"),
		Realm:        v.GetString("KEYCLOAK_REALM"),
		ClientID:     v.GetString("KEYCLOAK_CLIENT_ID"),
		ClientSecret: v.GetString("KEYCLOAK_CLIENT_SECRET"),
	}
	cfg.Services = ServicesConfig{
		Name:     v.GetString("SERVICE_NAME"),
		Timeout:  clientTimeout,
		Catalog:  ServiceConfig{BaseURL: v.GetString("CATALOG_BASE_URL")},
		Identity: ServiceConfig{BaseURL: v.GetString("IDENTITY_BASE_URL")},
		Payment:  ServiceConfig{BaseURL: v.GetString("PAYMENT_BASE_URL")},
	}
	cfg.Breaker = BreakerConfig{
		FailureThreshold: v.GetInt("BREAKER_FAILURE_THRESHOLD"),
		RecoveryTimeout:  recoveryTimeout,
		Interval:         interval,
	}
	cfg.Messaging = MessagingConfig{
		URL:        v.GetString("RABBITMQ_URL"),
		Exchange:   v.GetString("RABBITMQ_EXCHANGE"),
		RetryCount: v.GetInt("RABBITMQ_RETRY_COUNT"),
		RetryDelay: retryDelay,
	}
	cfg.Tracing = TracingConfig{
		Endpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure: v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
	}

	return nil
}
