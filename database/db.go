package database

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"paylink/config"

	mysqldriver "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the store with secure defaults, pooling and retry.
// DB_DRIVER selects mysql (default) or postgres.
func Connect(cfg config.DatabaseConfig, development bool) (*gorm.DB, error) {
	if DB != nil {
		return DB, nil
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var dialector gorm.Dialector
	switch driver {
	case "", "mysql":
		dsn, err := mysqlDSN(cfg)
		if err != nil {
			return nil, err
		}
		log.Printf("[database] using DSN: %s", redact(dsn, cfg.Pass))
		dialector = gormmysql.Open(dsn)
	case "postgres":
		dsn := cfg.DSN
		if dsn == "" {
			sslmode := "require"
			if cfg.TLS == "false" || cfg.TLS == "skip" {
				sslmode = "disable"
			}
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
				cfg.Host, cfg.User, cfg.Pass, cfg.Name, cfg.Port, sslmode)
		}
		log.Printf("[database] using DSN: %s", redact(dsn, cfg.Pass))
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	var gormLogger logger.Interface
	if development {
		gormLogger = logger.Default.LogMode(logger.Info)
	} else {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	// Retry connection with exponential backoff
	maxRetries := cfg.ConnectRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var db *gorm.DB
	var err error
	backoff := time.Second
	for attempt := 0; attempt < maxRetries; attempt++ {
		db, err = gorm.Open(dialector, GormConfig(gormLogger))
		if err == nil {
			break
		}
		log.Printf("[database] connect attempt %d/%d failed: %v", attempt+1, maxRetries, err)
		time.Sleep(backoff)
		backoff *= 2
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := pingWithTimeout(sqlDB, 5*time.Second); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	DB = db
	return DB, nil
}

// GormConfig is shared by the server and the tests: UTC timestamps and
// translated driver errors (unique violations become gorm.ErrDuplicatedKey).
func GormConfig(l logger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:         l,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func mysqlDSN(cfg config.DatabaseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	params := cfg.Params
	if !strings.Contains(params, "tls=") {
		if cfg.TLS == "true" || cfg.TLS == "preferred" {
			if cfg.TLSVerify {
				if err := registerCustomTLS(cfg); err != nil {
					return "", err
				}
				params = params + "&tls=custom"
			} else {
				params = params + "&tls=true"
			}
		}
	}
	if !strings.Contains(params, "timeout=") {
		params = params + "&timeout=10s"
	}
	if !strings.Contains(params, "readTimeout=") {
		params = params + "&readTimeout=10s"
	}
	if !strings.Contains(params, "writeTimeout=") {
		params = params + "&writeTimeout=10s"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.Name, params), nil
}

// registerCustomTLS registers the "custom" TLS profile for strict certificate validation.
func registerCustomTLS(cfg config.DatabaseConfig) error {
	tlsCfg := &tls.Config{}
	if cfg.TLSCAPath != "" {
		caCert, err := os.ReadFile(cfg.TLSCAPath)
		if err != nil {
			return fmt.Errorf("failed reading DB TLS CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return errors.New("failed to append CA certs")
		}
		tlsCfg.RootCAs = pool
	}
	if cfg.TLSClientCert != "" && cfg.TLSClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSClientCert, cfg.TLSClientKey)
		if err != nil {
			return fmt.Errorf("failed to load client cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return mysqldriver.RegisterTLSConfig("custom", tlsCfg)
}

func redact(dsn, pass string) string {
	if pass == "" {
		return dsn
	}
	return strings.Replace(dsn, pass, "******", 1)
}

func pingWithTimeout(db *sql.DB, timeout time.Duration) error {
	ch := make(chan error, 1)
	go func() {
		ch <- db.Ping()
	}()
	select {
	case err := <-ch:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("ping timeout after %s", timeout)
	}
}
