package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/chamran/store"
	"github.com/cppla/chamran/store/gormstore"
	"github.com/cppla/chamran/store/memstore"
	"github.com/cppla/chamran/store/mongostore"
)

// InitStore opens the backend selected by database.driver.
func InitStore(ctx context.Context, cfg AppConfig, log *zap.Logger) (*store.Store, error) {
	switch cfg.Database.Driver {
	case DriverMemory:
		log.Warn("using the in-memory store, data is lost on exit")
		return memstore.New(), nil
	case DriverMySQL:
		db, err := InitDatabase(cfg, log)
		if err != nil {
			return nil, err
		}
		return gormstore.New(db), nil
	case DriverMongo:
		client, err := InitMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return mongostore.New(client, cfg.Database.MongoDB), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// InitDatabase establishes a connection to MySQL using configuration values.
func InitDatabase(cfg AppConfig, log *zap.Logger) (*gorm.DB, error) {
	// slow-sql threshold raised to reduce noise
	gLogger := logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(cfg.Log.Level),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN()), &gorm.Config{
		Logger:                                   gLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	// surface network and auth problems at boot instead of on the first query
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping: %w", err)
	}
	return db, nil
}

// InitMongo connects to MongoDB and pings the primary.
func InitMongo(ctx context.Context, cfg AppConfig) (*mongo.Client, error) {
	timeout := time.Duration(cfg.Database.TimeoutSec) * time.Second
	opts := options.Client().
		ApplyURI(cfg.Database.MongoURI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// GORM 'Info' shows SQL
		return logger.Info
	case "info", "", "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}
