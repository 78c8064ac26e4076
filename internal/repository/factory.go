package repository

import (
	"fmt"

	"github.com/rs/zerolog/log"
	ora "github.com/sijms/go-ora/v2"
	"github.com/tuncerburak97/bekci/internal/config"
	"github.com/tuncerburak97/bekci/internal/repository/couchbase"
	"github.com/tuncerburak97/bekci/internal/repository/mongo"
	"github.com/tuncerburak97/bekci/internal/repository/oracle"
	"github.com/tuncerburak97/bekci/internal/repository/postgres"
)

// NewLookupRepository builds the route/auth store. Lookups need joins
// over the console-managed tables, so only relational backends qualify.
func NewLookupRepository(cfg *config.DBConfig) (LookupRepository, error) {
	switch cfg.Type {
	case "postgres":
		log.Info().
			Str("type", "postgres").
			Str("host", cfg.Host).
			Int("port", cfg.Port).
			Str("database", cfg.Database).
			Msg("Connecting to lookup store")
		return postgres.NewPostgresRepository(postgresConnStr(cfg))

	case "oracle":
		connStr := ora.BuildUrl(cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, nil)
		return oracle.NewOracleRepository(connStr)

	default:
		return nil, fmt.Errorf("unsupported lookup store type: %s", cfg.Type)
	}
}

// NewLogRepository builds the audit store. Document stores are fine here:
// gateway logs are insert-only and keyed by log id.
func NewLogRepository(cfg *config.DBConfig) (LogRepository, error) {
	switch cfg.Type {
	case "postgres":
		log.Info().
			Str("type", "postgres").
			Str("host", cfg.Host).
			Int("port", cfg.Port).
			Str("database", cfg.Database).
			Msg("Connecting to audit store")
		return postgres.NewPostgresRepository(postgresConnStr(cfg))

	case "oracle":
		connStr := ora.BuildUrl(cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, nil)
		return oracle.NewOracleRepository(connStr)

	case "mongodb":
		uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.User, cfg.Password, cfg.Host, cfg.Port)
		return mongo.NewMongoRepository(uri, cfg.Database)

	case "couchbase":
		connStr := fmt.Sprintf("couchbase://%s:%d", cfg.Host, cfg.Port)
		return couchbase.NewCouchbaseRepository(connStr, cfg.Database, cfg.User, cfg.Password)

	default:
		return nil, fmt.Errorf("unsupported audit store type: %s", cfg.Type)
	}
}

func postgresConnStr(cfg *config.DBConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?pool_max_conns=%d&pool_min_conns=%d",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.Pool.MaxConns, cfg.Pool.MinConns,
	)
}
