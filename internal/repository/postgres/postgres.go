package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/tuncerburak97/bekci/internal/model"
	"github.com/tuncerburak97/bekci/internal/repository/migrations"
)

type PostgresRepository struct {
	Pool *pgxpool.Pool
}

func NewPostgresRepository(connStr string) (*PostgresRepository, error) {
	pool, err := pgxpool.Connect(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	return &PostgresRepository{Pool: pool}, nil
}

func (r *PostgresRepository) FindRoute(ctx context.Context, apiID string) (*model.ApiRoute, error) {
	var route model.ApiRoute
	err := r.Pool.QueryRow(ctx,
		`SELECT api_id, api_name, path, method, use_yn,
		        COALESCE(description, ''), COALESCE(flow_data, '')
		 FROM api_list WHERE api_id = $1`,
		apiID,
	).Scan(&route.ApiID, &route.ApiName, &route.Path, &route.Method,
		&route.UseYn, &route.Description, &route.FlowData)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &route, nil
}

func (r *PostgresRepository) FindKeyByHash(ctx context.Context, hashedKey string) (*model.ApiKey, error) {
	var key model.ApiKey
	err := r.Pool.QueryRow(ctx,
		`SELECT user_id, api_key, COALESCE(comment, '')
		 FROM api_keys WHERE api_key = $1`,
		hashedKey,
	).Scan(&key.UserID, &key.ApiKey, &key.Comment)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *PostgresRepository) FindUser(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := r.Pool.QueryRow(ctx,
		`SELECT user_id, user_name, COALESCE(permission_code, ''), COALESCE(use_yn, 'N')
		 FROM users WHERE user_id = $1`,
		userID,
	).Scan(&user.UserID, &user.UserName, &user.PermissionCode, &user.UseYn)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *PostgresRepository) HasPermission(ctx context.Context, userID, apiID string) (bool, error) {
	var exists bool
	err := r.Pool.QueryRow(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM api_permissions WHERE user_id = $1 AND api_id = $2
		 )`,
		userID, apiID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

const insertLogSQL = `INSERT INTO gateway_logs (
	log_id, trace_id, user_id, api_id, method, path, query_param,
	headers, body, status_code, response, requested_at, responded_at,
	latency_ms, client_ip, user_agent, is_success, error_message
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

func (r *PostgresRepository) SaveLog(ctx context.Context, logEntry *model.GatewayLog) error {
	_, err := r.Pool.Exec(ctx, insertLogSQL,
		logEntry.LogID, logEntry.TraceID, logEntry.UserID, logEntry.ApiID,
		logEntry.Method, logEntry.Path, logEntry.QueryParam, logEntry.Headers,
		logEntry.Body, logEntry.StatusCode, logEntry.Response,
		logEntry.RequestedAt, logEntry.RespondedAt, logEntry.LatencyMs,
		logEntry.ClientIP, logEntry.UserAgent, logEntry.IsSuccess,
		logEntry.ErrorMessage,
	)
	return err
}

func (r *PostgresRepository) SaveLogs(ctx context.Context, logs []*model.GatewayLog) error {
	batch := &pgx.Batch{}

	logger := zerolog.Ctx(ctx)
	logger.Debug().
		Int("count", len(logs)).
		Msg("Saving gateway logs to database")

	for _, logEntry := range logs {
		batch.Queue(insertLogSQL,
			logEntry.LogID, logEntry.TraceID, logEntry.UserID, logEntry.ApiID,
			logEntry.Method, logEntry.Path, logEntry.QueryParam, logEntry.Headers,
			logEntry.Body, logEntry.StatusCode, logEntry.Response,
			logEntry.RequestedAt, logEntry.RespondedAt, logEntry.LatencyMs,
			logEntry.ClientIP, logEntry.UserAgent, logEntry.IsSuccess,
			logEntry.ErrorMessage,
		)
	}

	br := r.Pool.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to save gateway logs")
		return err
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	r.Pool.Close()
	return nil
}

func (r *PostgresRepository) Migrate(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Starting PostgreSQL migrations")

	_, err := r.Pool.Exec(ctx, migrations.PostgresSchema)
	if err != nil {
		log.Error().Err(err).Msg("PostgreSQL migrations failed")
		return fmt.Errorf("migration error: %v", err)
	}

	log.Info().Msg("PostgreSQL migrations completed successfully")
	return nil
}
