package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	_ "github.com/sijms/go-ora/v2"
	"github.com/tuncerburak97/bekci/internal/model"
	"github.com/tuncerburak97/bekci/internal/repository/migrations"
)

type OracleRepository struct {
	DB *sql.DB
}

func NewOracleRepository(connStr string) (*OracleRepository, error) {
	db, err := sql.Open("oracle", connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to Oracle: %v", err)
	}

	return &OracleRepository{DB: db}, nil
}

func (r *OracleRepository) FindRoute(ctx context.Context, apiID string) (*model.ApiRoute, error) {
	var route model.ApiRoute
	var description, flowData sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT api_id, api_name, path, method, use_yn, description, flow_data
		 FROM api_list WHERE api_id = :1`,
		apiID,
	).Scan(&route.ApiID, &route.ApiName, &route.Path, &route.Method,
		&route.UseYn, &description, &flowData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	route.Description = description.String
	route.FlowData = flowData.String
	return &route, nil
}

func (r *OracleRepository) FindKeyByHash(ctx context.Context, hashedKey string) (*model.ApiKey, error) {
	var key model.ApiKey
	var comment sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT user_id, api_key, "COMMENT" FROM api_keys WHERE api_key = :1`,
		hashedKey,
	).Scan(&key.UserID, &key.ApiKey, &comment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	key.Comment = comment.String
	return &key, nil
}

func (r *OracleRepository) FindUser(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	var permissionCode, useYn sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT user_id, user_name, permission_code, use_yn
		 FROM users WHERE user_id = :1`,
		userID,
	).Scan(&user.UserID, &user.UserName, &permissionCode, &useYn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.PermissionCode = permissionCode.String
	user.UseYn = useYn.String
	return &user, nil
}

func (r *OracleRepository) HasPermission(ctx context.Context, userID, apiID string) (bool, error) {
	var count int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM api_permissions WHERE user_id = :1 AND api_id = :2`,
		userID, apiID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

const insertLogSQL = `INSERT INTO gateway_logs (
	log_id, trace_id, user_id, api_id, method, path, query_param,
	headers, body, status_code, response, requested_at, responded_at,
	latency_ms, client_ip, user_agent, is_success, error_message
) VALUES (:1, :2, :3, :4, :5, :6, :7, :8, :9, :10, :11, :12, :13, :14, :15, :16, :17, :18)`

func (r *OracleRepository) SaveLog(ctx context.Context, logEntry *model.GatewayLog) error {
	_, err := r.DB.ExecContext(ctx, insertLogSQL,
		logEntry.LogID, logEntry.TraceID, logEntry.UserID, logEntry.ApiID,
		logEntry.Method, logEntry.Path, logEntry.QueryParam, logEntry.Headers,
		logEntry.Body, logEntry.StatusCode, logEntry.Response,
		logEntry.RequestedAt, logEntry.RespondedAt, logEntry.LatencyMs,
		logEntry.ClientIP, logEntry.UserAgent, logEntry.IsSuccess,
		logEntry.ErrorMessage,
	)
	return err
}

func (r *OracleRepository) SaveLogs(ctx context.Context, logs []*model.GatewayLog) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertLogSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, logEntry := range logs {
		_, err = stmt.ExecContext(ctx,
			logEntry.LogID, logEntry.TraceID, logEntry.UserID, logEntry.ApiID,
			logEntry.Method, logEntry.Path, logEntry.QueryParam, logEntry.Headers,
			logEntry.Body, logEntry.StatusCode, logEntry.Response,
			logEntry.RequestedAt, logEntry.RespondedAt, logEntry.LatencyMs,
			logEntry.ClientIP, logEntry.UserAgent, logEntry.IsSuccess,
			logEntry.ErrorMessage,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *OracleRepository) Close() error {
	return r.DB.Close()
}

func (r *OracleRepository) Migrate(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("Starting Oracle migrations")

	_, err := r.DB.ExecContext(ctx, migrations.OracleSchema)
	if err != nil {
		log.Error().Err(err).Msg("Oracle migrations failed")
		return fmt.Errorf("migration error: %v", err)
	}

	log.Info().Msg("Oracle migrations completed successfully")
	return nil
}
