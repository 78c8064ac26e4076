package repository

import (
	"context"

	"github.com/tuncerburak97/bekci/internal/model"
)

// LookupRepository is the read side of the store boundary: routes, users,
// keys and permission grants. Missing rows are (nil, nil) / (false, nil),
// not errors; the pipeline decides what a miss means.
type LookupRepository interface {
	FindRoute(ctx context.Context, apiID string) (*model.ApiRoute, error)
	FindKeyByHash(ctx context.Context, hashedKey string) (*model.ApiKey, error)
	FindUser(ctx context.Context, userID string) (*model.User, error)
	HasPermission(ctx context.Context, userID, apiID string) (bool, error)
	Migrate(ctx context.Context) error
	Close() error
}

// LogRepository persists audit records. SaveLogs is the batch path used
// by the audit workers.
type LogRepository interface {
	SaveLog(ctx context.Context, log *model.GatewayLog) error
	SaveLogs(ctx context.Context, logs []*model.GatewayLog) error
	Migrate(ctx context.Context) error
	Close() error
}
