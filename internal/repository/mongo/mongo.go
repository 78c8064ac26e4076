package mongo

import (
	"context"

	"github.com/tuncerburak97/bekci/internal/model"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const logCollection = "gateway_logs"

// MongoRepository persists audit records only; route and auth lookups
// stay on a relational store.
type MongoRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoRepository(uri, dbName string) (*MongoRepository, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	return &MongoRepository{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

func (r *MongoRepository) Close() error {
	return r.client.Disconnect(context.Background())
}

func (r *MongoRepository) SaveLog(ctx context.Context, logEntry *model.GatewayLog) error {
	_, err := r.db.Collection(logCollection).InsertOne(ctx, logEntry)
	return err
}

func (r *MongoRepository) SaveLogs(ctx context.Context, logs []*model.GatewayLog) error {
	if len(logs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(logs))
	for i, logEntry := range logs {
		docs[i] = logEntry
	}
	_, err := r.db.Collection(logCollection).InsertMany(ctx, docs)
	return err
}

func (r *MongoRepository) Migrate(ctx context.Context) error {
	return nil
}
