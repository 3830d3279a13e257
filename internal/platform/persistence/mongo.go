package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.taler.net/nexus/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// facadeExtensionsCollection must match
// internal/data/mongo.facadeExtensionCollectionName; MongoDB backs only
// the facade timeline (spec §4.6), never ledger or watermark state, so
// this connection setup owns that collection's indexes rather than
// leaving them to whatever repository happens to touch it first.
const facadeExtensionsCollection = "facade_extensions"

type MongoConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

type MongoDB struct {
	logger   *slog.Logger
	client   *mongo.Client
	database *mongo.Database
}

func NewMongoDB(ctx context.Context, logger *slog.Logger, cfg *config.MongoDBConfig) (*MongoDB, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)

	db := &MongoDB{
		logger:   logger,
		client:   client,
		database: database,
	}

	if err := db.ensureFacadeIndexes(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// ensureFacadeIndexes creates the compound index FacadeExtensionRepository's
// ListForFacade query relies on: a facade's timeline is always fetched by
// facade_name and sorted newest-first.
func (m *MongoDB) ensureFacadeIndexes(ctx context.Context) error {
	collection := m.database.Collection(facadeExtensionsCollection)
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "facade_name", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create facade extensions index: %w", err)
	}
	return nil
}

func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

func (m *MongoDB) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	m.logger.Info("Closed MongoDB connection")
	return nil
}
