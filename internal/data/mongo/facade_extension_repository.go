package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"git.taler.net/nexus/internal/domain/facade"
)

const facadeExtensionCollectionName = "facade_extensions"

// FacadeExtensionRepository implements facade.ExtensionRepository for
// MongoDB. This is the only MongoDB-backed store in Nexus: ledger state
// (watermarks, entries, payment initiations) requires one atomic Postgres
// transaction per ingestion batch, but a facade's read-model timeline has
// no such constraint and benefits from MongoDB's schema flexibility across
// facade types.
type FacadeExtensionRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewFacadeExtensionRepository(logger *slog.Logger, db *mongo.Database) facade.ExtensionRepository {
	return &FacadeExtensionRepository{db: db, logger: logger}
}

func (r *FacadeExtensionRepository) Append(ctx context.Context, entry *facade.ExtensionEntry) error {
	collection := r.db.Collection(facadeExtensionCollectionName)
	if _, err := collection.InsertOne(ctx, entry); err != nil {
		r.logger.Error("failed to append facade extension entry", "facade", entry.FacadeName, "error", err)
		return fmt.Errorf("failed to append facade extension entry: %w", err)
	}
	return nil
}

func (r *FacadeExtensionRepository) ListForFacade(ctx context.Context, facadeName string, limit int) ([]*facade.ExtensionEntry, error) {
	collection := r.db.Collection(facadeExtensionCollectionName)

	filter := bson.M{"facade_name": facadeName}
	opts := options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("failed to list facade extension entries", "facade", facadeName, "error", err)
		return nil, fmt.Errorf("failed to list facade extension entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*facade.ExtensionEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode facade extension entries: %w", err)
	}
	return entries, nil
}
