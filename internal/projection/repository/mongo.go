package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/edusync/platform-sync/internal/projection"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements Store on a MongoDB collection. Documents are keyed by
// _id = decimal platform id, so no extra unique index is needed.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

// Upsert replaces the whole document (no $set merge) so stale embedded fields never survive.
func (m *MongoRepo) Upsert(ctx context.Context, doc *projection.PlatformDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("upsert platform document: empty id")
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return fmt.Errorf("upsert platform document %s: %w", doc.ID, err)
	}
	return nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*projection.PlatformDocument, error) {
	var d projection.PlatformDocument
	err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get platform document %s: %w", id, err)
	}
	return &d, nil
}

func (m *MongoRepo) ListIDs(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := m.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list platform documents: %w", err)
	}
	defer cur.Close(ctx)
	out := []string{}
	for cur.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row.ID)
	}
	return out, cur.Err()
}

// DeleteByID removes the document; a missing document is not an error.
func (m *MongoRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := m.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete platform document %s: %w", id, err)
	}
	return nil
}
