package db

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ShopPulse/internal/deliverylog"
	"ShopPulse/internal/models"
)

const deliveriesCollection = "email_deliveries"

// MongoStore keeps the delivery log in a MongoDB collection, one document
// per job id.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(deliveriesCollection),
	}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Migrate creates the unique job id index and the lookup indexes.
func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "jobId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "template", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

func (s *MongoStore) Upsert(ctx context.Context, u deliverylog.Update) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"jobId": u.JobID},
		mongoUpdate(u),
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) List(ctx context.Context, f deliverylog.Filter) ([]models.Delivery, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := s.coll.Find(ctx, mongoFilter(f), opts)
	if err != nil {
		return nil, err
	}

	var out []models.Delivery
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func mongoUpdate(u deliverylog.Update) bson.M {
	set := bson.M{
		"status":    string(u.Status),
		"attempts":  u.Attempts,
		"updatedAt": u.UpdatedAt,
	}
	if u.Error != "" {
		set["error"] = u.Error
	}
	if u.MessageID != "" {
		set["messageId"] = u.MessageID
	}
	if u.SentAt != nil {
		set["sentAt"] = *u.SentAt
	}
	if u.CompletedAt != nil {
		set["completedAt"] = *u.CompletedAt
	}

	onInsert := bson.M{
		"recipient":  u.Recipient,
		"subject":    u.Subject,
		"template":   u.Template,
		"priority":   u.Priority,
		"maxRetries": u.MaxRetries,
		"createdAt":  u.CreatedAt,
	}
	if len(u.Metadata) > 0 {
		onInsert["metadata"] = u.Metadata
	}

	return bson.M{"$set": set, "$setOnInsert": onInsert}
}

func mongoFilter(f deliverylog.Filter) bson.D {
	filter := bson.D{}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: string(f.Status)})
	}
	if f.Recipient != "" {
		filter = append(filter, bson.E{Key: "recipient", Value: primitive.Regex{
			Pattern: "^" + regexp.QuoteMeta(f.Recipient) + "$",
			Options: "i",
		}})
	}
	if f.Template != "" {
		filter = append(filter, bson.E{Key: "template", Value: f.Template})
	}
	return filter
}
