package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"echoreach/internal/models"
)

// MongoStore is an optional long-term archive for decision events. When
// MONGODB_URI is unset the server runs on SQLite alone.
type MongoStore struct {
	client *mongo.Client
	events *mongo.Collection
}

// NewMongoStore connects to MongoDB and prepares the events collection.
func NewMongoStore(uri string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoStore{
		client: client,
		events: client.Database("echoreach").Collection("events"),
	}

	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	log.Println("✅ MongoDB archive connected")
	return store, nil
}

func (m *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "time", Value: -1}}},
		{Keys: bson.D{{Key: "counterparty_id", Value: 1}, {Key: "time", Value: -1}}},
	}
	_, err := m.events.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create event indexes: %w", err)
	}
	return nil
}

// WriteEvent archives one decision event.
func (m *MongoStore) WriteEvent(ctx context.Context, event models.Event) error {
	_, err := m.events.InsertOne(ctx, event)
	return err
}

// Close disconnects from MongoDB.
func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
