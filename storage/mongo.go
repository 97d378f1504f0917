package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "sessions"

type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	maxTurns   int
	log        *slog.Logger
}

func NewMongoStore(uri, database string, maxTurns int, idleTTL time.Duration, log *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}

	collection := client.Database(database).Collection(collectionName)

	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		log.Warn("creating user index", slog.String("error", err.Error()))
	}

	// Server-side idle expiry; replaces any in-process sweeper for this store
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(idleTTL.Seconds())),
	})
	if err != nil {
		log.Warn("creating TTL index", slog.String("error", err.Error()))
	}

	return &MongoStore{
		client:     client,
		collection: collection,
		maxTurns:   maxTurns,
		log:        log,
	}, nil
}

func (m *MongoStore) GetSession(userId int64) (*Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var session Session
	err := m.collection.FindOne(ctx, bson.M{"user_id": userId}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding session: %w", err)
	}
	return &session, nil
}

func (m *MongoStore) AppendTurn(userId int64, role Role, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	turn := Turn{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}

	// $push with $slice keeps only the newest maxTurns turns; the upsert
	// makes first-message creation idempotent under concurrent appends.
	update := bson.M{
		"$push": bson.M{
			"turns": bson.M{
				"$each":  []Turn{turn},
				"$slice": -m.maxTurns,
			},
		},
		"$set":         bson.M{"updated_at": time.Now()},
		"$setOnInsert": bson.M{"user_id": userId},
	}

	opts := options.Update().SetUpsert(true)
	_, err := m.collection.UpdateOne(ctx, bson.M{"user_id": userId}, update, opts)
	return err
}

func (m *MongoStore) SetTopic(userId int64, topic string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"topic":      topic,
			"updated_at": time.Now(),
		},
		"$setOnInsert": bson.M{
			"user_id": userId,
			"turns":   []Turn{},
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := m.collection.UpdateOne(ctx, bson.M{"user_id": userId}, update, opts)
	return err
}

func (m *MongoStore) ClearSession(userId int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := m.collection.DeleteOne(ctx, bson.M{"user_id": userId})
	return err
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
