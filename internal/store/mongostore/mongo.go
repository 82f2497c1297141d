// Package mongostore ukládá čtení do MongoDB, každý senzor do vlastní kolekce sensor_<id>.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/store"
)

const timeField = "receipt_time"

// Store je backend nad jednou databází MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	// Index na receipt_time zakládáme líně, při prvním zápisu do kolekce.
	mu      sync.Mutex
	indexed map[string]bool
}

// Connect otevře spojení a ověří ho pingem. Bez dostupné DB nemá smysl startovat.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	// Vnořené dokumenty v polích navíc dekódujeme jako mapy, ne bson.D (JSON je pak objekt).
	opts := options.Client().ApplyURI(uri).SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDB není dostupná: %w", err)
	}

	return New(client, database), nil
}

// New obalí existujícího klienta, spojení neověřuje.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client:  client,
		db:      client.Database(database),
		indexed: make(map[string]bool),
	}
}

// CollectionName zachovává pojmenování kolekcí z původního nasazení.
func CollectionName(sensorID string) string {
	return "sensor_" + sensorID
}

func (s *Store) collection(sensorID string) *mongo.Collection {
	return s.db.Collection(CollectionName(sensorID))
}

func (s *Store) ensureIndex(ctx context.Context, sensorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexed[sensorID] {
		return nil
	}

	_, err := s.collection(sensorID).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: timeField, Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("creating %s index on %s: %w", timeField, CollectionName(sensorID), err)
	}
	s.indexed[sensorID] = true
	return nil
}

// Append vloží dokument do kolekce senzoru, při prvním zápisu založí index.
func (s *Store) Append(ctx context.Context, sensorID string, r store.Reading) error {
	if err := s.ensureIndex(ctx, sensorID); err != nil {
		return err
	}

	r.SensorID = sensorID
	if _, err := s.collection(sensorID).InsertOne(ctx, r); err != nil {
		return fmt.Errorf("insert into %s: %w", CollectionName(sensorID), err)
	}
	return nil
}

// RangeFilter odpovídá oknu [start, end] včetně mezí.
func RangeFilter(start, end time.Time) bson.D {
	return bson.D{{Key: timeField, Value: bson.D{
		{Key: "$gte", Value: start},
		{Key: "$lte", Value: end},
	}}}
}

// ascending: _id (ObjectID) rozhoduje shodné časy v pořadí vložení.
func ascending() bson.D {
	return bson.D{{Key: timeField, Value: 1}, {Key: "_id", Value: 1}}
}

func descending() bson.D {
	return bson.D{{Key: timeField, Value: -1}, {Key: "_id", Value: -1}}
}

func (s *Store) QueryRange(ctx context.Context, sensorID string, start, end time.Time) ([]store.Reading, error) {
	cursor, err := s.collection(sensorID).Find(ctx, RangeFilter(start, end), options.Find().SetSort(ascending()))
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", CollectionName(sensorID), err)
	}
	defer cursor.Close(ctx)

	readings := make([]store.Reading, 0)
	if err := cursor.All(ctx, &readings); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", CollectionName(sensorID), err)
	}
	return readings, nil
}

// Latest vrací nil, když je kolekce prázdná nebo neexistuje.
func (s *Store) Latest(ctx context.Context, sensorID string) (*store.Reading, error) {
	var r store.Reading
	err := s.collection(sensorID).FindOne(ctx, bson.D{}, options.FindOne().SetSort(descending())).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest in %s: %w", CollectionName(sensorID), err)
	}
	return &r, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
