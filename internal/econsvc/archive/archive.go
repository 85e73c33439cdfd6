// Package archive keeps a transcript of every model-driven decision so a
// session can be audited after the fact. Records expire via a TTL index;
// the archive is an observer and never participates in settlement.
package archive

import (
	"context"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "decision_transcripts"

// Record is one decision round-trip with the external model.
type Record struct {
	GameID      string    `bson:"game_id"`
	PlayerID    string    `bson:"player_id"`
	RoundNumber int       `bson:"round_number"`
	Model       string    `bson:"model"`
	Prompt      string    `bson:"prompt"`
	Response    string    `bson:"response"`
	Decision    int       `bson:"decision"`
	FellBack    bool      `bson:"fell_back"`
	CreatedAt   time.Time `bson:"created_at"`
	ExpiresAt   time.Time `bson:"expires_at"`
}

type Store struct {
	coll *mongo.Collection
	ttl  time.Duration
}

// Connect opens the archive database named in the URI path and ensures the
// TTL index on expires_at exists.
func Connect(ctx context.Context, mongoURI string, ttl time.Duration) (*Store, error) {
	uri, err := url.Parse(mongoURI)
	if err != nil {
		return nil, err
	}
	dbName := strings.TrimPrefix(uri.Path, "/")

	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(cctx, nil); err != nil {
		return nil, err
	}

	coll := client.Database(dbName).Collection(collectionName)
	indexModel := mongo.IndexModel{
		Keys:    bson.M{"expires_at": 1},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := coll.Indexes().CreateOne(cctx, indexModel); err != nil {
		return nil, err
	}

	return &Store{coll: coll, ttl: ttl}, nil
}

// Save inserts a transcript record. Failures are logged, not returned: a
// broken archive must never interfere with a running game.
func (s *Store) Save(ctx context.Context, rec Record) {
	if s == nil {
		return
	}
	rec.CreatedAt = time.Now().UTC()
	rec.ExpiresAt = rec.CreatedAt.Add(s.ttl)

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.coll.InsertOne(cctx, rec); err != nil {
		log.Warnf("archive: unable to save decision transcript for player %s: %v", rec.PlayerID, err)
	}
}
