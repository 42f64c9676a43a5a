package index

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/BaSui01/contextflow/config"
	"github.com/BaSui01/contextflow/types"
)

// MongoStore is a MongoDB-based implementation of NodeStore.
type MongoStore struct {
	client   *mongo.Client
	nodes    *mongo.Collection
	topics   *mongo.Collection
	offloads *mongo.Collection
}

// mongoNode is the nodes collection document layout.
type mongoNode struct {
	ID          string    `bson:"_id"`
	SessionKey  string    `bson:"session_key"`
	Abstract    string    `bson:"abstract"`
	Overview    string    `bson:"overview"`
	Transcript  string    `bson:"transcript"`
	Keywords    []string  `bson:"keywords,omitempty"`
	RecencyRank int64     `bson:"recency_rank"`
	CreatedAt   time.Time `bson:"created_at"`
}

type mongoTopic struct {
	SessionKey    string    `bson:"_id"`
	Mode          string    `bson:"mode"`
	MainReference string    `bson:"main_reference"`
	TempReference string    `bson:"temp_reference,omitempty"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

type mongoOffload struct {
	OriginalID string    `bson:"_id"`
	SessionKey string    `bson:"session_key"`
	FilePath   string    `bson:"file_path"`
	SizeBytes  int64     `bson:"size_bytes"`
	CreatedAt  time.Time `bson:"created_at"`
}

// NewMongoStore connects to MongoDB and prepares the collections.
func NewMongoStore(cfg config.MongoConfig) (*MongoStore, error) {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	store := &MongoStore{
		client:   client,
		nodes:    db.Collection("context_nodes"),
		topics:   db.Collection("topic_states"),
		offloads: db.Collection("offload_records"),
	}

	// Rank ordering is the hot read path.
	_, err = store.nodes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_key", Value: 1}, {Key: "recency_rank", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create node index: %w", err)
	}

	return store, nil
}

// AppendNode persists a node with the next RecencyRank. The rank is read
// from the newest node; single-writer-per-session serialization is the
// caller's contract, same as the other backends.
func (s *MongoStore) AppendNode(ctx context.Context, node *types.ContextNode) error {
	if node == nil || node.SessionKey == "" {
		return ErrInvalidInput
	}

	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now()
	}

	var newest mongoNode
	err := s.nodes.FindOne(ctx,
		bson.M{"session_key": node.SessionKey},
		options.FindOne().SetSort(bson.D{{Key: "recency_rank", Value: -1}}),
	).Decode(&newest)
	switch {
	case err == mongo.ErrNoDocuments:
		node.RecencyRank = 1
	case err != nil:
		return fmt.Errorf("failed to read max rank: %w", err)
	default:
		node.RecencyRank = newest.RecencyRank + 1
	}

	_, err = s.nodes.InsertOne(ctx, mongoNode{
		ID:          node.ID,
		SessionKey:  node.SessionKey,
		Abstract:    node.Abstract,
		Overview:    node.Overview,
		Transcript:  node.Transcript,
		Keywords:    node.Keywords,
		RecencyRank: node.RecencyRank,
		CreatedAt:   node.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert node: %w", err)
	}
	return nil
}

// ListNodes returns the session's nodes ordered by ascending rank.
func (s *MongoStore) ListNodes(ctx context.Context, sessionKey string) ([]types.ContextNode, error) {
	cursor, err := s.nodes.Find(ctx,
		bson.M{"session_key": sessionKey},
		options.Find().SetSort(bson.D{{Key: "recency_rank", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer cursor.Close(ctx)

	var nodes []types.ContextNode
	for cursor.Next(ctx) {
		var m mongoNode
		if err := cursor.Decode(&m); err != nil {
			return nil, fmt.Errorf("failed to decode node: %w", err)
		}
		nodes = append(nodes, types.ContextNode{
			ID:          m.ID,
			SessionKey:  m.SessionKey,
			Abstract:    m.Abstract,
			Overview:    m.Overview,
			Transcript:  m.Transcript,
			Keywords:    m.Keywords,
			RecencyRank: m.RecencyRank,
			CreatedAt:   m.CreatedAt,
		})
	}
	return nodes, cursor.Err()
}

// SaveTopicState upserts the session's topic state.
func (s *MongoStore) SaveTopicState(ctx context.Context, sessionKey string, state types.TopicState) error {
	_, err := s.topics.ReplaceOne(ctx,
		bson.M{"_id": sessionKey},
		mongoTopic{
			SessionKey:    sessionKey,
			Mode:          string(state.Mode),
			MainReference: state.MainReference,
			TempReference: state.TempReference,
			UpdatedAt:     time.Now(),
		},
		options.Replace().SetUpsert(true),
	)
	return err
}

// LoadTopicState returns the session's topic state.
func (s *MongoStore) LoadTopicState(ctx context.Context, sessionKey string) (types.TopicState, bool, error) {
	var m mongoTopic
	err := s.topics.FindOne(ctx, bson.M{"_id": sessionKey}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return types.TopicState{}, false, nil
	}
	if err != nil {
		return types.TopicState{}, false, fmt.Errorf("failed to load topic state: %w", err)
	}
	return types.TopicState{
		Mode:          types.TopicMode(m.Mode),
		MainReference: m.MainReference,
		TempReference: m.TempReference,
	}, true, nil
}

// SaveOffloadRecord registers an offload record.
func (s *MongoStore) SaveOffloadRecord(ctx context.Context, rec types.OffloadRecord) error {
	if rec.SessionKey == "" {
		return ErrInvalidInput
	}
	_, err := s.offloads.InsertOne(ctx, mongoOffload{
		OriginalID: rec.OriginalID,
		SessionKey: rec.SessionKey,
		FilePath:   rec.FilePath,
		SizeBytes:  rec.SizeBytes,
		CreatedAt:  rec.CreatedAt,
	})
	return err
}

// ListOffloadRecords returns the session's offload records.
func (s *MongoStore) ListOffloadRecords(ctx context.Context, sessionKey string) ([]types.OffloadRecord, error) {
	cursor, err := s.offloads.Find(ctx, bson.M{"session_key": sessionKey})
	if err != nil {
		return nil, fmt.Errorf("failed to list offload records: %w", err)
	}
	defer cursor.Close(ctx)

	var recs []types.OffloadRecord
	for cursor.Next(ctx) {
		var m mongoOffload
		if err := cursor.Decode(&m); err != nil {
			return nil, fmt.Errorf("failed to decode offload record: %w", err)
		}
		recs = append(recs, types.OffloadRecord{
			OriginalID: m.OriginalID,
			SessionKey: m.SessionKey,
			FilePath:   m.FilePath,
			SizeBytes:  m.SizeBytes,
			CreatedAt:  m.CreatedAt,
		})
	}
	return recs, cursor.Err()
}

// Sessions lists session keys with persisted data in any collection.
func (s *MongoStore) Sessions(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	for _, coll := range []*mongo.Collection{s.nodes, s.offloads} {
		var keys []string
		if err := coll.Distinct(ctx, "session_key", bson.M{}).Decode(&keys); err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}

	cursor, err := s.topics.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list topic sessions: %w", err)
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var m mongoTopic
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		seen[m.SessionKey] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	return out, cursor.Err()
}

// ClearSession removes all data for a session.
func (s *MongoStore) ClearSession(ctx context.Context, sessionKey string) error {
	if _, err := s.nodes.DeleteMany(ctx, bson.M{"session_key": sessionKey}); err != nil {
		return err
	}
	if _, err := s.topics.DeleteOne(ctx, bson.M{"_id": sessionKey}); err != nil {
		return err
	}
	_, err := s.offloads.DeleteMany(ctx, bson.M{"session_key": sessionKey})
	return err
}

// Ping checks if the store is healthy.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
