package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"askmom/internal/core"
)

// MongoStore implements core.ConversationStore on MongoDB collections.
type MongoStore struct {
	client        *mongo.Client
	conversations *mongo.Collection
	turns         *mongo.Collection
	artifacts     *mongo.Collection
}

type mongoConversation struct {
	ID            string    `bson:"_id"`
	UserID        string    `bson:"user_id"`
	Title         string    `bson:"title,omitempty"`
	Status        string    `bson:"status"`
	RiskLevel     string    `bson:"risk_level"`
	LastMessageAt time.Time `bson:"last_message_at"`
	CreatedAt     time.Time `bson:"created_at"`
}

type mongoTurn struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversation_id"`
	Role           string    `bson:"role"`
	Text           string    `bson:"text"`
	RiskLevel      string    `bson:"risk_level"`
	CreatedAt      time.Time `bson:"created_at"`
}

type mongoArtifact struct {
	ID              string    `bson:"_id"`
	ConversationID  string    `bson:"conversation_id"`
	TurnID          string    `bson:"turn_id,omitempty"`
	Reasons         []string  `bson:"reasons"`
	RedactedContent string    `bson:"redacted_content"`
	Fingerprint     int64     `bson:"fingerprint"`
	CreatedAt       time.Time `bson:"created_at"`
}

// NewMongoDB connects to MongoDB and ensures indexes exist.
func NewMongoDB(ctx context.Context, cfg MongoDBConfig) (*MongoStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("MongoDB URL is required")
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = "askmom"
	}

	clientOpts := options.Client().ApplyURI(cfg.URL)
	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:        client,
		conversations: db.Collection("conversations"),
		turns:         db.Collection("turns"),
		artifacts:     db.Collection("blocked_artifacts"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "last_message_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create conversation index: %w", err)
	}
	_, err = s.turns.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create turn index: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateConversation(ctx context.Context, conv *core.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	doc := mongoConversation{
		ID:            conv.ID,
		UserID:        conv.UserID,
		Title:         conv.Title,
		Status:        conv.Status,
		RiskLevel:     string(conv.RiskLevel),
		LastMessageAt: conv.LastMessageAt.UTC(),
		CreatedAt:     conv.CreatedAt.UTC(),
	}
	if _, err := s.conversations.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (s *MongoStore) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	var doc mongoConversation
	err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, core.NewNotFoundError("conversation not found: " + id)
		}
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	return docToConversation(doc), nil
}

func (s *MongoStore) ListConversations(ctx context.Context, userID, query string, limit int) ([]core.Conversation, error) {
	limit = clampListLimit(limit)

	filter := bson.M{"user_id": userID}
	if q := strings.TrimSpace(query); q != "" {
		// Collect conversation IDs whose turns mention the query text.
		result := s.turns.Distinct(ctx, "conversation_id", bson.M{
			"text": bson.M{"$regex": regexQuote(q), "$options": "i"},
		})
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to search turns: %w", err)
		}
		var ids []string
		if err := result.Decode(&ids); err != nil {
			return nil, fmt.Errorf("failed to decode search results: %w", err)
		}
		if len(ids) == 0 {
			return nil, nil
		}
		filter["_id"] = bson.M{"$in": ids}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "last_message_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoConversation
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}

	out := make([]core.Conversation, 0, len(docs))
	for _, doc := range docs {
		out = append(out, *docToConversation(doc))
	}
	return out, nil
}

func (s *MongoStore) AppendTurn(ctx context.Context, turn *core.Turn) (string, error) {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	doc := mongoTurn{
		ID:             turn.ID,
		ConversationID: turn.ConversationID,
		Role:           string(turn.Role),
		Text:           turn.Text,
		RiskLevel:      string(turn.RiskLevel),
		CreatedAt:      turn.CreatedAt.UTC(),
	}
	if _, err := s.turns.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to insert turn: %w", err)
	}
	return turn.ID, nil
}

func (s *MongoStore) RecentTurns(ctx context.Context, conversationID string, filter core.TurnFilter) ([]core.Turn, error) {
	limit := clampTurnsLimit(filter.Limit)

	query := bson.M{"conversation_id": conversationID}
	if filter.Role != "" {
		query["role"] = string(filter.Role)
	}
	if !filter.Since.IsZero() {
		query["created_at"] = bson.M{"$gte": filter.Since.UTC()}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.turns.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoTurn
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode turns: %w", err)
	}

	out := make([]core.Turn, 0, len(docs))
	for _, doc := range docs {
		out = append(out, core.Turn{
			ID:             doc.ID,
			ConversationID: doc.ConversationID,
			Role:           core.Role(doc.Role),
			Text:           doc.Text,
			RiskLevel:      core.RiskLevel(doc.RiskLevel),
			CreatedAt:      doc.CreatedAt,
		})
	}

	reverseTurns(out)
	return out, nil
}

func (s *MongoStore) UpdateConversationSummary(ctx context.Context, conv *core.Conversation) error {
	set := bson.M{"last_message_at": conv.LastMessageAt.UTC()}
	if conv.Title != "" {
		set["title"] = conv.Title
	}
	if conv.Status != "" {
		set["status"] = conv.Status
	}
	if conv.RiskLevel != "" {
		set["risk_level"] = string(conv.RiskLevel)
	}

	res, err := s.conversations.UpdateOne(ctx, bson.M{"_id": conv.ID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if res.MatchedCount == 0 {
		return core.NewNotFoundError("conversation not found: " + conv.ID)
	}
	return nil
}

func (s *MongoStore) RecordRedaction(ctx context.Context, artifact *core.BlockedArtifact) error {
	if artifact.ID == "" {
		artifact.ID = uuid.New().String()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	reasons := make([]string, len(artifact.Reasons))
	for i, r := range artifact.Reasons {
		reasons[i] = string(r)
	}
	doc := mongoArtifact{
		ID:              artifact.ID,
		ConversationID:  artifact.ConversationID,
		TurnID:          artifact.TurnID,
		Reasons:         reasons,
		RedactedContent: artifact.RedactedContent,
		Fingerprint:     int64(artifact.Fingerprint),
		CreatedAt:       artifact.CreatedAt.UTC(),
	}
	if _, err := s.artifacts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert blocked artifact: %w", err)
	}
	return nil
}

func (s *MongoStore) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	cursor, err := s.conversations.Find(ctx, bson.M{
		"status":          core.StatusClosed,
		"last_message_at": bson.M{"$lt": olderThan.UTC()},
	}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, fmt.Errorf("failed to find expired conversations: %w", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, fmt.Errorf("failed to decode expired conversations: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}

	res, err := s.conversations.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete conversations: %w", err)
	}
	if _, err := s.turns.DeleteMany(ctx, bson.M{"conversation_id": bson.M{"$in": ids}}); err != nil {
		return res.DeletedCount, fmt.Errorf("failed to delete turns: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Close() error {
	if s.client != nil {
		return s.client.Disconnect(context.Background())
	}
	return nil
}

func docToConversation(doc mongoConversation) *core.Conversation {
	return &core.Conversation{
		ID:            doc.ID,
		UserID:        doc.UserID,
		Title:         doc.Title,
		Status:        doc.Status,
		RiskLevel:     core.RiskLevel(doc.RiskLevel),
		LastMessageAt: doc.LastMessageAt,
		CreatedAt:     doc.CreatedAt,
	}
}

// regexQuote escapes regex metacharacters in user-supplied search strings.
func regexQuote(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
