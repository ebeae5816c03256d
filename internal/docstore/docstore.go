// Package docstore persists users in MongoDB, each document embedding the
// user's append-only score history.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/verte-zerg/swifttype/internal/model"
	"github.com/verte-zerg/swifttype/internal/store"
)

const (
	DefaultDatabase = "swifttype"
	usersCollection = "users"
	connectTimeout  = 10 * time.Second
)

type userDoc struct {
	ID           string     `bson:"_id"`
	Username     string     `bson:"username"`
	Email        string     `bson:"email"`
	PasswordHash string     `bson:"passwordHash"`
	CreatedAt    time.Time  `bson:"createdAt"`
	Scores       []scoreDoc `bson:"scores"`
}

type scoreDoc struct {
	ID        string    `bson:"id"`
	WPM       int       `bson:"wpm"`
	Accuracy  int       `bson:"accuracy"`
	Duration  int       `bson:"duration"`
	CreatedAt time.Time `bson:"timestamp"`
}

type entryDoc struct {
	Username  string    `bson:"username"`
	WPM       int       `bson:"wpm"`
	Accuracy  int       `bson:"accuracy"`
	Timestamp time.Time `bson:"timestamp"`
}

type recordDoc struct {
	ID        string    `bson:"id"`
	UserID    string    `bson:"userId"`
	Username  string    `bson:"username"`
	WPM       int       `bson:"wpm"`
	Accuracy  int       `bson:"accuracy"`
	Duration  int       `bson:"duration"`
	Timestamp time.Time `bson:"timestamp"`
}

// Store is the MongoDB-backed user and score repository.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	now    func() time.Time
}

// Open connects to uri, selects database and ensures indexes.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		database = DefaultDatabase
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	s := &Store{
		client: client,
		users:  client.Database(database).Collection(usersCollection),
		now:    time.Now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "scores.duration", Value: 1}, {Key: "scores.wpm", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks connectivity to the primary.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// CreateUser inserts a user document with an empty score history.
func (s *Store) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	_, err := s.users.InsertOne(ctx, userDoc{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		Scores:       []scoreDoc{},
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.User{}, fmt.Errorf("user %q: %w", user.Username, store.ErrDuplicate)
		}
		return model.User{}, err
	}
	return user, nil
}

// UserByID looks a user up by id.
func (s *Store) UserByID(ctx context.Context, id string) (model.User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id}})
}

// UserByUsername looks a user up by username.
func (s *Store) UserByUsername(ctx context.Context, username string) (model.User, error) {
	return s.findUser(ctx, bson.D{{Key: "username", Value: username}})
}

// UserByEmail looks a user up by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.findUser(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *Store) findUser(ctx context.Context, filter bson.D) (model.User, error) {
	var doc userDoc
	opts := options.FindOne().SetProjection(bson.D{{Key: "scores", Value: 0}})
	if err := s.users.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, err
	}
	return model.User{
		ID:           doc.ID,
		Username:     doc.Username,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt.UTC(),
	}, nil
}

// InsertScore pushes a score onto the owner's embedded history.
func (s *Store) InsertScore(ctx context.Context, score model.Score) (model.Score, error) {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	if score.CreatedAt.IsZero() {
		score.CreatedAt = s.now().UTC()
	}
	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: score.UserID}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "scores", Value: scoreDoc{
			ID:        score.ID,
			WPM:       score.WPM,
			Accuracy:  score.Accuracy,
			Duration:  score.Duration,
			CreatedAt: score.CreatedAt,
		}}}}},
	)
	if err != nil {
		return model.Score{}, err
	}
	if res.MatchedCount == 0 {
		return model.Score{}, fmt.Errorf("user %q: %w", score.UserID, store.ErrNotFound)
	}
	return score, nil
}

// TopScores returns the highest-wpm scores of a duration bucket.
func (s *Store) TopScores(ctx context.Context, duration, limit int) ([]model.LeaderboardEntry, error) {
	var docs []entryDoc
	if err := s.aggregate(ctx, topScoresPipeline(duration, limit), &docs); err != nil {
		return nil, err
	}
	entries := make([]model.LeaderboardEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, toEntry(d))
	}
	return entries, nil
}

// BestScore returns the user's best score in a bucket, or nil.
func (s *Store) BestScore(ctx context.Context, userID string, duration int) (*model.LeaderboardEntry, error) {
	var docs []entryDoc
	if err := s.aggregate(ctx, bestScorePipeline(userID, duration), &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	entry := toEntry(docs[0])
	return &entry, nil
}

// ListScores flattens embedded histories into score records.
func (s *Store) ListScores(ctx context.Context, filter model.ScoreFilter) ([]model.ScoreRecord, error) {
	var docs []recordDoc
	if err := s.aggregate(ctx, listScoresPipeline(filter), &docs); err != nil {
		return nil, err
	}
	records := make([]model.ScoreRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, model.ScoreRecord{
			Score: model.Score{
				ID:        d.ID,
				UserID:    d.UserID,
				WPM:       d.WPM,
				Accuracy:  d.Accuracy,
				Duration:  d.Duration,
				CreatedAt: d.Timestamp.UTC(),
			},
			Username: d.Username,
		})
	}
	return records, nil
}

func (s *Store) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cursor, err := s.users.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cursor.Close(ctx); cerr != nil {
			// Best-effort cursor close.
			_ = cerr
		}
	}()
	return cursor.All(ctx, out)
}

func toEntry(d entryDoc) model.LeaderboardEntry {
	return model.LeaderboardEntry{
		Username:  d.Username,
		WPM:       d.WPM,
		Accuracy:  d.Accuracy,
		Timestamp: d.Timestamp.UTC(),
	}
}

// rankSort orders by wpm desc, then earliest submission, then id.
var rankSort = bson.D{
	{Key: "$sort", Value: bson.D{
		{Key: "scores.wpm", Value: -1},
		{Key: "scores.timestamp", Value: 1},
		{Key: "scores.id", Value: 1},
	}},
}

var entryProjection = bson.D{
	{Key: "$project", Value: bson.D{
		{Key: "_id", Value: 0},
		{Key: "username", Value: 1},
		{Key: "wpm", Value: "$scores.wpm"},
		{Key: "accuracy", Value: "$scores.accuracy"},
		{Key: "timestamp", Value: "$scores.timestamp"},
	}},
}

func topScoresPipeline(duration, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$unwind", Value: "$scores"}},
		{{Key: "$match", Value: bson.D{{Key: "scores.duration", Value: duration}}}},
		rankSort,
		{{Key: "$limit", Value: int64(limit)}},
		entryProjection,
	}
}

func bestScorePipeline(userID string, duration int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "_id", Value: userID}}}},
		{{Key: "$unwind", Value: "$scores"}},
		{{Key: "$match", Value: bson.D{{Key: "scores.duration", Value: duration}}}},
		rankSort,
		{{Key: "$limit", Value: int64(1)}},
		entryProjection,
	}
}

func listScoresPipeline(filter model.ScoreFilter) mongo.Pipeline {
	var pipeline mongo.Pipeline
	if filter.UserID != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.D{{Key: "_id", Value: filter.UserID}}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$unwind", Value: "$scores"}})

	match := bson.D{}
	if filter.Duration > 0 {
		match = append(match, bson.E{Key: "scores.duration", Value: filter.Duration})
	}
	if filter.Since != nil {
		match = append(match, bson.E{Key: "scores.timestamp", Value: bson.D{{Key: "$gte", Value: *filter.Since}}})
	}
	if len(match) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}

	order := -1
	if filter.Ascending {
		order = 1
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "scores.timestamp", Value: order},
			{Key: "scores.id", Value: order},
		}}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "id", Value: "$scores.id"},
			{Key: "userId", Value: "$_id"},
			{Key: "username", Value: 1},
			{Key: "wpm", Value: "$scores.wpm"},
			{Key: "accuracy", Value: "$scores.accuracy"},
			{Key: "duration", Value: "$scores.duration"},
			{Key: "timestamp", Value: "$scores.timestamp"},
		}}},
	)
	return pipeline
}
