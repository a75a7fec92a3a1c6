package services

import (
	"context"
	"fmt"
	"time"

	"go-gatewatch/internal/detector/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ArchivedSession is a closed session as persisted to MongoDB.
type ArchivedSession struct {
	models.CrewSnapshot `bson:",inline"`

	// Derived at archive time for analytics queries.
	DurationSeconds int `bson:"duration_seconds" json:"duration_seconds"`
	DayOfWeek       int `bson:"day_of_week" json:"day_of_week"`
	HourOfDay       int `bson:"hour_of_day" json:"hour_of_day"`

	NextSessionID string    `bson:"next_session_id,omitempty" json:"next_session_id,omitempty"`
	ArchivedAt    time.Time `bson:"archived_at" json:"archived_at"`
}

// Repository handles MongoDB persistence for closed sessions and per-player
// activity rollups.
type Repository struct {
	db                 *mongo.Database
	sessionsCollection *mongo.Collection
	playersCollection  *mongo.Collection
}

// NewRepository creates a new repository instance.
func NewRepository(db *mongo.Database) *Repository {
	return &Repository{
		db:                 db,
		sessionsCollection: db.Collection("activity_sessions"),
		playersCollection:  db.Collection("player_activity"),
	}
}

// CreateIndexes creates the necessary database indexes.
func (r *Repository) CreateIndexes(ctx context.Context) error {
	sessionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "classification", Value: 1}, {Key: "last_activity", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "last_system.id", Value: 1}, {Key: "last_activity", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "total_value", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "max_probability", Value: -1}},
		},
		// Sessions age out after 90 days
		{
			Keys:    bson.D{{Key: "archived_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60),
		},
	}

	if _, err := r.sessionsCollection.Indexes().CreateMany(ctx, sessionIndexes); err != nil {
		return fmt.Errorf("failed to create activity_sessions indexes: %w", err)
	}

	playerIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "character_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "last_seen", Value: -1}},
		},
	}

	if _, err := r.playersCollection.Indexes().CreateMany(ctx, playerIndexes); err != nil {
		return fmt.Errorf("failed to create player_activity indexes: %w", err)
	}

	return nil
}

// SaveSession persists a closed session. If the session descends from an
// earlier one, the ancestor's lineage pointer is updated.
func (r *Repository) SaveSession(ctx context.Context, snap *models.CrewSnapshot) error {
	start := snap.StartTime.UTC()
	doc := &ArchivedSession{
		CrewSnapshot:    *snap,
		DurationSeconds: int(snap.LastActivity.Sub(snap.StartTime).Seconds()),
		DayOfWeek:       int(start.Weekday()),
		HourOfDay:       start.Hour(),
		ArchivedAt:      time.Now(),
	}

	filter := bson.M{"session_id": snap.ID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	if _, err := r.sessionsCollection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save session %s: %w", snap.ID, err)
	}

	if snap.PrevSessionID != "" {
		_, err := r.sessionsCollection.UpdateOne(ctx,
			bson.M{"session_id": snap.PrevSessionID},
			bson.M{"$set": bson.M{"next_session_id": snap.ID}},
		)
		if err != nil {
			return fmt.Errorf("failed to link session lineage %s -> %s: %w", snap.PrevSessionID, snap.ID, err)
		}
	}

	return r.updatePlayerActivity(ctx, snap)
}

// updatePlayerActivity rolls session participation into per-player counters.
func (r *Repository) updatePlayerActivity(ctx context.Context, snap *models.CrewSnapshot) error {
	if len(snap.MemberIDs) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(snap.MemberIDs))
	for _, charID := range snap.MemberIDs {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"character_id": charID}).
			SetUpdate(bson.M{
				"$inc": bson.M{
					"sessions": 1,
					fmt.Sprintf("classifications.%s", snap.Classification): 1,
				},
				"$max": bson.M{"last_seen": snap.LastActivity},
				"$min": bson.M{"first_seen": snap.StartTime},
			}).
			SetUpsert(true))
	}

	if _, err := r.playersCollection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to update player activity: %w", err)
	}
	return nil
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	Classification string
	SystemID       int64
	MinProbability int
	Since          time.Time
	Limit          int64
	Offset         int64
}

// ListSessions returns archived sessions matching the filter, newest first.
func (r *Repository) ListSessions(ctx context.Context, filter SessionFilter) ([]*ArchivedSession, error) {
	query := bson.M{}
	if filter.Classification != "" {
		query["classification"] = filter.Classification
	}
	if filter.SystemID != 0 {
		query["last_system.id"] = filter.SystemID
	}
	if filter.MinProbability > 0 {
		query["max_probability"] = bson.M{"$gte": filter.MinProbability}
	}
	if !filter.Since.IsZero() {
		query["last_activity"] = bson.M{"$gte": filter.Since}
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "last_activity", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := r.sessionsCollection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*ArchivedSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns a single archived session by ID.
func (r *Repository) GetSession(ctx context.Context, sessionID string) (*ArchivedSession, error) {
	var session ArchivedSession
	err := r.sessionsCollection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return &session, nil
}

// SessionChain walks the lineage pointers forward and backward from the
// given session, oldest first.
func (r *Repository) SessionChain(ctx context.Context, sessionID string) ([]*ArchivedSession, error) {
	start, err := r.GetSession(ctx, sessionID)
	if err != nil || start == nil {
		return nil, err
	}

	chain := []*ArchivedSession{start}

	// Walk backward
	for prev := start.PrevSessionID; prev != ""; {
		s, err := r.GetSession(ctx, prev)
		if err != nil {
			return nil, err
		}
		if s == nil {
			break
		}
		chain = append([]*ArchivedSession{s}, chain...)
		prev = s.PrevSessionID
	}

	// Walk forward
	for next := start.NextSessionID; next != ""; {
		s, err := r.GetSession(ctx, next)
		if err != nil {
			return nil, err
		}
		if s == nil {
			break
		}
		chain = append(chain, s)
		next = s.NextSessionID
	}

	return chain, nil
}

// ClassificationCount is one row of the summary aggregation.
type ClassificationCount struct {
	Classification string  `bson:"_id" json:"classification"`
	Sessions       int64   `bson:"sessions" json:"sessions"`
	Kills          int64   `bson:"kills" json:"kills"`
	TotalValue     float64 `bson:"total_value" json:"total_value"`
}

// StatsSummary aggregates archived sessions since the given time, grouped by
// classification.
func (r *Repository) StatsSummary(ctx context.Context, since time.Time) ([]ClassificationCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"last_activity": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$classification",
			"sessions":    bson.M{"$sum": 1},
			"kills":       bson.M{"$sum": "$kill_count"},
			"total_value": bson.M{"$sum": "$total_value"},
		}}},
		{{Key: "$sort", Value: bson.M{"sessions": -1}}},
	}

	cursor, err := r.sessionsCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []ClassificationCount
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	return rows, nil
}

// RegionActivityRow is one row of the per-region aggregation.
type RegionActivityRow struct {
	Region     string  `bson:"_id" json:"region"`
	Sessions   int64   `bson:"sessions" json:"sessions"`
	Kills      int64   `bson:"kills" json:"kills"`
	TotalValue float64 `bson:"total_value" json:"total_value"`
}

// RegionActivity aggregates archived sessions by the region they ended in.
func (r *Repository) RegionActivity(ctx context.Context, since time.Time, limit int64) ([]RegionActivityRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"last_activity":      bson.M{"$gte": since},
			"last_system.region": bson.M{"$ne": ""},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$last_system.region",
			"sessions":    bson.M{"$sum": 1},
			"kills":       bson.M{"$sum": "$kill_count"},
			"total_value": bson.M{"$sum": "$total_value"},
		}}},
		{{Key: "$sort", Value: bson.M{"kills": -1}}},
		{{Key: "$limit", Value: limit}},
	}

	cursor, err := r.sessionsCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate region activity: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []RegionActivityRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode region activity: %w", err)
	}
	return rows, nil
}

// DeleteStaleSessions removes sessions older than the cutoff. The TTL index
// is the primary cleanup path; this supports the manual maintenance sweep.
func (r *Repository) DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.sessionsCollection.DeleteMany(ctx, bson.M{"archived_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale sessions: %w", err)
	}
	return res.DeletedCount, nil
}
