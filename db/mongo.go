package db

import (
	"context"
	"fmt"
	"time"

	"pulse-monitor/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoClient struct {
	client   *mongo.Client
	database string
}

func NewMongoClient(uri, database string) (*MongoClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %s", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("error pinging MongoDB: %s", err)
	}

	return &MongoClient{client: client, database: database}, nil
}

func (m *MongoClient) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoClient) sessions() *mongo.Collection {
	return m.client.Database(m.database).Collection("sessions")
}

func (m *MongoClient) events() *mongo.Collection {
	return m.client.Database(m.database).Collection("arrhythmia_events")
}

// StoreSession stores a finished session summary
func (m *MongoClient) StoreSession(session *models.SessionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{"sessionId": session.SessionID}
	update := bson.M{"$set": bson.M{
		"sessionId":  session.SessionID,
		"startedAt":  session.StartedAt,
		"endedAt":    session.EndedAt,
		"avgBpm":     session.AvgBPM,
		"minBpm":     session.MinBPM,
		"maxBpm":     session.MaxBPM,
		"beatCount":  session.BeatCount,
		"eventCount": session.EventCount,
		"events":     string(session.Events),
	}}

	_, err := m.sessions().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error storing session: %s", err)
	}
	return nil
}

// GetRecentSessions retrieves the newest sessions, most recent first
func (m *MongoClient) GetRecentSessions(limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "startedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := m.sessions().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying sessions: %s", err)
	}
	defer cursor.Close(ctx)

	var sessions []models.SessionRecord
	for cursor.Next(ctx) {
		var doc struct {
			SessionID  string    `bson:"sessionId"`
			StartedAt  time.Time `bson:"startedAt"`
			EndedAt    time.Time `bson:"endedAt"`
			AvgBPM     float64   `bson:"avgBpm"`
			MinBPM     uint32    `bson:"minBpm"`
			MaxBPM     uint32    `bson:"maxBpm"`
			BeatCount  int       `bson:"beatCount"`
			EventCount int       `bson:"eventCount"`
			Events     string    `bson:"events"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding session: %s", err)
		}
		record := models.SessionRecord{
			SessionID:  doc.SessionID,
			StartedAt:  doc.StartedAt,
			EndedAt:    doc.EndedAt,
			AvgBPM:     doc.AvgBPM,
			MinBPM:     doc.MinBPM,
			MaxBPM:     doc.MaxBPM,
			BeatCount:  doc.BeatCount,
			EventCount: doc.EventCount,
		}
		if doc.Events != "" {
			record.Events = []byte(doc.Events)
		}
		sessions = append(sessions, record)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %s", err)
	}

	return sessions, nil
}

// StoreArrhythmiaEvent stores a classified rhythm event
func (m *MongoClient) StoreArrhythmiaEvent(event *models.ArrhythmiaRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := m.events().InsertOne(ctx, bson.M{
		"sessionId": event.SessionID,
		"type":      event.Type,
		"timestamp": event.Timestamp,
		"bpm":       event.BPM,
		"rrMs":      event.RRMs,
	})
	if err != nil {
		return fmt.Errorf("error storing arrhythmia event: %s", err)
	}
	return nil
}

// GetArrhythmiaEvents retrieves events, optionally filtered by session
func (m *MongoClient) GetArrhythmiaEvents(sessionID string, limit int) ([]models.ArrhythmiaRecord, error) {
	if limit <= 0 {
		limit = 200
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{}
	if sessionID != "" {
		filter["sessionId"] = sessionID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := m.events().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying arrhythmia events: %s", err)
	}
	defer cursor.Close(ctx)

	var events []models.ArrhythmiaRecord
	for cursor.Next(ctx) {
		var doc struct {
			SessionID string    `bson:"sessionId"`
			Type      string    `bson:"type"`
			Timestamp time.Time `bson:"timestamp"`
			BPM       float64   `bson:"bpm"`
			RRMs      float64   `bson:"rrMs"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding arrhythmia event: %s", err)
		}
		events = append(events, models.ArrhythmiaRecord{
			SessionID: doc.SessionID,
			Type:      doc.Type,
			Timestamp: doc.Timestamp,
			BPM:       doc.BPM,
			RRMs:      doc.RRMs,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating arrhythmia events: %s", err)
	}

	return events, nil
}
