package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stark-secure/starkmole-integrity/models"
)

// ConnectMongoDB opens and pings a MongoDB client.
func ConnectMongoDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// MongoAnomalyStore keeps the anomaly log in a MongoDB collection. The log
// only ever grows; Update touches the resolution fields of one document.
type MongoAnomalyStore struct {
	collection *mongo.Collection
}

func NewMongoAnomalyStore(client *mongo.Client, database string) *MongoAnomalyStore {
	return &MongoAnomalyStore{collection: client.Database(database).Collection("session_anomalies")}
}

func (m *MongoAnomalyStore) Append(ctx context.Context, anomaly *models.SessionAnomalyLog) error {
	_, err := m.collection.InsertOne(ctx, anomaly)
	return err
}

func (m *MongoAnomalyStore) Get(ctx context.Context, id string) (*models.SessionAnomalyLog, error) {
	var anomaly models.SessionAnomalyLog
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&anomaly)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &anomaly, nil
}

func (m *MongoAnomalyStore) Update(ctx context.Context, anomaly *models.SessionAnomalyLog) error {
	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": anomaly.ID}, bson.M{"$set": bson.M{
		"resolved":       anomaly.Resolved,
		"moderatorNotes": anomaly.ModeratorNotes,
	}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoAnomalyStore) List(ctx context.Context, sessionID, userID string) ([]*models.SessionAnomalyLog, error) {
	filter := bson.M{}
	if sessionID != "" {
		filter["sessionId"] = sessionID
	}
	if userID != "" {
		filter["userId"] = userID
	}

	opts := options.Find().SetSort(bson.D{{Key: "detectedAt", Value: -1}})
	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var anomalies []*models.SessionAnomalyLog
	if err := cursor.All(ctx, &anomalies); err != nil {
		return nil, err
	}
	return anomalies, nil
}
