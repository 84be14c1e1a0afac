package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"vkform-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLogger implements the logger interfaces using MongoDB.
// It handles logging user actions, published questionnaires, and updating user info.
type MongoLogger struct {
	db *mongo.Database
}

// NewMongoLogger creates and returns a new MongoLogger instance.
// It requires a connected MongoDB database instance.
func NewMongoLogger(db *mongo.Database) *MongoLogger {
	return &MongoLogger{db: db}
}

// LogUserAction writes a user action log entry to the database.
// It records the user ID, action type, additional details, and timestamp.
func (m *MongoLogger) LogUserAction(userID int64, action string, details interface{}) error {
	collection := m.db.Collection("user_actions")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := collection.InsertOne(ctx, map[string]interface{}{
		"user_id": userID,
		"action":  action,
		"details": details,
		"time":    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert user action log for user %d: %w", userID, err)
	}
	return nil
}

// LogPublishedForm writes a log entry for a published questionnaire to the database.
// If the database insertion fails, it logs an error with context and returns the error.
func (m *MongoLogger) LogPublishedForm(logEntry models.FormLog) error {
	collection := m.db.Collection("form_logs")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := collection.InsertOne(ctx, logEntry)
	if err != nil {
		wrappedErr := fmt.Errorf("failed to insert form log into collection '%s': %w", "form_logs", err)
		log.Printf("%v", wrappedErr)
		return wrappedErr
	}
	return nil
}

// UpdateUser updates or inserts user information in the database.
// It sets user details, timestamps, action counts, and uses upsert to create
// the user if they don't exist.
func (m *MongoLogger) UpdateUser(ctx context.Context, userID int64, username, firstName, lastName string, action string) error {
	collection := m.db.Collection("users")

	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"username":    username,
			"first_name":  firstName,
			"last_name":   lastName,
			"last_seen":   now,
			"last_action": action,
		},
		"$inc": bson.M{
			"actions_count": 1,
		},
		"$setOnInsert": bson.M{
			"first_seen": now,
			"user_id":    userID,
		},
	}

	_, err := collection.UpdateOne(
		ctx,
		bson.M{"user_id": userID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", userID, err)
	}
	return nil
}
