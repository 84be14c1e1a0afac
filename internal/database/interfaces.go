package database

import (
	"context"

	"vkform-bot/internal/database/models"
)

// FormLogger defines the interface for logging published questionnaires.
type FormLogger interface {
	// LogPublishedForm logs information about a questionnaire delivered to its destination.
	LogPublishedForm(log models.FormLog) error
}

// UserActionLogger defines the interface for logging user actions.
type UserActionLogger interface {
	// LogUserAction logs an action performed by a user.
	LogUserAction(userID int64, action string, details interface{}) error
}

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// UpdateUser updates or creates a user record in the database.
	UpdateUser(ctx context.Context, userID int64, username, firstName, lastName string, action string) error
}
