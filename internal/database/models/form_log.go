package models

import "time"

// FormLog stores information about a published questionnaire.
type FormLog struct {
	UserID            int64     `bson:"user_id"`
	Username          string    `bson:"username,omitempty"`
	DestinationChatID int64     `bson:"destination_chat_id"`
	Answers           []string  `bson:"answers"`
	PublishedAt       time.Time `bson:"published_at"`
	// DeliveredToUser is set when publication to the destination chat failed
	// and the summary was delivered to the requester instead.
	DeliveredToUser bool `bson:"delivered_to_user"`
}
