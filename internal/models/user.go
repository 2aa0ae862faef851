package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID           primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Name         string               `json:"name" bson:"name"`
	Email        string               `json:"email" bson:"email"`
	Phone        string               `json:"phone" bson:"phone"`
	PasswordHash string               `json:"-" bson:"password_hash"`
	CreatedRides []primitive.ObjectID `json:"created_rides" bson:"created_rides"`
	JoinedRides  []primitive.ObjectID `json:"joined_rides" bson:"joined_rides"`
	CreatedAt    time.Time            `json:"created_at" bson:"created_at"`
}

// UserSummary is the public projection of a user embedded in ride views.
type UserSummary struct {
	ID    primitive.ObjectID `json:"id" bson:"_id"`
	Name  string             `json:"name" bson:"name"`
	Email string             `json:"email" bson:"email"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

