package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string
type RideTag string

const (
	RideStatusAvailable   RideStatus = "Available"
	RideStatusFillingFast RideStatus = "Filling Fast"
	RideStatusFull        RideStatus = "Full"

	RideTagVacation RideTag = "Vacation"
	RideTagWork     RideTag = "Work"
	RideTagExams    RideTag = "Exams"
	RideTagAirport  RideTag = "Airport"
)

var RideTags = []RideTag{RideTagVacation, RideTagWork, RideTagExams, RideTagAirport}

func IsValidRideTag(tag string) bool {
	for _, t := range RideTags {
		if string(t) == tag {
			return true
		}
	}
	return false
}

type Ride struct {
	ID             primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Creator        primitive.ObjectID   `json:"creator" bson:"creator"`
	Source         Place                `json:"source" bson:"source"`
	Destination    Place                `json:"destination" bson:"destination"`
	RideDate       time.Time            `json:"ride_date" bson:"ride_date"`
	Tags           []RideTag            `json:"tags" bson:"tags"`
	Description    string               `json:"description" bson:"description"`
	NoteForJoiners string               `json:"note_for_joiners" bson:"note_for_joiners"`
	Cost           float64              `json:"cost" bson:"cost"`
	Members        []primitive.ObjectID `json:"members" bson:"members"`
	MaxMembers     int                  `json:"max_members" bson:"max_members"`
	Status         RideStatus           `json:"status" bson:"status"`
	CreatedAt      time.Time            `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at" bson:"updated_at"`
}

// StatusFor derives the occupancy label from the member count and capacity.
func StatusFor(members, maxMembers int) RideStatus {
	switch {
	case members >= maxMembers:
		return RideStatusFull
	case members == maxMembers-1:
		return RideStatusFillingFast
	default:
		return RideStatusAvailable
	}
}

func (r *Ride) IsCreator(userID primitive.ObjectID) bool {
	return r.Creator == userID
}

func (r *Ride) HasMember(userID primitive.ObjectID) bool {
	for _, id := range r.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// RideView is a ride with its creator and, optionally, its members resolved
// to public profiles.
type RideView struct {
	Ride
	CreatorProfile *UserSummary  `json:"creator_profile,omitempty"`
	MemberProfiles []UserSummary `json:"member_profiles,omitempty"`
	DistanceMeters *float64      `json:"distance_meters,omitempty"`
}

// RideUpdate enumerates the fields a creator may change on an existing ride.
// Nil fields are left untouched.
type RideUpdate struct {
	Source         *Place
	Destination    *Place
	RideDate       *time.Time
	Tags           []RideTag
	Description    *string
	NoteForJoiners *string
	Cost           *float64
	MaxMembers     *int
}

func (u *RideUpdate) IsEmpty() bool {
	return u.Source == nil && u.Destination == nil && u.RideDate == nil && u.Tags == nil &&
		u.Description == nil && u.NoteForJoiners == nil && u.Cost == nil && u.MaxMembers == nil
}

// RideFilter narrows listing queries.
type RideFilter struct {
	Tag      RideTag
	OnlyOpen bool
}
