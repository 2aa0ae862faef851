package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		members, capacity int
		want              RideStatus
	}{
		{0, 3, RideStatusAvailable},
		{1, 3, RideStatusAvailable},
		{2, 3, RideStatusFillingFast},
		{3, 3, RideStatusFull},
		{0, 1, RideStatusFillingFast},
		{1, 1, RideStatusFull},
		{4, 3, RideStatusFull},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.members, tt.capacity), "%d/%d", tt.members, tt.capacity)
	}
}

func TestRideMembership(t *testing.T) {
	creator := primitive.NewObjectID()
	member := primitive.NewObjectID()
	ride := &Ride{Creator: creator, Members: []primitive.ObjectID{member}, MaxMembers: 3}

	assert.True(t, ride.IsCreator(creator))
	assert.False(t, ride.IsCreator(member))
	assert.True(t, ride.HasMember(member))
	assert.False(t, ride.HasMember(creator))
}

func TestPlaceCoordinates(t *testing.T) {
	p := NewPlace("Airport", 40.64, -73.78)
	assert.Equal(t, "Point", p.Type)
	assert.Equal(t, []float64{-73.78, 40.64}, p.Coordinates)
	assert.Equal(t, 40.64, p.Latitude())
	assert.Equal(t, -73.78, p.Longitude())

	assert.Zero(t, Place{}.Latitude())
	assert.True(t, IsValidRideTag("Exams"))
	assert.False(t, IsValidRideTag("exams"))
}

func TestRideUpdateIsEmpty(t *testing.T) {
	assert.True(t, (&RideUpdate{}).IsEmpty())
	cost := 0.0
	assert.False(t, (&RideUpdate{Cost: &cost}).IsEmpty())
	assert.False(t, (&RideUpdate{Tags: []RideTag{}}).IsEmpty())
}
