package validators

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestValidateUserRegistration(t *testing.T) {
	valid := RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "password1", Phone: "1234567890"}
	assert.Empty(t, ValidateUserRegistration(&valid, true, 8))

	tests := []struct {
		name         string
		req          RegisterRequest
		enforcePhone bool
		field        string
	}{
		{"missing name", RegisterRequest{Email: "ann@example.com", Password: "password1"}, true, "name"},
		{"bad email", RegisterRequest{Name: "Ann", Email: "ann", Password: "password1"}, true, "email"},
		{"short password", RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "pw"}, true, "password"},
		{"password over 72 bytes", RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: strings.Repeat("a", 73)}, true, "password"},
		{"short phone", RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "password1", Phone: "12345"}, true, "phone"},
		{"letters in phone", RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "password1", Phone: "12345abcde"}, true, "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateUserRegistration(&tt.req, tt.enforcePhone, 8)
			require.NotEmpty(t, errs)
			assert.Contains(t, errs.Details(), tt.field)
		})
	}

	relaxed := RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "password1", Phone: "12345"}
	assert.Empty(t, ValidateUserRegistration(&relaxed, false, 8))
}

func TestValidateCreateRide(t *testing.T) {
	req := CreateRideRequest{
		SourceText:      "Downtown",
		DestinationText: "Airport",
		Tags:            []string{"Airport", "Work"},
		RideDate:        "2025-06-01T09:30",
		MaxMembers:      3,
	}
	assert.Empty(t, ValidateCreateRide(&req))

	req.Tags = []string{"Party"}
	req.Cost = -1
	req.MaxMembers = 0
	details := ValidateCreateRide(&req).Details()
	assert.Contains(t, details, "tags[0]")
	assert.Contains(t, details, "cost")
	assert.Contains(t, details, "max_members")
}

func TestValidateEditRide(t *testing.T) {
	id := primitive.NewObjectID().Hex()
	zero := 0
	negative := -2.0

	assert.Empty(t, ValidateEditRide(&EditRideRequest{RideID: id}))

	details := ValidateEditRide(&EditRideRequest{
		RideID: "nope",
		Updates: RideUpdates{
			MaxMembers: &zero,
			Cost:       &negative,
			Tags:       []string{"Vacation", "Beach"},
		},
	}).Details()

	assert.Equal(t, "Invalid ID format", details["ride_id"])
	assert.Contains(t, details, "updates.max_members")
	assert.Contains(t, details, "updates.cost")
	assert.Contains(t, details, "updates.tags[1]")
}

func TestRemoveMemberRequest(t *testing.T) {
	errs := ValidateStruct(&RemoveMemberRequest{RideID: primitive.NewObjectID().Hex()})
	require.Len(t, errs, 1)
	assert.Equal(t, "user_id_to_remove", errs[0].Field)
	assert.Equal(t, "required", errs[0].Tag)
}
