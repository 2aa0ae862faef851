package validators

type CreateRideRequest struct {
	SourceText      string   `json:"source_text" validate:"required,max=200"`
	DestinationText string   `json:"destination_text" validate:"required,max=200"`
	Tags            []string `json:"tags" validate:"omitempty,max=4,dive,ride_tag"`
	RideDate        string   `json:"ride_date" validate:"required"`
	Description     string   `json:"description" validate:"max=1000"`
	NoteForJoiners  string   `json:"note_for_joiners" validate:"max=500"`
	Cost            float64  `json:"cost" validate:"min=0"`
	MaxMembers      int      `json:"max_members" validate:"required,min=1"`
}

type PlaceUpdate struct {
	Name string `json:"name" validate:"max=200"`
}

// RideUpdates lists the editable fields; pointers distinguish absent from
// zero values.
type RideUpdates struct {
	Source         *PlaceUpdate `json:"source"`
	Destination    *PlaceUpdate `json:"destination"`
	RideDate       *string      `json:"ride_date"`
	Tags           []string     `json:"tags" validate:"omitempty,max=4,dive,ride_tag"`
	Description    *string      `json:"description" validate:"omitempty,max=1000"`
	NoteForJoiners *string      `json:"note_for_joiners" validate:"omitempty,max=500"`
	Cost           *float64     `json:"cost" validate:"omitempty,min=0"`
	MaxMembers     *int         `json:"max_members" validate:"omitempty,min=1"`
}

type EditRideRequest struct {
	RideID  string      `json:"ride_id" validate:"required,object_id"`
	Updates RideUpdates `json:"updates"`
}

type RideActionRequest struct {
	RideID string `json:"ride_id" validate:"required,object_id"`
}

type RemoveMemberRequest struct {
	RideID         string `json:"ride_id" validate:"required,object_id"`
	UserIDToRemove string `json:"user_id_to_remove" validate:"required,object_id"`
}

func ValidateCreateRide(req *CreateRideRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateEditRide(req *EditRideRequest) ValidationErrors {
	return ValidateStruct(req)
}
