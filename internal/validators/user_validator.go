package validators

import (
	"strings"

	"poolmate/internal/utils"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ValidateUserRegistration checks the request shape. The ten digit phone
// rule only applies when enforcePhone is set.
func ValidateUserRegistration(req *RegisterRequest, enforcePhone bool, minPassword int) ValidationErrors {
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	errors := ValidateStruct(req)

	if req.Password != "" && len(req.Password) < minPassword {
		errors = append(errors, ValidationError{
			Field:   "password",
			Tag:     "min",
			Message: "Password is too short",
		})
	}
	if len(req.Password) > utils.MaxPasswordBytes {
		errors = append(errors, ValidationError{
			Field:   "password",
			Tag:     "max",
			Message: "Password must be at most 72 bytes",
		})
	}

	if enforcePhone && req.Phone != "" {
		if err := validate.Var(req.Phone, "ten_digit_phone"); err != nil {
			errors = append(errors, ValidationError{
				Field:   "phone",
				Tag:     "ten_digit_phone",
				Value:   req.Phone,
				Message: "Phone number must be 10 digits",
			})
		}
	}

	return errors
}

func ValidateLogin(req *LoginRequest) ValidationErrors {
	req.Email = strings.TrimSpace(req.Email)
	return ValidateStruct(req)
}
