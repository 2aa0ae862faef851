package utils

import "time"

// Application Constants
const (
	AppName = "PoolMate"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Authentication
	PhoneDigits      = 10
	MaxPasswordBytes = 72 // bcrypt limit

	// Rides
	DefaultSearchRadiusMeters = 10000.0
	MaxSearchRadiusMeters     = 500000.0
	RideCacheTTL              = 5 * time.Minute
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidCredentials = "Invalid email or password"
	ErrInternalServer     = "internal server error"
	ErrUnauthorized       = "unauthorized"
	ErrValidationFailed   = "validation failed"
)

// Cache Keys
const (
	CacheRidePrefix      = "ride:"
	CacheRateLimitPrefix = "rate_limit:"
)

// Event Types
const (
	EventUserRegistered = "user_registered"
	EventUserLogin      = "user_login"
	EventRideCreated    = "ride_created"
	EventRideUpdated    = "ride_updated"
	EventRideDeleted    = "ride_deleted"
	EventMemberJoined   = "member_joined"
	EventMemberLeft     = "member_left"
	EventMemberRemoved  = "member_removed"
)
