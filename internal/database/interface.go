package database

import "context"

// DB defines the interface for database operations.
type DB interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	SetUserProfilePic(ctx context.Context, userID uint, path string) error
	GetAllUsers(ctx context.Context) ([]User, error)

	// Utility
	Ping(ctx context.Context) error
	Close() error
}
