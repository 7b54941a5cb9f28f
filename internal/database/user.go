package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// User represents an account in the database.
// The email is unique, the username is not.
type User struct {
	ID             uint      `gorm:"primaryKey"`
	Username       string    `gorm:"not null"`
	Email          string    `gorm:"uniqueIndex;not null"`
	HashedPassword string    `gorm:"not null"`
	ProfilePic     *string   // public path of the uploaded picture, nil until the first upload
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

// CreateUser inserts a new user. ID and CreatedAt are filled in on success.
// It returns ErrDuplicateEmail if the email is already taken.
func (c *Client) CreateUser(ctx context.Context, user *User) error {
	if err := c.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEmail
		}
		log.Error("failed to create user", "error", err)
		return err
	}
	return nil
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	if err := c.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get user by email", "error", err)
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) SetUserProfilePic(ctx context.Context, userID uint, path string) error {
	result := c.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("profile_pic", path)
	if result.Error != nil {
		log.Error("failed to update user profile picture", "error", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (c *Client) GetAllUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		log.Error("failed to get all users", "error", err)
		return nil, err
	}
	return users, nil
}
