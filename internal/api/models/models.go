package models

import (
	"mime/multipart"
	"time"
)

// SignupRequest is the body of POST /signup.
// Username and password must be present but may be empty.
type SignupRequest struct {
	Username *string `json:"username" binding:"required"`
	Email    string  `json:"email" binding:"required,email"`
	Password *string `json:"password" binding:"required"`
}

// LoginRequest is the body of POST /login.
// The email is not format checked, unknown addresses simply fail the login.
type LoginRequest struct {
	Email    *string `json:"email" binding:"required"`
	Password *string `json:"password" binding:"required"`
}

// EmailURI binds the {email} path parameter.
type EmailURI struct {
	Email string `uri:"email" binding:"required"`
}

// UploadRequest is the multipart body of POST /upload-profile-pic/{email}.
type UploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"`
}

// SignupResponse reports the outcome of a signup in-band.
type SignupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Message string `json:"message"`
	User    string `json:"user"`
}

// ProfileResponse is the public view of a user.
// ProfilePic is serialized as null until the first upload.
type ProfileResponse struct {
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	JoinedOn   time.Time `json:"joined_on"`
	ProfilePic *string   `json:"profile_pic"`
}

// UploadResponse is returned after a profile picture upload.
type UploadResponse struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

// ErrorResponse is the body of every non 2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
