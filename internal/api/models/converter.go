package models

import "github.com/jon4hz/profilehub/internal/account"

// ToProfileResponse converts an account.Profile to its response shape.
func ToProfileResponse(p *account.Profile) ProfileResponse {
	return ProfileResponse{
		Username:   p.Username,
		Email:      p.Email,
		JoinedOn:   p.JoinedOn,
		ProfilePic: p.ProfilePic,
	}
}
