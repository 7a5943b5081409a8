// Package users serves the authenticated caller's own account: profile,
// avatar and access history.
package users

import (
	"github.com/user/accountd/models"
)

// UpdateProfileRequest is the body of PATCH /me. Omitted or null fields are
// left unchanged. Email and password cannot be changed here.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty" validate:"omitnil,min=1,max=100" example:"Grace"`
	LastName  *string `json:"lastName,omitempty" validate:"omitnil,min=1,max=100" example:"Hopper"`
	BirthDate *string `json:"birthDate,omitempty" validate:"omitnil,datetime=2006-01-02,pastdate" example:"1906-12-09"`
}

// AccessHistoryResponse is the body of GET /me/access-history.
type AccessHistoryResponse struct {
	Items []models.AccessLogEntry `json:"items"`
}
