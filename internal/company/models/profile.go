package models

import "github.com/google/uuid"

// MaxQnA caps the number of catalog questions a company may answer.
const MaxQnA = 5

// Profile is the edited representation of a company submitted by its
// founder: the scalar fields plus the collections the edit form maintains.
// Metrics and news are managed elsewhere and are not part of it.
type Profile struct {
	Company    CompanyFields `json:"company"`
	Executives []Executive   `json:"executives" validate:"required,min=1,dive"`
	QnA        []QnA         `json:"qna" validate:"max=5,dive"`
	MainVideo  *Video        `json:"main_video,omitempty"`
}

// ProfileSnapshot is a persisted company together with its child collections.
type ProfileSnapshot struct {
	Company    *Company
	Executives []Executive
	QnA        []QnA
	Videos     []Video
	Metrics    []Metric
	News       []News
}

// MainVideo returns the snapshot's main video, if any.
func (s *ProfileSnapshot) MainVideo() *Video {
	for i := range s.Videos {
		if s.Videos[i].IsMain {
			return &s.Videos[i]
		}
	}
	return nil
}

// UserRole is the role carried by a session.
type UserRole string

const (
	UserRoleInvestor UserRole = "investor"
	UserRoleStartup  UserRole = "startup"
	UserRoleAdmin    UserRole = "admin"
)

// User is an authenticated identity.
type User struct {
	ID    uuid.UUID
	Email string
	Role  UserRole
}
