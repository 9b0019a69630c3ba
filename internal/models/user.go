// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User roles.
const (
	RoleCandidate = "candidate"
	RoleRecruiter = "recruiter"
)

// User is an account that owns sessions, MVPs and analyses.
type User struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Username      string     `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email         string     `gorm:"uniqueIndex;size:254;not null" json:"email"`
	Password      string     `gorm:"not null" json:"-"`
	FullName      string     `gorm:"size:120" json:"full_name"`
	Role          string     `gorm:"size:20;default:candidate" json:"role"`
	IsAdmin       bool       `gorm:"default:false" json:"is_admin"`
	Language      string     `gorm:"size:5;default:en" json:"language"`
	Headline      string     `gorm:"size:160" json:"headline"`
	Location      string     `gorm:"size:120" json:"location"`
	Bio           string     `gorm:"size:1000" json:"bio"`
	Phone         string     `gorm:"size:40" json:"phone"`
	Skills        string     `gorm:"size:2000" json:"skills"`
	LinkedInURL   string     `gorm:"column:linkedin_url;size:255" json:"linkedin_url"`
	GithubURL     string     `gorm:"size:255" json:"github_url"`
	Website       string     `gorm:"size:255" json:"website"`
	Avatar        string     `gorm:"size:255" json:"avatar"`
	ResumeFile    string     `gorm:"size:64" json:"resume_file,omitempty"`
	ResumeName    string     `gorm:"size:255" json:"resume_name"`
	Credits       int        `gorm:"not null;default:0" json:"credits"`
	TotalRequests int        `gorm:"not null;default:0" json:"total_requests"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLogin     *time.Time `json:"last_login"`
}

// AvatarURL returns the public URL of the user's avatar, or "" when none is set.
func (u *User) AvatarURL() string {
	if u.Avatar == "" {
		return ""
	}
	return "/uploads/avatars/" + u.Avatar
}
