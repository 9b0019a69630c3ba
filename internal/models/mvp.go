package models

import "time"

// MVP is one generated prototype. ID is the unix-millis timestamp at completion.
type MVP struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Idea      string    `gorm:"type:text;not null" json:"idea"`
	Code      string    `gorm:"type:text" json:"code"`
	Markdown  string    `gorm:"type:text" json:"markdown"`
	Model     string    `gorm:"size:100" json:"model"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName keeps the table name stable regardless of gorm's acronym handling.
func (MVP) TableName() string { return "mvps" }

// HasCode reports whether an HTML bundle was extracted.
func (m *MVP) HasCode() bool {
	return m.Code != ""
}
