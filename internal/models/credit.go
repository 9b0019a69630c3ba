package models

import "time"

// Credit request statuses.
const (
	CreditRequestPending  = "pending"
	CreditRequestApproved = "approved"
	CreditRequestRejected = "rejected"
)

// CreditRequest asks an admin for more generation credits. A partial unique
// index allows one pending request per user.
type CreditRequest struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"index;uniqueIndex:idx_credit_requests_one_pending,where:status = 'pending';not null" json:"user_id"`
	User        *User      `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Amount      int        `gorm:"not null;default:5" json:"amount"`
	Status      string     `gorm:"size:20;index;not null;default:pending" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}
