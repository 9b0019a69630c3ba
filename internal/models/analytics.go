package models

// Counter keys.
const (
	CounterMVPs        = "mvps"
	CounterAnalyses    = "analyses"
	CounterLLMAnalyses = "llm_analyses"
	CounterChats       = "chats"
)

// AnalyticsCounter is a named monotonic counter.
type AnalyticsCounter struct {
	Key   string `gorm:"primaryKey;size:64" json:"key"`
	Value int64  `gorm:"not null;default:0" json:"value"`
}
