package models

import "time"

// Analysis engines.
const (
	EngineLLM       = "llm"
	EngineHeuristic = "heuristic"
	EngineFallback  = "fallback"
)

// Analysis is one resume vs. vacancy comparison.
type Analysis struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"index;not null" json:"user_id"`
	User           *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Filename       string    `gorm:"size:255" json:"filename"`
	JobDescription string    `gorm:"type:text;not null" json:"job_description"`
	ResumeExcerpt  string    `gorm:"type:text" json:"resume_excerpt"`
	MatchScore     float64   `gorm:"not null;default:0" json:"match_score"`
	Engine         string    `gorm:"size:20;not null" json:"engine"`
	Model          string    `gorm:"size:100" json:"model"`
	AnalysisData   string    `gorm:"type:text" json:"-"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// AnalysisResult is the structured comparison the model is asked to return.
type AnalysisResult struct {
	MatchScore      float64      `json:"match_score" yaml:"match_score"`
	Pros            []string     `json:"pros" yaml:"pros"`
	Cons            []string     `json:"cons" yaml:"cons"`
	SkillsMatch     SkillsMatch  `json:"skills_match" yaml:"skills_match"`
	ExperienceMatch SectionScore `json:"experience_match" yaml:"experience_match"`
	EducationMatch  SectionScore `json:"education_match" yaml:"education_match"`
	Recommendations []string     `json:"recommendations" yaml:"recommendations"`
	Summary         string       `json:"summary" yaml:"summary"`
}

// SkillsMatch groups skills by how they relate to the vacancy.
type SkillsMatch struct {
	MatchedSkills    []string `json:"matched_skills" yaml:"matched_skills"`
	MissingSkills    []string `json:"missing_skills" yaml:"missing_skills"`
	AdditionalSkills []string `json:"additional_skills" yaml:"additional_skills"`
}

// SectionScore is a scored free-text assessment.
type SectionScore struct {
	Score    float64 `json:"score" yaml:"score"`
	Analysis string  `json:"analysis" yaml:"analysis"`
}
