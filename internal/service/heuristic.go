package service

import (
	"sort"
	"strings"
	"unicode/utf8"

	"project0/internal/models"
	"project0/internal/prompts"
)

const (
	heuristicMinScore = 15
	heuristicMaxScore = 95
	heuristicListSize = 5
	heuristicSkills   = 10
)

// tokenSet lower-cases whitespace separated words longer than three characters.
func tokenSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(text) {
		if utf8.RuneCountInString(tok) > 3 {
			out[strings.ToLower(tok)] = struct{}{}
		}
	}
	return out
}

// HeuristicAnalysis scores a resume by keyword overlap with the vacancy.
// It needs no model and is used when the model is unavailable.
func HeuristicAnalysis(texts prompts.HeuristicTexts, resume, vacancy string) models.AnalysisResult {
	resumeTokens := tokenSet(resume)
	vacancyTokens := tokenSet(vacancy)

	overlap := make([]string, 0)
	missing := make([]string, 0)
	for tok := range vacancyTokens {
		if _, ok := resumeTokens[tok]; ok {
			overlap = append(overlap, tok)
		} else {
			missing = append(missing, tok)
		}
	}
	sort.Strings(overlap)
	sort.Strings(missing)

	denom := len(vacancyTokens)
	if denom < 1 {
		denom = 1
	}
	score := len(overlap) * 100 / denom
	score = max(heuristicMinScore, min(heuristicMaxScore, score))

	pros := make([]string, 0, heuristicListSize)
	for _, tok := range head(overlap, heuristicListSize) {
		pros = append(pros, texts.StrengthFor(tok))
	}
	if len(pros) == 0 {
		pros = append(pros, texts.DefaultStrength)
	}
	cons := make([]string, 0, heuristicListSize)
	for _, tok := range head(missing, heuristicListSize) {
		cons = append(cons, texts.WeaknessFor(tok))
	}
	if len(cons) == 0 {
		cons = append(cons, texts.DefaultWeakness)
	}

	return models.AnalysisResult{
		MatchScore: float64(score),
		Pros:       pros,
		Cons:       cons,
		SkillsMatch: models.SkillsMatch{
			MatchedSkills:    append([]string{}, head(overlap, heuristicSkills)...),
			MissingSkills:    append([]string{}, head(missing, heuristicSkills)...),
			AdditionalSkills: []string{},
		},
		ExperienceMatch: models.SectionScore{Score: float64(score), Analysis: texts.Experience},
		EducationMatch:  models.SectionScore{Score: float64(score), Analysis: texts.Education},
		Recommendations: append([]string{}, texts.Recommendations...),
		Summary:         texts.Summary,
	}
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
