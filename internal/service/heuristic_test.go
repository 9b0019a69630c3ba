package service

import (
	"testing"

	"project0/internal/prompts"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicAnalysis(t *testing.T) {
	texts := prompts.MustDefault().Heuristic(prompts.LangEN)

	t.Run("partial overlap", func(t *testing.T) {
		r := HeuristicAnalysis(texts,
			"Experienced Golang developer with Kubernetes",
			"Senior golang developer kubernetes docker")

		assert.Equal(t, 60.0, r.MatchScore)
		assert.Equal(t, []string{"developer", "golang", "kubernetes"}, r.SkillsMatch.MatchedSkills)
		assert.Equal(t, []string{"docker", "senior"}, r.SkillsMatch.MissingSkills)
		assert.Equal(t, []string{"Mentions developer", "Mentions golang", "Mentions kubernetes"}, r.Pros)
		assert.Equal(t, []string{"No evidence of docker", "No evidence of senior"}, r.Cons)
		assert.Equal(t, 60.0, r.ExperienceMatch.Score)
		assert.Equal(t, texts.Summary, r.Summary)
		assert.NotNil(t, r.SkillsMatch.AdditionalSkills)
	})

	t.Run("no overlap clamps to minimum", func(t *testing.T) {
		r := HeuristicAnalysis(texts, "painter", "golang developer")
		assert.Equal(t, 15.0, r.MatchScore)
		assert.Equal(t, []string{texts.DefaultStrength}, r.Pros)
		assert.Empty(t, r.SkillsMatch.MatchedSkills)
	})

	t.Run("full overlap clamps to maximum", func(t *testing.T) {
		r := HeuristicAnalysis(texts, "golang developer", "golang developer")
		assert.Equal(t, 95.0, r.MatchScore)
		assert.Equal(t, []string{texts.DefaultWeakness}, r.Cons)
	})

	t.Run("short words are ignored", func(t *testing.T) {
		r := HeuristicAnalysis(texts, "go sql", "go sql")
		assert.Equal(t, 15.0, r.MatchScore)
		assert.Empty(t, r.SkillsMatch.MissingSkills)
	})

	t.Run("lists are capped", func(t *testing.T) {
		vacancy := "alpha bravo charlie delta echoo foxtrot golfy hotel india juliet kilo lima"
		r := HeuristicAnalysis(texts, vacancy, vacancy)
		assert.Len(t, r.Pros, 5)
		assert.Len(t, r.SkillsMatch.MatchedSkills, 10)
	})
}

func TestHeuristicAnalysis_Russian(t *testing.T) {
	texts := prompts.MustDefault().Heuristic(prompts.LangRU)
	r := HeuristicAnalysis(texts, "опыт python", "python django")
	assert.Equal(t, []string{"Упоминается python"}, r.Pros)
	assert.Equal(t, []string{"Нет подтверждения навыка django"}, r.Cons)
}

func TestTokenSet_CountsCharacters(t *testing.T) {
	set := tokenSet("да опыт Go")
	_, short := set["да"]
	_, long := set["опыт"]
	assert.False(t, short)
	assert.True(t, long)
	assert.Len(t, set, 1)
}
