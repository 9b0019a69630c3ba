package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLength(t *testing.T) {
	t.Parallel()
	assert.EqualError(t, ValidateLength("idea", "   ", 1, MaxIdeaLength), "idea is required")
	assert.NoError(t, ValidateLength("idea", "a todo app", 1, MaxIdeaLength))
	assert.Error(t, ValidateLength("idea", strings.Repeat("я", MaxIdeaLength+1), 1, MaxIdeaLength))
	assert.NoError(t, ValidateLength("idea", strings.Repeat("я", MaxIdeaLength), 1, MaxIdeaLength))
	assert.Error(t, ValidateLength("name", "ab", 3, 0))
}

func TestValidateOptionalURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"", false},
		{"https://github.com/someone", false},
		{"http://example.com", false},
		{"ftp://example.com", true},
		{"github.com/someone", true},
		{"https://" + strings.Repeat("a", MaxURL), true},
	}
	for _, tt := range tests {
		err := ValidateOptionalURL("website", tt.value)
		if tt.wantErr {
			assert.Error(t, err, tt.value)
		} else {
			assert.NoError(t, err, tt.value)
		}
	}
}

func TestValidateOneOf(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateOneOf("role", "candidate", "candidate", "recruiter"))
	assert.EqualError(t, ValidateOneOf("role", "boss", "candidate", "recruiter"), "role must be one of candidate, recruiter")
}
