package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextPrompt(t *testing.T) {
	high := ContextPrompt("Melanoma", 0.9)
	assert.Contains(t, high, `"Melanoma"`)
	assert.Contains(t, high, "90.0%")
	assert.NotContains(t, high, "uncertain")

	low := ContextPrompt("Nevus", 0.42)
	assert.Contains(t, low, "42.0%")
	assert.Contains(t, low, "uncertain")
}

func TestSystemPrompt(t *testing.T) {
	assert.Contains(t, SystemPrompt(), "not a medical diagnosis")
}
