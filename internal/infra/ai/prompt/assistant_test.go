package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSystemPrompt(t *testing.T) {
	p := GetSystemPrompt()
	assert.Contains(t, p, "helpful medical assistant")
	assert.NotContains(t, p, "JSON")
}
