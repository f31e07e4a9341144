package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPGText(t *testing.T) {
	assert.Equal(t, "GET /a\x1b[2J\rforged", pgText("GET /a\x00\x1b[2J\rforged\x00"))
	assert.Equal(t, "", pgText("\x00"))
	assert.Equal(t, "plain", pgText("plain"))
}

func TestStringOrDash(t *testing.T) {
	assert.Equal(t, "-", stringOrDash("  "))
	assert.Equal(t, "soc", stringOrDash("soc"))
}
