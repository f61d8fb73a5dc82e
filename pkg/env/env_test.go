package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPrefersEarlierKeys(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STOREFRONT_APP_PORT", "8080")
	assert.Equal(t, "9090", Get("3000", "PORT", "STOREFRONT_APP_PORT"))

	t.Setenv("PORT", "  ")
	assert.Equal(t, "8080", Get("3000", "PORT", "STOREFRONT_APP_PORT"))
}

func TestGetFallsBack(t *testing.T) {
	t.Setenv("STOREFRONT_LOG_FORMAT", "")
	assert.Equal(t, "json", Get("json", "STOREFRONT_LOG_FORMAT"))
	assert.Equal(t, "json", Get("json"))
}
