package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetListenAddress(t *testing.T) {
	tests := []struct {
		port, env, expected string
	}{
		{"3000", "development", ":3000"},
		{"3000", "production", "0.0.0.0:3000"},
		{"abc", "development", ":8080"},
		{"5", "production", "0.0.0.0:8080"},
		{"70000", "", ":8080"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, GetListenAddress(tt.port, tt.env), "%s/%s", tt.port, tt.env)
	}
}
