package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Run("missing api key fails", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "")
		_, err := LoadFromEnv()
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "k1")
		t.Setenv("GOOGLE_API_KEY", "")
		t.Setenv("PORT", "")
		t.Setenv("GEMINI_MODEL", "")

		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "k1", cfg.GeminiAPIKey)
		assert.Equal(t, "3000", cfg.Port)
		assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
		assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
	})

	t.Run("google key is a fallback", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("GOOGLE_API_KEY", "k2")

		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "k2", cfg.GeminiAPIKey)
	})

	t.Run("gemini key wins over google key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "k1")
		t.Setenv("GOOGLE_API_KEY", "k2")

		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "k1", cfg.GeminiAPIKey)
	})

	t.Run("explicit values", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "k1")
		t.Setenv("PORT", "8080")
		t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")

		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "gemini-2.5-pro", cfg.GeminiModel)
	})
}
