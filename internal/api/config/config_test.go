package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(viper.New(), t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.Chat.ReconnectDelay)
	require.Equal(t, 3*time.Second, cfg.Chat.TypingIdleTimeout)
	require.Equal(t, 300*time.Millisecond, cfg.Chat.SearchDebounce)
	require.Equal(t, 100.0, cfg.Chat.NearBottomThreshold)
	require.Equal(t, 15, cfg.Backend.ConversationSize)
	require.Equal(t, []string{"image/", "application/pdf", "text/plain"}, cfg.Attachment.AllowedPrefixes)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := "backend:\n  base_url: \"http://hotel.example/api\"\nchat:\n  typing_expiry: 8s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("CONCIERGE_SERVER_PORT", "9090")

	cfg, err := Load(viper.New(), dir)
	require.NoError(t, err)
	require.Equal(t, "http://hotel.example/api", cfg.Backend.BaseURL)
	require.Equal(t, 8*time.Second, cfg.Chat.TypingExpiry)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 2*time.Second, cfg.Chat.TypingReassert)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, "@every 30s", cfg.Chat.ListRefreshSpec)
	require.Equal(t, int64(10<<20), cfg.Attachment.MaxSize)
}
