// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/research-journey/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   Secrets
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "jwt-secret", "  s3cr3t  \n")
				writeFile(t, dir, "discord-bot-token", "dt_xyz789")
				writeFile(t, dir, "ai-api-key", "ak_123\n")
				return dir
			},
			want: Secrets{
				"jwt-secret":        "s3cr3t",
				"discord-bot-token": "dt_xyz789",
				"ai-api-key":        "ak_123",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: Secrets{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "slack-token", "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: Secrets{
				"slack-token": "valid-key",
			},
		},
		{
			name: "skips dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "s3-access-key", "pk_real")
				return dir
			},
			want: Secrets{
				"s3-access-key": "pk_real",
			},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "slack-token", "ak_123")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: Secrets{
				"slack-token": "ak_123",
			},
		},
		{
			name: "returns empty map for empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			want: Secrets{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir, nil)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	// Create a file then remove read permission.
	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir, nil)
	require.NoError(t, err)
	// The good file should still be returned; the bad file is skipped with a warning.
	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
}

func TestApply(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Server.JWTSecret = "from-config"
	cfg.Topic.APIKey = "keep-me"

	Secrets{
		JWTSecret:       "from-file",
		DiscordBotToken: "bot",
		SlackToken:      "xoxb",
		S3AccessKey:     "AKIA",
		S3SecretKey:     "shh",
		"unrelated":     "ignored",
	}.Apply(&cfg)

	assert.Equal(t, "from-file", cfg.Server.JWTSecret)
	assert.Equal(t, "bot", cfg.Directory.Discord.Token)
	assert.Equal(t, "xoxb", cfg.Directory.Slack.Token)
	assert.Equal(t, "keep-me", cfg.Topic.APIKey)
	assert.Equal(t, "AKIA", cfg.Export.S3AccessKey)
	assert.Equal(t, "shh", cfg.Export.S3SecretKey)
	assert.Equal(t, "", Secrets{}.Get(JWTSecret))
}

func TestLoadWarnsOnSharedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jwt-secret"), []byte("private"), 0o600))
	writeFile(t, dir, "slack-token", "shared")

	core, logs := observer.New(zap.WarnLevel)
	got, err := Load(dir, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, []string{"jwt-secret", "slack-token"}, got.Keys())
	warnings := logs.FilterMessage("secret file is readable by other users").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, filepath.Join(dir, "slack-token"), warnings[0].ContextMap()["path"])
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
