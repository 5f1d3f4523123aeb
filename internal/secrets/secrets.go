// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads credentials kept outside the config file. Every
// file in the secrets directory holds one value, named by its file name.
//
// Recognised keys: jwt-secret, discord-bot-token, slack-token, ai-api-key,
// s3-access-key, s3-secret-key.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-journey/pkg/types"
)

// Key file names.
const (
	JWTSecret       = "jwt-secret"
	DiscordBotToken = "discord-bot-token"
	SlackToken      = "slack-token"
	AIAPIKey        = "ai-api-key"
	S3AccessKey     = "s3-access-key"
	S3SecretKey     = "s3-secret-key"
)

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads every regular, non-hidden file in dir. A missing directory is
// not an error and yields an empty set. Unreadable files are skipped, and
// files readable by group or others are loaded with a warning.
func Load(dir string, logger *zap.Logger) (Secrets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Secrets{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(Secrets, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		value, err := readSecret(filepath.Join(dir, entry.Name()), logger)
		if err != nil {
			logger.Warn("skipping secret", zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		if value != "" {
			out[entry.Name()] = value
		}
	}
	logger.Debug("secrets loaded", zap.String("dir", dir), zap.Strings("keys", out.Keys()))
	return out, nil
}

func readSecret(path string, logger *zap.Logger) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Mode().Perm()&0o077 != 0 {
		logger.Warn("secret file is readable by other users",
			zap.String("path", path), zap.Stringer("mode", info.Mode().Perm()))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Keys returns the loaded key names, sorted. Values are never logged.
func (s Secrets) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// Get returns the secret for key, or "" when it is not set.
func (s Secrets) Get(key string) string { return s[key] }

// Apply copies known secrets into cfg. A secret file wins over a value from
// the config file or environment.
func (s Secrets) Apply(cfg *types.Config) {
	set := func(dst *string, key string) {
		if v := s[key]; v != "" {
			*dst = v
		}
	}
	set(&cfg.Server.JWTSecret, JWTSecret)
	set(&cfg.Directory.Discord.Token, DiscordBotToken)
	set(&cfg.Directory.Slack.Token, SlackToken)
	set(&cfg.Topic.APIKey, AIAPIKey)
	set(&cfg.Export.S3AccessKey, S3AccessKey)
	set(&cfg.Export.S3SecretKey, S3SecretKey)
}
