// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes a project's research journal (project, tasks, the
// user's points and achievements) as YAML or JSON, optionally uploading it
// to S3-compatible storage.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-journey/internal/ledger"
	"github.com/pdiddy/research-journey/internal/project"
	"github.com/pdiddy/research-journey/internal/session"
	"github.com/pdiddy/research-journey/internal/tasks"
	"github.com/pdiddy/research-journey/pkg/types"
)

// Format is an export encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Journal is the exported snapshot.
type Journal struct {
	ExportedAt   time.Time               `json:"exported_at" yaml:"exported_at"`
	Project      types.ResearchProject   `json:"project" yaml:"project"`
	Tasks        []types.ResearchTask    `json:"tasks" yaml:"tasks"`
	Points       types.UserPoints        `json:"points" yaml:"points"`
	Achievements []types.UserAchievement `json:"achievements" yaml:"achievements"`
}

// Result reports where an export went.
type Result struct {
	Path string `json:"path"`

	// URL is set when the journal was uploaded.
	URL string `json:"url,omitempty"`
}

// Exporter builds and writes journals.
type Exporter struct {
	projects *project.Registry
	tasks    *tasks.Tracker
	ledger   *ledger.Ledger
	dir      string
	uploader Uploader
	logger   *zap.Logger
	clock    func() time.Time
}

// New returns an exporter writing into dir. uploader may be nil.
func New(projects *project.Registry, tr *tasks.Tracker, l *ledger.Ledger, dir string, uploader Uploader, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		dir = "exports"
	}
	return &Exporter{projects: projects, tasks: tr, ledger: l, dir: dir, uploader: uploader, logger: logger, clock: time.Now}
}

// Snapshot collects the journal of a project visible to the session user.
func (e *Exporter) Snapshot(ctx context.Context, sess session.Session, projectID string) (Journal, error) {
	user, err := sess.Require()
	if err != nil {
		return Journal{}, err
	}
	p, err := e.projects.Get(ctx, sess, projectID)
	if err != nil {
		return Journal{}, err
	}
	ts, err := e.tasks.ListTasks(ctx, projectID)
	if err != nil {
		return Journal{}, err
	}
	points, err := e.ledger.Points(ctx, user.ID)
	if err != nil {
		return Journal{}, err
	}
	achievements, err := e.ledger.Achievements(ctx, user.ID)
	if err != nil {
		return Journal{}, err
	}
	return Journal{
		ExportedAt:   e.clock().UTC(),
		Project:      p,
		Tasks:        ts,
		Points:       points,
		Achievements: achievements,
	}, nil
}

// Encode marshals j in the given format.
func Encode(j Journal, format Format) ([]byte, error) {
	switch format {
	case FormatYAML, "":
		data, err := yaml.Marshal(j)
		if err != nil {
			return nil, fmt.Errorf("marshaling YAML: %w", err)
		}
		return data, nil
	case FormatJSON:
		data, err := json.MarshalIndent(j, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling JSON: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

// ContentType returns the MIME type of format.
func ContentType(format Format) string {
	if format == FormatJSON {
		return "application/json"
	}
	return "application/yaml"
}

// Export writes the project's journal to <dir>/<project>-<timestamp>.<format>
// and uploads it when an uploader is configured.
func (e *Exporter) Export(ctx context.Context, sess session.Session, projectID string, format Format) (Result, error) {
	if format == "" {
		format = FormatYAML
	}
	j, err := e.Snapshot(ctx, sess, projectID)
	if err != nil {
		return Result{}, err
	}
	data, err := Encode(j, format)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating export directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.%s", projectID, j.ExportedAt.Format("20060102T150405Z"), format)
	res := Result{Path: filepath.Join(e.dir, name)}
	if err := os.WriteFile(res.Path, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("writing export: %w", err)
	}

	if e.uploader != nil {
		url, err := e.uploader.Upload(ctx, name, data, ContentType(format))
		if err != nil {
			return res, fmt.Errorf("uploading export: %w", err)
		}
		res.URL = url
	}
	e.logger.Info("journal exported",
		zap.String("project_id", projectID),
		zap.String("path", res.Path),
		zap.String("url", res.URL))
	return res, nil
}
