package app

import (
	"context"
	"errors"
	"fmt"

	"pursuitline/internal/config"
	"pursuitline/internal/engine"
	"pursuitline/internal/repo"
)

// ResolveProjectAndConfig picks the active project and ensures a project and
// its config exist in the DB, seeding defaults when missing. It prefers the
// override, then the single project in the workspace. A missing project is
// initialized on the fly so CLI commands work in a fresh workspace.
func ResolveProjectAndConfig(ctx context.Context, e engine.Engine, projectOverride, actorID string) (string, *config.Config, error) {
	projectID := projectOverride
	if projectID == "" {
		p, err := e.Repo.SingleProject(ctx)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return "", nil, fmt.Errorf("no project in workspace; run pl project init")
			}
			return "", nil, err
		}
		projectID = p.ID
	}

	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if actorID == "" {
			actorID = "local-user"
		}
		if _, err := e.InitProject(ctx, projectID, projectID, "", actorID); err != nil {
			return "", nil, fmt.Errorf("init project: %w", err)
		}
	}
	cfg, err := e.Repo.GetProjectConfig(ctx, projectID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		cfg = config.Default(projectID)
		if err := e.Repo.UpsertProjectConfig(ctx, projectID, cfg); err != nil {
			return "", nil, fmt.Errorf("seed project config: %w", err)
		}
	}
	cfg.Project.ID = projectID
	return projectID, cfg, nil
}
