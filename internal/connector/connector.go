// Package connector drives one synchronization run: authenticate, upload the
// table file, reconcile the datamodel hierarchy, then build the cube.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"cube-sync/internal/build"
	"cube-sync/internal/config"
	"cube-sync/internal/domain"
	"cube-sync/internal/platform"
	"cube-sync/internal/reconcile"
)

// Connector runs the configured actions against a platform client.
type Connector struct {
	cfg    *config.Config
	client *platform.Client
	logger *slog.Logger
}

// New creates a Connector.
func New(cfg *config.Config, client *platform.Client, logger *slog.Logger) *Connector {
	return &Connector{cfg: cfg, client: client, logger: logger}
}

// Result summarizes a completed run.
type Result struct {
	Datamodel domain.Datamodel
	Dataset   domain.Dataset
	Table     domain.Table
}

// Run performs a full synchronization. It stops at the first failure and does
// not roll back entities it already created.
func (c *Connector) Run(ctx context.Context) (*Result, error) {
	session, err := c.client.Authenticate(ctx, c.cfg.Parameters.DB.Username, c.cfg.Parameters.DB.Password)
	if err != nil {
		return nil, err
	}

	localFile := c.cfg.InputFile()
	c.logger.Info("uploading file", "file", localFile)
	remotePath, err := session.UploadFile(ctx, localFile)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filepath.Base(localFile), err)
	}

	rec := reconcile.New(session, c.logger)

	dm, err := rec.EnsureDatamodel(ctx, c.cfg.DatamodelName())
	if err != nil {
		return nil, err
	}
	ds, err := rec.EnsureDataset(ctx, dm, c.cfg.DatasetName(), remotePath, filepath.Base(localFile))
	if err != nil {
		return nil, err
	}
	tbl, err := rec.EnsureTable(ctx, dm, ds, c.cfg.TableName(), c.cfg.Columns())
	if err != nil {
		return nil, err
	}
	if specs := c.cfg.Relationships(); len(specs) > 0 {
		if err := rec.EnsureRelationships(ctx, dm, ds, tbl, specs); err != nil {
			return nil, err
		}
	}

	orch := build.NewOrchestrator(session, session.BaseURL(), c.logger,
		build.WithInterval(c.cfg.Parameters.PollInterval),
		build.WithTimeout(c.cfg.Parameters.BuildTimeout))
	if err := orch.Run(ctx, dm.OID, c.cfg.BuildType()); err != nil {
		return nil, err
	}

	c.logger.Info("synchronization finished", "datamodel", dm.Title, "dataset", ds.Name, "table", tbl.Name)
	return &Result{Datamodel: dm, Dataset: ds, Table: tbl}, nil
}

// TestConnection only authenticates. Any failure is reported as a
// *domain.ConnectionError.
func (c *Connector) TestConnection(ctx context.Context) (map[string]string, error) {
	if _, err := c.client.Authenticate(ctx, c.cfg.Parameters.DB.Username, c.cfg.Parameters.DB.Password); err != nil {
		return nil, &domain.ConnectionError{Err: err}
	}
	return map[string]string{"status": "success"}, nil
}
