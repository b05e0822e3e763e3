// Package reconcile brings the remote datamodel hierarchy in line with the
// configured one. Every level follows the same get-or-create-or-update
// pattern, except datamodels which are reused and never updated.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"cube-sync/internal/domain"
)

// Reconciler applies desired state through a schema gateway.
type Reconciler struct {
	gw     domain.SchemaGateway
	logger *slog.Logger
}

// New creates a Reconciler.
func New(gw domain.SchemaGateway, logger *slog.Logger) *Reconciler {
	return &Reconciler{gw: gw, logger: logger}
}

// EnsureDatamodel returns the datamodel with the given title, creating it if
// it does not exist.
func (r *Reconciler) EnsureDatamodel(ctx context.Context, title string) (domain.Datamodel, error) {
	existing, err := r.gw.FindDatamodelByTitle(ctx, title)
	if err != nil {
		return domain.Datamodel{}, fmt.Errorf("find datamodel %q: %w", title, err)
	}
	if existing != nil {
		r.logger.Info("updating existing datamodel", "title", existing.Title, "oid", existing.OID)
		return *existing, nil
	}

	r.logger.Info("creating datamodel", "title", title)
	dm, err := r.gw.CreateDatamodel(ctx, title)
	if err != nil {
		return domain.Datamodel{}, fmt.Errorf("create datamodel %q: %w", title, err)
	}
	return dm, nil
}

// EnsureDataset points the named dataset at an uploaded file, creating the
// dataset if needed.
func (r *Reconciler) EnsureDataset(ctx context.Context, dm domain.Datamodel, name, remotePath, filename string) (domain.Dataset, error) {
	existing, err := r.gw.FindDatasetByName(ctx, dm.OID, name)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("find dataset %q: %w", name, err)
	}
	if existing == nil {
		r.logger.Info("creating dataset", "name", name, "datamodel", dm.Title)
		ds, err := r.gw.CreateDataset(ctx, dm.OID, name, remotePath, filename)
		if err != nil {
			return domain.Dataset{}, fmt.Errorf("create dataset %q: %w", name, err)
		}
		return ds, nil
	}

	r.logger.Info("updating existing dataset", "name", existing.Name, "oid", existing.OID)
	ds, err := r.gw.UpdateDataset(ctx, dm.OID, existing.OID, remotePath, filename)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("update dataset %q: %w", name, err)
	}
	return ds, nil
}

// EnsureTable creates the table or replaces the columns of an existing one.
func (r *Reconciler) EnsureTable(ctx context.Context, dm domain.Datamodel, ds domain.Dataset, tableID string, columns []domain.ColumnSpec) (domain.Table, error) {
	existing, err := r.gw.FindTable(ctx, dm.OID, ds.OID, tableID)
	if err != nil {
		return domain.Table{}, fmt.Errorf("find table %q: %w", tableID, err)
	}
	if existing == nil {
		r.logger.Info("creating table", "table", tableID, "dataset", ds.Name, "columns", len(columns))
		tbl, err := r.gw.CreateTable(ctx, dm.OID, ds.OID, tableID, columns)
		if err != nil {
			return domain.Table{}, fmt.Errorf("create table %q: %w", tableID, err)
		}
		return tbl, nil
	}

	r.logger.Info("updating existing table", "table", existing.Name, "oid", existing.OID, "columns", len(columns))
	tbl, err := r.gw.UpdateTable(ctx, dm.OID, ds.OID, existing.OID, columns)
	if err != nil {
		return domain.Table{}, fmt.Errorf("update table %q: %w", tableID, err)
	}
	return tbl, nil
}

// EnsureRelationships joins columns of the synced table to columns of tables
// that must already exist in the datamodel. Specs are applied in order and
// the first failure stops the run.
func (r *Reconciler) EnsureRelationships(ctx context.Context, dm domain.Datamodel, ds domain.Dataset, table domain.Table, specs []domain.RelationshipSpec) error {
	for _, rel := range specs {
		srcCol, ok := table.Column(rel.Column)
		if !ok {
			return &domain.ColumnNotFoundError{Table: table.Name, Column: rel.Column}
		}

		target, err := r.gw.FindTableByName(ctx, dm.OID, rel.Target.Table)
		if err != nil {
			return err
		}
		dstCol, ok := target.Table.Column(rel.Target.Column)
		if !ok {
			return &domain.ColumnNotFoundError{Table: target.Table.Name, Column: rel.Target.Column}
		}

		source := domain.Endpoint{Dataset: ds.OID, Table: table.OID, Column: srcCol.OID}
		dest := domain.Endpoint{Dataset: target.Dataset.OID, Table: target.Table.OID, Column: dstCol.OID}
		if _, err := r.gw.CreateRelationship(ctx, dm.OID, source, dest); err != nil {
			return fmt.Errorf("create relationship %s.%s -> %s.%s: %w",
				table.Name, rel.Column, target.Table.Name, rel.Target.Column, err)
		}
		r.logger.Info("relationship created",
			"source", table.Name+"."+rel.Column,
			"target", target.Table.Name+"."+rel.Target.Column)
	}
	return nil
}
