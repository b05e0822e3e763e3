package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"cube-sync/internal/domain"
	"cube-sync/internal/schema"
)

// csvConnection is the connection descriptor of a CSV-backed dataset.
type csvConnection struct {
	Provider                 string        `json:"provider"`
	Schema                   string        `json:"schema"`
	Parameters               csvParameters `json:"parameters"`
	UIParams                 []interface{} `json:"uiParams"`
	GlobalTableConfigOptions []interface{} `json:"globalTableConfigOptions"`
	FileName                 string        `json:"fileName"`
}

type csvParameters struct {
	APIVersion int      `json:"ApiVersion"`
	Files      []string `json:"files"`
	UnionAll   bool     `json:"unionAll"`
}

func newCSVConnection(remotePath, filename string) csvConnection {
	return csvConnection{
		Provider: "CSV",
		Schema:   remotePath,
		Parameters: csvParameters{
			APIVersion: 2,
			Files:      []string{remotePath},
			UnionAll:   true,
		},
		UIParams:                 []interface{}{},
		GlobalTableConfigOptions: []interface{}{},
		FileName:                 filename,
	}
}

func datasetsPath(datamodelOID string) string {
	return fmt.Sprintf("%s/%s/schema/datasets", datamodelsPath, url.PathEscape(datamodelOID))
}

func datasetPath(datamodelOID, datasetOID string) string {
	return datasetsPath(datamodelOID) + "/" + url.PathEscape(datasetOID)
}

// listDatasets returns every dataset of a datamodel including table schemas.
func (s *Session) listDatasets(ctx context.Context, datamodelOID string, query url.Values) ([]wireDataset, error) {
	var out []wireDataset
	if err := s.call(ctx, http.MethodGet, datasetsPath(datamodelOID), query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindDatasetByName returns the dataset with an exactly matching name, or nil.
// The platform cannot filter datasets by name, so all are listed.
func (s *Session) FindDatasetByName(ctx context.Context, datamodelOID, name string) (*domain.Dataset, error) {
	datasets, err := s.listDatasets(ctx, datamodelOID, nil)
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, w := range datasets {
		if w.Name != name {
			continue
		}
		ds, err := w.toDomain()
		if err != nil {
			return nil, err
		}
		return &ds, nil
	}
	return nil, nil
}

// CreateDataset registers a CSV extract dataset pointing at an uploaded file.
func (s *Session) CreateDataset(ctx context.Context, datamodelOID, name, remotePath, filename string) (domain.Dataset, error) {
	body := map[string]interface{}{
		"name":       name,
		"type":       "extract",
		"connection": newCSVConnection(remotePath, filename),
	}
	var out wireDataset
	if err := s.call(ctx, http.MethodPost, datasetsPath(datamodelOID), nil, body, &out); err != nil {
		return domain.Dataset{}, err
	}
	return out.toDomain()
}

// UpdateDataset repoints an existing dataset at a newly uploaded file.
func (s *Session) UpdateDataset(ctx context.Context, datamodelOID, datasetOID, remotePath, filename string) (domain.Dataset, error) {
	body := map[string]interface{}{
		"type":       "extract",
		"connection": newCSVConnection(remotePath, filename),
	}
	var out wireDataset
	if err := s.call(ctx, http.MethodPatch, datasetPath(datamodelOID, datasetOID), nil, body, &out); err != nil {
		return domain.Dataset{}, err
	}
	return out.toDomain()
}

// DeleteDataset removes a dataset from its datamodel.
func (s *Session) DeleteDataset(ctx context.Context, datamodelOID, datasetOID string) error {
	return s.call(ctx, http.MethodDelete, datasetPath(datamodelOID, datasetOID), nil, nil, nil)
}

// FindTable returns the table with the given id inside a dataset, or nil when
// either the dataset or the table is missing.
func (s *Session) FindTable(ctx context.Context, datamodelOID, datasetOID, tableID string) (*domain.Table, error) {
	datasets, err := s.listDatasets(ctx, datamodelOID, nil)
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, w := range datasets {
		if w.OID != datasetOID {
			continue
		}
		wt, ok := w.table(tableID)
		if !ok {
			return nil, nil
		}
		tbl, err := wt.toDomain()
		if err != nil {
			return nil, err
		}
		return &tbl, nil
	}
	return nil, nil
}

// FindTableByName searches every dataset of a datamodel for a table with the
// given id. Unlike the other lookups a miss is an error: it is used for
// relationship targets that must already exist.
func (s *Session) FindTableByName(ctx context.Context, datamodelOID, tableName string) (domain.TableLocation, error) {
	datasets, err := s.listDatasets(ctx, datamodelOID, url.Values{"fields": {"oid, name, schema"}})
	if err != nil {
		return domain.TableLocation{}, err
	}
	for _, w := range datasets {
		wt, ok := w.table(tableName)
		if !ok {
			continue
		}
		ds, err := w.toDomain()
		if err != nil {
			return domain.TableLocation{}, err
		}
		tbl, err := wt.toDomain()
		if err != nil {
			return domain.TableLocation{}, err
		}
		return domain.TableLocation{Dataset: ds, Table: tbl}, nil
	}
	return domain.TableLocation{}, domain.ErrNotFound("Cannot find table \"%s\"", tableName)
}

func tablesPath(datamodelOID, datasetOID string) string {
	return datasetPath(datamodelOID, datasetOID) + "/tables"
}

// CreateTable creates a table with the given columns in a dataset.
func (s *Session) CreateTable(ctx context.Context, datamodelOID, datasetOID, tableID string, columns []domain.ColumnSpec) (domain.Table, error) {
	wireColumns, err := schema.ReformatColumns(columns)
	if err != nil {
		return domain.Table{}, err
	}
	body := map[string]interface{}{
		"id":      tableID,
		"columns": wireColumns,
	}
	var out wireTable
	if err := s.call(ctx, http.MethodPost, tablesPath(datamodelOID, datasetOID), nil, body, &out); err != nil {
		return domain.Table{}, err
	}
	return out.toDomain()
}

// UpdateTable replaces the columns of an existing table.
func (s *Session) UpdateTable(ctx context.Context, datamodelOID, datasetOID, tableOID string, columns []domain.ColumnSpec) (domain.Table, error) {
	wireColumns, err := schema.ReformatColumns(columns)
	if err != nil {
		return domain.Table{}, err
	}
	body := map[string]interface{}{
		"columns": wireColumns,
	}
	var out wireTable
	path := tablesPath(datamodelOID, datasetOID) + "/" + url.PathEscape(tableOID)
	if err := s.call(ctx, http.MethodPatch, path, nil, body, &out); err != nil {
		return domain.Table{}, err
	}
	return out.toDomain()
}
