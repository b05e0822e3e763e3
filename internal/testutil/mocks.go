// Package testutil provides shared mock implementations of domain interfaces
// and an in-memory fake of the platform API for use in tests across the
// codebase.
package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"cube-sync/internal/domain"
)

// === Schema Gateway Mock ===

// MockSchemaGateway implements domain.SchemaGateway for testing.
type MockSchemaGateway struct {
	FindDatamodelByTitleFn func(ctx context.Context, title string) (*domain.Datamodel, error)
	CreateDatamodelFn      func(ctx context.Context, title string) (domain.Datamodel, error)
	FindDatasetByNameFn    func(ctx context.Context, datamodelOID, name string) (*domain.Dataset, error)
	CreateDatasetFn        func(ctx context.Context, datamodelOID, name, remotePath, filename string) (domain.Dataset, error)
	UpdateDatasetFn        func(ctx context.Context, datamodelOID, datasetOID, remotePath, filename string) (domain.Dataset, error)
	FindTableFn            func(ctx context.Context, datamodelOID, datasetOID, tableID string) (*domain.Table, error)
	CreateTableFn          func(ctx context.Context, datamodelOID, datasetOID, tableID string, columns []domain.ColumnSpec) (domain.Table, error)
	UpdateTableFn          func(ctx context.Context, datamodelOID, datasetOID, tableOID string, columns []domain.ColumnSpec) (domain.Table, error)
	FindTableByNameFn      func(ctx context.Context, datamodelOID, tableName string) (domain.TableLocation, error)
	CreateRelationshipFn   func(ctx context.Context, datamodelOID string, source, target domain.Endpoint) (json.RawMessage, error)

	mu    sync.Mutex
	Calls []string // method names in call order, for assertions
}

func (m *MockSchemaGateway) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, name)
}

// Called reports whether the named method was invoked.
func (m *MockSchemaGateway) Called(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Calls {
		if c == name {
			return true
		}
	}
	return false
}

// FindDatamodelByTitle implements the interface method for testing.
func (m *MockSchemaGateway) FindDatamodelByTitle(ctx context.Context, title string) (*domain.Datamodel, error) {
	m.record("FindDatamodelByTitle")
	if m.FindDatamodelByTitleFn != nil {
		return m.FindDatamodelByTitleFn(ctx, title)
	}
	panic("unexpected call to MockSchemaGateway.FindDatamodelByTitle")
}

// CreateDatamodel implements the interface method for testing.
func (m *MockSchemaGateway) CreateDatamodel(ctx context.Context, title string) (domain.Datamodel, error) {
	m.record("CreateDatamodel")
	if m.CreateDatamodelFn != nil {
		return m.CreateDatamodelFn(ctx, title)
	}
	panic("unexpected call to MockSchemaGateway.CreateDatamodel")
}

// FindDatasetByName implements the interface method for testing.
func (m *MockSchemaGateway) FindDatasetByName(ctx context.Context, datamodelOID, name string) (*domain.Dataset, error) {
	m.record("FindDatasetByName")
	if m.FindDatasetByNameFn != nil {
		return m.FindDatasetByNameFn(ctx, datamodelOID, name)
	}
	panic("unexpected call to MockSchemaGateway.FindDatasetByName")
}

// CreateDataset implements the interface method for testing.
func (m *MockSchemaGateway) CreateDataset(ctx context.Context, datamodelOID, name, remotePath, filename string) (domain.Dataset, error) {
	m.record("CreateDataset")
	if m.CreateDatasetFn != nil {
		return m.CreateDatasetFn(ctx, datamodelOID, name, remotePath, filename)
	}
	panic("unexpected call to MockSchemaGateway.CreateDataset")
}

// UpdateDataset implements the interface method for testing.
func (m *MockSchemaGateway) UpdateDataset(ctx context.Context, datamodelOID, datasetOID, remotePath, filename string) (domain.Dataset, error) {
	m.record("UpdateDataset")
	if m.UpdateDatasetFn != nil {
		return m.UpdateDatasetFn(ctx, datamodelOID, datasetOID, remotePath, filename)
	}
	panic("unexpected call to MockSchemaGateway.UpdateDataset")
}

// FindTable implements the interface method for testing.
func (m *MockSchemaGateway) FindTable(ctx context.Context, datamodelOID, datasetOID, tableID string) (*domain.Table, error) {
	m.record("FindTable")
	if m.FindTableFn != nil {
		return m.FindTableFn(ctx, datamodelOID, datasetOID, tableID)
	}
	panic("unexpected call to MockSchemaGateway.FindTable")
}

// CreateTable implements the interface method for testing.
func (m *MockSchemaGateway) CreateTable(ctx context.Context, datamodelOID, datasetOID, tableID string, columns []domain.ColumnSpec) (domain.Table, error) {
	m.record("CreateTable")
	if m.CreateTableFn != nil {
		return m.CreateTableFn(ctx, datamodelOID, datasetOID, tableID, columns)
	}
	panic("unexpected call to MockSchemaGateway.CreateTable")
}

// UpdateTable implements the interface method for testing.
func (m *MockSchemaGateway) UpdateTable(ctx context.Context, datamodelOID, datasetOID, tableOID string, columns []domain.ColumnSpec) (domain.Table, error) {
	m.record("UpdateTable")
	if m.UpdateTableFn != nil {
		return m.UpdateTableFn(ctx, datamodelOID, datasetOID, tableOID, columns)
	}
	panic("unexpected call to MockSchemaGateway.UpdateTable")
}

// FindTableByName implements the interface method for testing.
func (m *MockSchemaGateway) FindTableByName(ctx context.Context, datamodelOID, tableName string) (domain.TableLocation, error) {
	m.record("FindTableByName")
	if m.FindTableByNameFn != nil {
		return m.FindTableByNameFn(ctx, datamodelOID, tableName)
	}
	panic("unexpected call to MockSchemaGateway.FindTableByName")
}

// CreateRelationship implements the interface method for testing.
func (m *MockSchemaGateway) CreateRelationship(ctx context.Context, datamodelOID string, source, target domain.Endpoint) (json.RawMessage, error) {
	m.record("CreateRelationship")
	if m.CreateRelationshipFn != nil {
		return m.CreateRelationshipFn(ctx, datamodelOID, source, target)
	}
	panic("unexpected call to MockSchemaGateway.CreateRelationship")
}

var _ domain.SchemaGateway = (*MockSchemaGateway)(nil)

// === Build Gateway Mock ===

// MockBuildGateway implements domain.BuildGateway for testing.
type MockBuildGateway struct {
	TriggerBuildFn   func(ctx context.Context, datamodelOID string, buildType domain.BuildType) (string, error)
	GetBuildStatusFn func(ctx context.Context, buildOID string) (domain.BuildStatus, error)
}

// TriggerBuild implements the interface method for testing.
func (m *MockBuildGateway) TriggerBuild(ctx context.Context, datamodelOID string, buildType domain.BuildType) (string, error) {
	if m.TriggerBuildFn != nil {
		return m.TriggerBuildFn(ctx, datamodelOID, buildType)
	}
	panic("unexpected call to MockBuildGateway.TriggerBuild")
}

// GetBuildStatus implements the interface method for testing.
func (m *MockBuildGateway) GetBuildStatus(ctx context.Context, buildOID string) (domain.BuildStatus, error) {
	if m.GetBuildStatusFn != nil {
		return m.GetBuildStatusFn(ctx, buildOID)
	}
	panic("unexpected call to MockBuildGateway.GetBuildStatus")
}

var _ domain.BuildGateway = (*MockBuildGateway)(nil)

// StatusSequence returns a GetBuildStatusFn that reports statuses in order,
// repeating the last one. It also returns a counter of calls made.
func StatusSequence(statuses ...domain.BuildStatus) (func(context.Context, string) (domain.BuildStatus, error), *int) {
	var (
		mu    sync.Mutex
		calls int
	)
	return func(context.Context, string) (domain.BuildStatus, error) {
		mu.Lock()
		defer mu.Unlock()
		idx := calls
		if idx >= len(statuses) {
			idx = len(statuses) - 1
		}
		calls++
		return statuses[idx], nil
	}, &calls
}
