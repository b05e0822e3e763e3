package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cube-sync/internal/domain"
	"cube-sync/internal/testutil"
)

var (
	testDatamodel = domain.Datamodel{OID: "dm-1", Title: "Sales"}
	testDataset   = domain.Dataset{OID: "ds-1", Name: "Sales-orders"}
	testTable     = domain.Table{
		OID: "tbl-1", ID: "orders", Name: "orders",
		Columns: []domain.Column{
			{OID: "col-1", ID: "id", Name: "id"},
			{OID: "col-2", ID: "customer_id", Name: "customer_id"},
		},
	}
	customers = domain.TableLocation{
		Dataset: domain.Dataset{OID: "ds-9", Name: "Sales-customers"},
		Table: domain.Table{
			OID: "tbl-9", ID: "customers", Name: "customers",
			Columns: []domain.Column{{OID: "col-9", ID: "id", Name: "id"}},
		},
	}
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

// === Datamodel ===

func TestEnsureDatamodel_Creates(t *testing.T) {
	gw := &testutil.MockSchemaGateway{
		FindDatamodelByTitleFn: func(_ context.Context, title string) (*domain.Datamodel, error) {
			assert.Equal(t, "Sales", title)
			return nil, nil
		},
		CreateDatamodelFn: func(_ context.Context, title string) (domain.Datamodel, error) {
			return domain.Datamodel{OID: "dm-new", Title: title}, nil
		},
	}
	capture, logger := testutil.NewLogCapture()

	dm, err := New(gw, logger).EnsureDatamodel(context.Background(), "Sales")
	require.NoError(t, err)
	assert.Equal(t, "dm-new", dm.OID)
	assert.Len(t, capture.Messages("creating datamodel"), 1)
}

func TestEnsureDatamodel_ReusesWithoutUpdate(t *testing.T) {
	gw := &testutil.MockSchemaGateway{
		FindDatamodelByTitleFn: func(context.Context, string) (*domain.Datamodel, error) {
			dm := testDatamodel
			return &dm, nil
		},
	}
	capture, logger := testutil.NewLogCapture()

	dm, err := New(gw, logger).EnsureDatamodel(context.Background(), "Sales")
	require.NoError(t, err)
	assert.Equal(t, testDatamodel, dm)
	assert.False(t, gw.Called("CreateDatamodel"))

	lines := capture.Messages("updating existing datamodel")
	require.Len(t, lines, 1)
	assert.Equal(t, "Sales", lines[0].Attrs["title"])
}

func TestEnsureDatamodel_LookupError(t *testing.T) {
	boom := errors.New("boom")
	gw := &testutil.MockSchemaGateway{
		FindDatamodelByTitleFn: func(context.Context, string) (*domain.Datamodel, error) {
			return nil, boom
		},
	}

	_, err := New(gw, discard()).EnsureDatamodel(context.Background(), "Sales")
	assert.ErrorIs(t, err, boom)
	assert.False(t, gw.Called("CreateDatamodel"))
}

// === Dataset ===

func TestEnsureDataset(t *testing.T) {
	tests := []struct {
		name      string
		existing  *domain.Dataset
		wantCall  string
		wantLog   string
		forbidden string
	}{
		{name: "absent creates", wantCall: "CreateDataset", wantLog: "creating dataset", forbidden: "UpdateDataset"},
		{name: "present updates", existing: &testDataset, wantCall: "UpdateDataset", wantLog: "updating existing dataset", forbidden: "CreateDataset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &testutil.MockSchemaGateway{
				FindDatasetByNameFn: func(_ context.Context, dmOID, name string) (*domain.Dataset, error) {
					assert.Equal(t, "dm-1", dmOID)
					assert.Equal(t, "Sales-orders", name)
					return tt.existing, nil
				},
				CreateDatasetFn: func(_ context.Context, _, name, remotePath, filename string) (domain.Dataset, error) {
					assert.Equal(t, "/remote/orders.csv", remotePath)
					assert.Equal(t, "orders.csv", filename)
					return domain.Dataset{OID: "ds-new", Name: name}, nil
				},
				UpdateDatasetFn: func(_ context.Context, _, dsOID, _, _ string) (domain.Dataset, error) {
					assert.Equal(t, "ds-1", dsOID)
					return testDataset, nil
				},
			}
			capture, logger := testutil.NewLogCapture()

			_, err := New(gw, logger).EnsureDataset(context.Background(), testDatamodel, "Sales-orders", "/remote/orders.csv", "orders.csv")
			require.NoError(t, err)
			assert.True(t, gw.Called(tt.wantCall))
			assert.False(t, gw.Called(tt.forbidden))
			assert.Len(t, capture.Messages(tt.wantLog), 1)
		})
	}
}

// === Table ===

func TestEnsureTable_CreatesWhenAbsent(t *testing.T) {
	cols := []domain.ColumnSpec{{ID: "id", Name: "id", Type: "INT"}}
	gw := &testutil.MockSchemaGateway{
		FindTableFn: func(context.Context, string, string, string) (*domain.Table, error) {
			return nil, nil
		},
		CreateTableFn: func(_ context.Context, dmOID, dsOID, tableID string, columns []domain.ColumnSpec) (domain.Table, error) {
			assert.Equal(t, "dm-1", dmOID)
			assert.Equal(t, "ds-1", dsOID)
			assert.Equal(t, "orders", tableID)
			assert.Equal(t, cols, columns)
			return testTable, nil
		},
	}

	tbl, err := New(gw, discard()).EnsureTable(context.Background(), testDatamodel, testDataset, "orders", cols)
	require.NoError(t, err)
	assert.Equal(t, "tbl-1", tbl.OID)
}

func TestEnsureTable_UpdatesExistingByOID(t *testing.T) {
	gw := &testutil.MockSchemaGateway{
		FindTableFn: func(context.Context, string, string, string) (*domain.Table, error) {
			tbl := testTable
			return &tbl, nil
		},
		UpdateTableFn: func(_ context.Context, _, _, tableOID string, _ []domain.ColumnSpec) (domain.Table, error) {
			assert.Equal(t, "tbl-1", tableOID)
			return testTable, nil
		},
	}
	capture, logger := testutil.NewLogCapture()

	_, err := New(gw, logger).EnsureTable(context.Background(), testDatamodel, testDataset, "orders", nil)
	require.NoError(t, err)
	assert.False(t, gw.Called("CreateTable"))
	lines := capture.Messages("updating existing table")
	require.Len(t, lines, 1)
	assert.Equal(t, "orders", lines[0].Attrs["table"])
}

func TestEnsureTable_CreateError(t *testing.T) {
	typeErr := &domain.UnrecognizedTypeError{Type: "BOOLEAN"}
	gw := &testutil.MockSchemaGateway{
		FindTableFn: func(context.Context, string, string, string) (*domain.Table, error) {
			return nil, nil
		},
		CreateTableFn: func(context.Context, string, string, string, []domain.ColumnSpec) (domain.Table, error) {
			return domain.Table{}, typeErr
		},
	}

	_, err := New(gw, discard()).EnsureTable(context.Background(), testDatamodel, testDataset, "orders", nil)
	var got *domain.UnrecognizedTypeError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "BOOLEAN", got.Type)
}

// === Relationships ===

func TestEnsureRelationships(t *testing.T) {
	var gotSource, gotTarget domain.Endpoint
	gw := &testutil.MockSchemaGateway{
		FindTableByNameFn: func(_ context.Context, dmOID, name string) (domain.TableLocation, error) {
			assert.Equal(t, "dm-1", dmOID)
			assert.Equal(t, "customers", name)
			return customers, nil
		},
		CreateRelationshipFn: func(_ context.Context, dmOID string, source, target domain.Endpoint) (json.RawMessage, error) {
			assert.Equal(t, "dm-1", dmOID)
			gotSource, gotTarget = source, target
			return json.RawMessage(`{"oid":"rel-1"}`), nil
		},
	}

	err := New(gw, discard()).EnsureRelationships(context.Background(), testDatamodel, testDataset, testTable,
		[]domain.RelationshipSpec{{
			Column: "customer_id",
			Target: domain.RelationshipTarget{Table: "customers", Column: "id"},
		}})
	require.NoError(t, err)
	assert.Equal(t, domain.Endpoint{Dataset: "ds-1", Table: "tbl-1", Column: "col-2"}, gotSource)
	assert.Equal(t, domain.Endpoint{Dataset: "ds-9", Table: "tbl-9", Column: "col-9"}, gotTarget)
}

func TestEnsureRelationships_None(t *testing.T) {
	gw := &testutil.MockSchemaGateway{}
	err := New(gw, discard()).EnsureRelationships(context.Background(), testDatamodel, testDataset, testTable, nil)
	require.NoError(t, err)
	assert.Empty(t, gw.Calls)
}

func TestEnsureRelationships_MissingSourceColumn(t *testing.T) {
	gw := &testutil.MockSchemaGateway{}

	err := New(gw, discard()).EnsureRelationships(context.Background(), testDatamodel, testDataset, testTable,
		[]domain.RelationshipSpec{{Column: "nope", Target: domain.RelationshipTarget{Table: "customers", Column: "id"}}})
	var colErr *domain.ColumnNotFoundError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, `Cannot find column "nope" in table "orders"`, err.Error())
	assert.Empty(t, gw.Calls)
}

func TestEnsureRelationships_MissingTargetColumn(t *testing.T) {
	gw := &testutil.MockSchemaGateway{
		FindTableByNameFn: func(context.Context, string, string) (domain.TableLocation, error) {
			return customers, nil
		},
	}

	err := New(gw, discard()).EnsureRelationships(context.Background(), testDatamodel, testDataset, testTable,
		[]domain.RelationshipSpec{{Column: "customer_id", Target: domain.RelationshipTarget{Table: "customers", Column: "uuid"}}})
	var colErr *domain.ColumnNotFoundError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, "customers", colErr.Table)
	assert.False(t, gw.Called("CreateRelationship"))
}

func TestEnsureRelationships_MissingTargetTable(t *testing.T) {
	gw := &testutil.MockSchemaGateway{
		FindTableByNameFn: func(_ context.Context, _, name string) (domain.TableLocation, error) {
			return domain.TableLocation{}, domain.ErrNotFound("Cannot find table \"%s\"", name)
		},
	}

	err := New(gw, discard()).EnsureRelationships(context.Background(), testDatamodel, testDataset, testTable,
		[]domain.RelationshipSpec{{Column: "customer_id", Target: domain.RelationshipTarget{Table: "x", Column: "id"}}})
	require.Error(t, err)
	assert.Equal(t, `Cannot find table "x"`, err.Error())
}
