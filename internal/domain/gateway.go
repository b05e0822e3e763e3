package domain

import (
	"context"
	"encoding/json"
)

// SchemaGateway reads and writes the datamodel hierarchy on the platform.
// Find* methods return nil without error when the resource does not exist.
type SchemaGateway interface {
	FindDatamodelByTitle(ctx context.Context, title string) (*Datamodel, error)
	CreateDatamodel(ctx context.Context, title string) (Datamodel, error)

	FindDatasetByName(ctx context.Context, datamodelOID, name string) (*Dataset, error)
	CreateDataset(ctx context.Context, datamodelOID, name, remotePath, filename string) (Dataset, error)
	UpdateDataset(ctx context.Context, datamodelOID, datasetOID, remotePath, filename string) (Dataset, error)

	FindTable(ctx context.Context, datamodelOID, datasetOID, tableID string) (*Table, error)
	CreateTable(ctx context.Context, datamodelOID, datasetOID, tableID string, columns []ColumnSpec) (Table, error)
	UpdateTable(ctx context.Context, datamodelOID, datasetOID, tableOID string, columns []ColumnSpec) (Table, error)

	// FindTableByName fails with *NotFoundError on a miss.
	FindTableByName(ctx context.Context, datamodelOID, tableName string) (TableLocation, error)
	CreateRelationship(ctx context.Context, datamodelOID string, source, target Endpoint) (json.RawMessage, error)
}

// BuildGateway starts cube builds and reports their progress.
type BuildGateway interface {
	TriggerBuild(ctx context.Context, datamodelOID string, buildType BuildType) (string, error)
	GetBuildStatus(ctx context.Context, buildOID string) (BuildStatus, error)
}

// FileUploader places a local file in platform storage and returns its remote path.
type FileUploader interface {
	UploadFile(ctx context.Context, localPath string) (string, error)
}
