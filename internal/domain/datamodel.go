package domain

// Datamodel is the top-level container on the platform. Titles are unique
// across the platform.
type Datamodel struct {
	OID   string
	Title string
}

// NewDatamodel validates and builds a Datamodel.
func NewDatamodel(oid, title string) (Datamodel, error) {
	if oid == "" {
		return Datamodel{}, &MissingFieldError{Entity: "datamodel", Field: "oid"}
	}
	if title == "" {
		return Datamodel{}, &MissingFieldError{Entity: "datamodel", Field: "title"}
	}
	return Datamodel{OID: oid, Title: title}, nil
}

// Dataset is a data source registered inside a datamodel. Names are unique
// within the owning datamodel.
type Dataset struct {
	OID  string
	Name string
}

// NewDataset validates and builds a Dataset.
func NewDataset(oid, name string) (Dataset, error) {
	if oid == "" {
		return Dataset{}, &MissingFieldError{Entity: "dataset", Field: "oid"}
	}
	if name == "" {
		return Dataset{}, &MissingFieldError{Entity: "dataset", Field: "name"}
	}
	return Dataset{OID: oid, Name: name}, nil
}

// Table is the schema a dataset exposes. ID is the identifier the table was
// created with; lookups match on it.
type Table struct {
	OID     string
	ID      string
	Name    string
	Columns []Column
}

// NewTable validates and builds a Table.
func NewTable(oid, id, name string, columns []Column) (Table, error) {
	if oid == "" {
		return Table{}, &MissingFieldError{Entity: "table", Field: "oid"}
	}
	if name == "" {
		return Table{}, &MissingFieldError{Entity: "table", Field: "name"}
	}
	return Table{OID: oid, ID: id, Name: name, Columns: columns}, nil
}

// Column returns the column with the given name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Column is a single table column as stored on the platform.
type Column struct {
	OID       string
	ID        string
	Name      string
	Type      int
	Size      int
	Precision int
	Scale     int
}

// NewColumn validates and builds a Column. Numeric attributes are passed as
// pointers so absence can be told apart from zero.
func NewColumn(oid, id, name string, typ, size, precision, scale *int) (Column, error) {
	if oid == "" {
		return Column{}, &MissingFieldError{Entity: "column", Field: "oid"}
	}
	if name == "" {
		return Column{}, &MissingFieldError{Entity: "column", Field: "name"}
	}
	required := []struct {
		field string
		value *int
	}{
		{"type", typ},
		{"size", size},
		{"precision", precision},
		{"scale", scale},
	}
	for _, r := range required {
		if r.value == nil {
			return Column{}, &MissingFieldError{Entity: "column", Field: r.field}
		}
	}
	return Column{
		OID:       oid,
		ID:        id,
		Name:      name,
		Type:      *typ,
		Size:      *size,
		Precision: *precision,
		Scale:     *scale,
	}, nil
}

// TableLocation is a table together with the dataset that owns it.
type TableLocation struct {
	Dataset Dataset
	Table   Table
}

// Endpoint is one side of a relationship.
type Endpoint struct {
	Dataset string `json:"dataset"`
	Table   string `json:"table"`
	Column  string `json:"column"`
}

// ColumnSpec is a desired column as configured by the operator.
type ColumnSpec struct {
	ID   string
	Name string
	Type string
	Size string
}

// RelationshipSpec joins a column of the synced table to a column of a table
// that already exists in the datamodel.
type RelationshipSpec struct {
	Column string
	Target RelationshipTarget
}

// RelationshipTarget names the far side of a relationship.
type RelationshipTarget struct {
	Table  string
	Column string
}

// BuildStatus is the lifecycle state reported for a cube build.
type BuildStatus string

// Build statuses with special meaning. Any other value is terminal success.
const (
	BuildStatusWaiting  BuildStatus = "waiting"
	BuildStatusBuilding BuildStatus = "building"
	BuildStatusDone     BuildStatus = "done"
	BuildStatusFailed   BuildStatus = "failed"
)

// InProgress reports whether the build should keep being polled.
func (s BuildStatus) InProgress() bool {
	return s == BuildStatusWaiting || s == BuildStatusBuilding
}

// BuildType selects how much of the cube a build recomputes.
type BuildType string

// Build types accepted by the platform.
const (
	BuildTypeFull          BuildType = "full"
	BuildTypeByTable       BuildType = "by_table"
	BuildTypeSchemaChanges BuildType = "schema_changes"
)

// Valid reports whether t is a known build type.
func (t BuildType) Valid() bool {
	switch t {
	case BuildTypeFull, BuildTypeByTable, BuildTypeSchemaChanges:
		return true
	}
	return false
}
