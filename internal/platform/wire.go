package platform

import (
	"errors"
	"fmt"
	"net/http"

	"cube-sync/internal/domain"
	"cube-sync/internal/httpclient"
)

// Wire shapes of platform payloads. Fields are decoded as-is and converted
// through the domain factories, which reject missing required fields.

type wireDatamodel struct {
	OID   string `json:"oid"`
	Title string `json:"title"`
}

func (w wireDatamodel) toDomain() (domain.Datamodel, error) {
	return domain.NewDatamodel(w.OID, w.Title)
}

type wireDataset struct {
	OID    string `json:"oid"`
	Name   string `json:"name"`
	Schema *struct {
		Tables []wireTable `json:"tables"`
	} `json:"schema"`
}

func (w wireDataset) toDomain() (domain.Dataset, error) {
	return domain.NewDataset(w.OID, w.Name)
}

func (w wireDataset) tables() []wireTable {
	if w.Schema == nil {
		return nil
	}
	return w.Schema.Tables
}

// table returns the table whose id matches tableID.
func (w wireDataset) table(tableID string) (wireTable, bool) {
	for _, t := range w.tables() {
		if t.ID == tableID {
			return t, true
		}
	}
	return wireTable{}, false
}

type wireTable struct {
	OID     string       `json:"oid"`
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Columns []wireColumn `json:"columns"`
}

func (w wireTable) toDomain() (domain.Table, error) {
	columns := make([]domain.Column, 0, len(w.Columns))
	for i, wc := range w.Columns {
		col, err := domain.NewColumn(wc.OID, wc.ID, wc.Name, wc.Type, wc.Size, wc.Precision, wc.Scale)
		if err != nil {
			return domain.Table{}, fmt.Errorf("table %q column %d: %w", w.Name, i, err)
		}
		columns = append(columns, col)
	}
	return domain.NewTable(w.OID, w.ID, w.Name, columns)
}

type wireColumn struct {
	OID       string `json:"oid"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      *int   `json:"type"`
	Size      *int   `json:"size"`
	Precision *int   `json:"precision"`
	Scale     *int   `json:"scale"`
}

type wireBuild struct {
	OID    string  `json:"oid"`
	Status *string `json:"status"`
}

// isAbsent reports whether a lookup failure means "the resource does not
// exist": any server-side error, or a plain 404.
func isAbsent(err error) bool {
	var apiErr *httpclient.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.IsServerError() || apiErr.HTTPStatus == http.StatusNotFound
}
