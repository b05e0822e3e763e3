package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"cube-sync/internal/domain"
)

const datamodelsPath = "/api/v2/datamodels"

// FindDatamodelByTitle returns the datamodel with the given title, or nil if
// none exists. Server-side failures are treated as absence so callers fall
// through to creation.
func (s *Session) FindDatamodelByTitle(ctx context.Context, title string) (*domain.Datamodel, error) {
	var out *wireDatamodel
	err := s.call(ctx, http.MethodGet, datamodelsPath+"/schema", url.Values{"title": {title}}, nil, &out)
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	dm, err := out.toDomain()
	if err != nil {
		return nil, err
	}
	return &dm, nil
}

// CreateDatamodel creates an empty datamodel.
func (s *Session) CreateDatamodel(ctx context.Context, title string) (domain.Datamodel, error) {
	var out wireDatamodel
	if err := s.call(ctx, http.MethodPost, datamodelsPath, nil, map[string]string{"title": title}, &out); err != nil {
		return domain.Datamodel{}, err
	}
	return out.toDomain()
}

// DeleteDatamodel removes a datamodel and everything it owns.
func (s *Session) DeleteDatamodel(ctx context.Context, oid string) error {
	return s.call(ctx, http.MethodDelete, fmt.Sprintf("%s/%s", datamodelsPath, url.PathEscape(oid)), nil, nil, nil)
}
