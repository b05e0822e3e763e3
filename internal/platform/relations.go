package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"cube-sync/internal/domain"
)

// CreateRelationship joins two columns. The platform's raw response is
// returned as-is.
func (s *Session) CreateRelationship(ctx context.Context, datamodelOID string, source, target domain.Endpoint) (json.RawMessage, error) {
	body := map[string]interface{}{
		"columns": []domain.Endpoint{source, target},
	}
	path := fmt.Sprintf("%s/%s/schema/relations", datamodelsPath, url.PathEscape(datamodelOID))
	var out json.RawMessage
	if err := s.call(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}
