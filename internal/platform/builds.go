package platform

import (
	"context"
	"net/http"
	"net/url"

	"cube-sync/internal/domain"
)

const buildsPath = "/api/v2/builds"

// TriggerBuild starts a cube build and returns the build oid.
func (s *Session) TriggerBuild(ctx context.Context, datamodelOID string, buildType domain.BuildType) (string, error) {
	body := map[string]interface{}{
		"datamodelId": datamodelOID,
		"buildType":   string(buildType),
		"rowLimit":    0,
	}
	var out wireBuild
	if err := s.call(ctx, http.MethodPost, buildsPath, nil, body, &out); err != nil {
		return "", err
	}
	if out.OID == "" {
		return "", &domain.MissingFieldError{Entity: "build", Field: "oid"}
	}
	return out.OID, nil
}

// GetBuildStatus returns the current status of a build. A null status means
// the build has not been picked up yet and is reported as waiting.
func (s *Session) GetBuildStatus(ctx context.Context, buildOID string) (domain.BuildStatus, error) {
	var out wireBuild
	if err := s.call(ctx, http.MethodGet, buildsPath+"/"+url.PathEscape(buildOID), nil, nil, &out); err != nil {
		return "", err
	}
	if out.Status == nil || *out.Status == "" {
		return domain.BuildStatusWaiting, nil
	}
	return domain.BuildStatus(*out.Status), nil
}
