package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"cube-sync/internal/domain"
	"cube-sync/internal/httpclient"
)

const (
	validateFilePath = "/storage/fs/validate_file"
	uploadFilePath   = "/storage/fs/upload"
	uploadTokenKey   = "X-Upload-Token"
)

// UploadFile sends a local file to platform storage and returns the remote
// path datasets should reference. The file is read fully into memory.
func (s *Session) UploadFile(ctx context.Context, localPath string) (string, error) {
	content, err := os.ReadFile(localPath) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return "", fmt.Errorf("read upload file: %w", err)
	}
	filename := filepath.Base(localPath)

	token, err := s.validateFile(ctx, filename, len(content))
	if err != nil {
		return "", err
	}

	target := s.http.URL(uploadFilePath, nil)
	resp, err := s.http.DoMultipart(ctx, uploadFilePath, "file", filename, content,
		http.Header{uploadTokenKey: {token}})
	if err != nil {
		return "", requestError(http.MethodPost, target, err)
	}
	if err := httpclient.CheckError(resp); err != nil {
		return "", requestError(http.MethodPost, target, err)
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return "", requestError(http.MethodPost, target, err)
	}

	var out []struct {
		StorageInfo struct {
			Path string `json:"path"`
		} `json:"storageInfo"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if len(out) == 0 || out[0].StorageInfo.Path == "" {
		return "", &domain.MissingFieldError{Entity: "upload response", Field: "storageInfo.path"}
	}

	s.logger.Debug("file uploaded", "file", filename, "bytes", len(content), "path", out[0].StorageInfo.Path)
	return out[0].StorageInfo.Path, nil
}

// validateFile announces an upload and returns the short-lived upload token.
func (s *Session) validateFile(ctx context.Context, filename string, size int) (string, error) {
	target := s.http.URL(validateFilePath, nil)
	resp, err := s.http.Do(ctx, http.MethodPost, validateFilePath, nil, map[string]interface{}{
		"filename": filename,
		"size":     size,
	})
	if err != nil {
		return "", requestError(http.MethodPost, target, err)
	}
	body, err := httpclient.ReadBody(resp)
	if err != nil {
		return "", requestError(http.MethodPost, target, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.ErrValidation("upload validation failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode validate_file response: %w", err)
	}
	if out.Token == "" {
		return "", &domain.MissingFieldError{Entity: "validate_file response", Field: "token"}
	}
	return out.Token, nil
}
