package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevin07696/royalty-service/internal/adapters/ports"
	"go.uber.org/zap"
)

// localSecretManager resolves secrets from the environment, then from files
// under basePath.
// WARNING: This is for development only. Use AWS Secrets Manager or Vault in production.
type localSecretManager struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalSecretManager creates a secret manager backed by env vars and local files
func NewLocalSecretManager(basePath string, logger *zap.Logger) ports.SecretManagerAdapter {
	return &localSecretManager{
		basePath: basePath,
		logger:   logger,
	}
}

// GetSecret looks up the path as an environment variable name first
// ("royalty/db-password" becomes ROYALTY_DB_PASSWORD), then as a file.
// Files may hold plain text or {"value": ..., "tags": ..., "created_at": ...}.
func (m *localSecretManager) GetSecret(ctx context.Context, secretPath string) (*ports.Secret, error) {
	if value, ok := os.LookupEnv(envName(secretPath)); ok && value != "" {
		m.logger.Debug("Secret read from environment", zap.String("path", secretPath))
		return &ports.Secret{Value: value, Version: "env"}, nil
	}
	if m.basePath == "" {
		return nil, fmt.Errorf("secret not found: %s", secretPath)
	}

	filePath := filepath.Join(m.basePath, filepath.Clean("/"+secretPath))
	m.logger.Debug("Reading secret from filesystem", zap.String("path", secretPath))

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("secret not found: %s", secretPath)
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	var secretData struct {
		Value     string            `json:"value"`
		Tags      map[string]string `json:"tags"`
		CreatedAt string            `json:"created_at"`
	}
	if err := json.Unmarshal(data, &secretData); err == nil && secretData.Value != "" {
		return &ports.Secret{
			Value:     secretData.Value,
			Version:   "v1",
			Metadata:  secretData.Tags,
			CreatedAt: secretData.CreatedAt,
		}, nil
	}

	return &ports.Secret{
		Value:   strings.TrimRight(string(data), "\r\n"),
		Version: "v1",
	}, nil
}

// GetSecretVersion returns the only version a local secret has
func (m *localSecretManager) GetSecretVersion(ctx context.Context, path string, version string) (*ports.Secret, error) {
	return m.GetSecret(ctx, path)
}

func envName(path string) string {
	upper := strings.ToUpper(path)
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, upper)
}
