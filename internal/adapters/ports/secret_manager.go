package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Metadata  map[string]string // Backend-specific metadata (ARN, name, tags)
	Value     string            // The secret value (e.g., a database password)
	Version   string            // Secret version identifier
	CreatedAt string            // When this version was created
}

// SecretManagerAdapter defines the port for reading credentials from a secret
// management service. Supported backends: AWS Secrets Manager, HashiCorp
// Vault, and a local env/file backend for development.
// Implementations authenticate, cache with a TTL, and return an error when the
// secret does not exist or the backend is unreachable.
type SecretManagerAdapter interface {
	// GetSecret retrieves the current version of a secret by its path/name.
	// Path format depends on implementation:
	//   - AWS: "royalty-service/database/password" or full ARN
	//   - Vault: "royalty-service/database" under the configured KV mount
	//   - Local: environment variable name or file under the base path
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// GetSecretVersion retrieves a specific version of a secret.
	// Useful during rotation while the previous credential is still valid.
	GetSecretVersion(ctx context.Context, path string, version string) (*Secret, error)
}
