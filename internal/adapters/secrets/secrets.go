// Package secrets resolves credentials from AWS Secrets Manager, HashiCorp
// Vault, or the local environment.
package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/kevin07696/royalty-service/internal/adapters/ports"
	"go.uber.org/zap"
)

// Backend names accepted in SECRET_MANAGER
const (
	BackendEnv   = "env"
	BackendAWS   = "aws"
	BackendVault = "vault"
)

// Config selects and configures one backend
type Config struct {
	Backend  string
	CacheTTL time.Duration

	LocalPath string

	AWSRegion   string
	AWSProfile  string
	AWSEndpoint string

	VaultAddress    string
	VaultAuthMethod string
	VaultToken      string
	VaultRoleID     string
	VaultSecretID   string
	VaultK8sRole    string
	VaultMountPath  string
	VaultNamespace  string
}

// New creates the secret manager named by cfg.Backend
func New(ctx context.Context, cfg Config, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	logger = logger.Named("secrets")

	switch cfg.Backend {
	case BackendAWS:
		awsCfg := DefaultAWSSecretsManagerConfig(cfg.AWSRegion)
		awsCfg.Profile = cfg.AWSProfile
		awsCfg.Endpoint = cfg.AWSEndpoint
		if cfg.CacheTTL > 0 {
			awsCfg.CacheTTL = cfg.CacheTTL
		}
		return NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)

	case BackendVault:
		vaultCfg := DefaultVaultConfig(cfg.VaultAddress)
		if cfg.VaultAuthMethod != "" {
			vaultCfg.AuthMethod = cfg.VaultAuthMethod
		}
		if cfg.VaultMountPath != "" {
			vaultCfg.MountPath = cfg.VaultMountPath
		}
		vaultCfg.Token = cfg.VaultToken
		vaultCfg.RoleID = cfg.VaultRoleID
		vaultCfg.SecretID = cfg.VaultSecretID
		vaultCfg.K8sRole = cfg.VaultK8sRole
		vaultCfg.Namespace = cfg.VaultNamespace
		if cfg.CacheTTL > 0 {
			vaultCfg.CacheTTL = cfg.CacheTTL
		}
		return NewVaultAdapter(ctx, vaultCfg, logger)

	case BackendEnv, "":
		logger.Warn("Using local secret manager - NOT for production use!")
		return NewLocalSecretManager(cfg.LocalPath, logger), nil

	default:
		return nil, fmt.Errorf("unsupported secret manager %q", cfg.Backend)
	}
}

// Resolve returns the secret at path, or fallback when path is empty. A
// non-empty version pins the read to that version, which keeps the previous
// credential usable while a rotation is rolled out.
func Resolve(ctx context.Context, sm ports.SecretManagerAdapter, path, version, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	var (
		secret *ports.Secret
		err    error
	)
	if version != "" {
		secret, err = sm.GetSecretVersion(ctx, path, version)
	} else {
		secret, err = sm.GetSecret(ctx, path)
	}
	if err != nil {
		return "", fmt.Errorf("resolve secret %s: %w", path, err)
	}
	return secret.Value, nil
}
