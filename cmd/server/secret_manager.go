package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kevin07696/checkout-callback-service/internal/adapters/ports"
	"github.com/kevin07696/checkout-callback-service/internal/adapters/secrets"
	"github.com/kevin07696/checkout-callback-service/internal/config"
)

// initSecretManager selects the secret backend holding the gateway API credentials.
//
// Backends:
//   - vault: HashiCorp Vault KV (token or approle auth)
//   - aws: AWS Secrets Manager
//   - local: JSON files under SECRETS_LOCAL_PATH, development only
func initSecretManager(ctx context.Context, cfg config.SecretsConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	switch cfg.Backend {
	case "vault":
		vaultCfg := secrets.DefaultVaultConfig(cfg.VaultAddress)
		if cfg.VaultAuth != "" {
			vaultCfg.AuthMethod = cfg.VaultAuth
		}
		vaultCfg.Token = cfg.VaultToken
		vaultCfg.RoleID = cfg.VaultRoleID
		vaultCfg.SecretID = cfg.VaultSecretID
		if cfg.VaultMountPath != "" {
			vaultCfg.MountPath = cfg.VaultMountPath
		}
		if cfg.VaultKVVersion != "" {
			vaultCfg.KVVersion = cfg.VaultKVVersion
		}
		if cfg.CacheTTL > 0 {
			vaultCfg.CacheTTL = cfg.CacheTTL
		}

		sm, err := secrets.NewVaultAdapter(ctx, vaultCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("vault: %w", err)
		}
		logger.Info("Vault secret manager initialized",
			zap.String("address", cfg.VaultAddress),
			zap.String("auth_method", vaultCfg.AuthMethod),
		)
		return sm, nil

	case "aws":
		awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.AWSRegion)
		awsCfg.Profile = cfg.AWSProfile
		awsCfg.Endpoint = cfg.AWSEndpoint
		if cfg.CacheTTL > 0 {
			awsCfg.CacheTTL = cfg.CacheTTL
		}

		sm, err := secrets.NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("aws secrets manager: %w", err)
		}
		logger.Info("AWS Secrets Manager initialized", zap.String("region", cfg.AWSRegion))
		return sm, nil

	case "local":
		logger.Warn("Using LOCAL secret manager - NOT for production use!",
			zap.String("path", cfg.LocalPath),
		)
		return secrets.NewLocalSecretManager(cfg.LocalPath, logger), nil

	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.Backend)
	}
}
