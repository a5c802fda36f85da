package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/kevin07696/checkout-callback-service/internal/adapters/ports"
)

// VaultConfig configures the Vault KV reader for gateway credentials.
type VaultConfig struct {
	Address string

	// AuthMethod is "token" or "approle"
	AuthMethod string
	Token      string
	RoleID     string
	SecretID   string

	// Namespace (Vault Enterprise only)
	Namespace string

	MountPath string
	// KVVersion is "v1" or "v2"
	KVVersion string

	CacheTTL      time.Duration
	TLSSkipVerify bool
}

// DefaultVaultConfig returns token auth against a KV v2 engine mounted at "secret".
func DefaultVaultConfig(address string) *VaultConfig {
	return &VaultConfig{
		Address:    address,
		AuthMethod: "token",
		MountPath:  "secret",
		KVVersion:  "v2",
		CacheTTL:   5 * time.Minute,
	}
}

type kvReader func(ctx context.Context, path string) (*vault.KVSecret, error)

type vaultAdapter struct {
	read   kvReader
	mount  string
	logger *zap.Logger
	cache  *secretCache
}

// NewVaultAdapter logs in to Vault and returns a cached KV reader.
func NewVaultAdapter(ctx context.Context, cfg *VaultConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	client, err := newVaultClient(cfg)
	if err != nil {
		return nil, err
	}

	login, ok := vaultLogins[cfg.AuthMethod]
	if !ok {
		return nil, fmt.Errorf("unsupported vault auth method %q", cfg.AuthMethod)
	}
	if err := login(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("vault %s login: %w", cfg.AuthMethod, err)
	}

	var read kvReader
	switch cfg.KVVersion {
	case "v1":
		read = client.KVv1(cfg.MountPath).Get
	case "v2", "":
		read = client.KVv2(cfg.MountPath).Get
	default:
		return nil, fmt.Errorf("unsupported KV version %q", cfg.KVVersion)
	}

	logger.Debug("Vault KV reader ready",
		zap.String("mount_path", cfg.MountPath),
		zap.String("kv_version", cfg.KVVersion),
	)

	return &vaultAdapter{
		read:   read,
		mount:  cfg.MountPath,
		logger: logger,
		cache:  newSecretCache(cfg.CacheTTL),
	}, nil
}

func newVaultClient(cfg *VaultConfig) (*vault.Client, error) {
	vc := vault.DefaultConfig()
	vc.Address = cfg.Address
	if cfg.TLSSkipVerify {
		if err := vc.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("vault tls: %w", err)
		}
	}

	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	return client, nil
}

var vaultLogins = map[string]func(context.Context, *vault.Client, *VaultConfig) error{
	"token": func(_ context.Context, client *vault.Client, cfg *VaultConfig) error {
		if cfg.Token == "" {
			return errors.New("token is empty")
		}
		client.SetToken(cfg.Token)
		return nil
	},
	"approle": func(ctx context.Context, client *vault.Client, cfg *VaultConfig) error {
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return errors.New("role_id and secret_id are required")
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return err
		}
		if resp == nil || resp.Auth == nil {
			return errors.New("no auth info in login response")
		}
		client.SetToken(resp.Auth.ClientToken)
		return nil
	},
}

// GetSecret reads a KV secret. A "value" key is returned as is; otherwise
// the whole data map is returned as a JSON document.
func (a *vaultAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := a.cache.get(path); cached != nil {
		return cached, nil
	}

	kv, err := a.read(ctx, path)
	if errors.Is(err, vault.ErrSecretNotFound) {
		return nil, fmt.Errorf("secret not found: %s/%s", a.mount, path)
	}
	if err != nil {
		a.logger.Error("Vault read failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("vault read %s: %w", path, err)
	}
	if kv == nil {
		return nil, fmt.Errorf("secret not found: %s/%s", a.mount, path)
	}

	value, err := vaultValue(kv.Data)
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", path, err)
	}

	result := &ports.Secret{Value: value, Version: "1"}
	if md := kv.VersionMetadata; md != nil {
		result.Version = strconv.Itoa(md.Version)
		if !md.CreatedTime.IsZero() {
			result.CreatedAt = md.CreatedTime.Format(time.RFC3339)
		}
	}
	a.cache.set(path, result)
	return result, nil
}

func vaultValue(data map[string]interface{}) (string, error) {
	if v, ok := data["value"].(string); ok && v != "" {
		return v, nil
	}
	if len(data) == 0 {
		return "", errors.New("secret has no data")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode secret data: %w", err)
	}
	return string(raw), nil
}
