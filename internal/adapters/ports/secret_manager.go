package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Value     string            // The secret value (e.g., API password)
	Version   string            // Secret version identifier
	Metadata  map[string]string // Additional secret metadata
	CreatedAt string            // When this version was created
}

// SecretManagerAdapter defines the port for reading secrets from a secret management service.
// Supports AWS Secrets Manager, HashiCorp Vault and local files.
// Implementations cache secrets with a TTL.
type SecretManagerAdapter interface {
	// GetSecret retrieves a secret by its path/name
	// Path format depends on implementation:
	//   - AWS: "checkout-callback-service/gateway/api"
	//   - Vault: "secret/data/checkout-callback-service/gateway"
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
