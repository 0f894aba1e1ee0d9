package secrets

import (
	"context"

	"helpdesk-collab/backend/pkg/logger"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// New builds the secrets manager used at bootstrap: Vault when
// configured, environment variables otherwise.
func New(log *logger.Logger) (Manager, error) {
	return NewVaultManager(log)
}
