package encryption

import (
	"fmt"

	"subtree-go/internal/config"
	"subtree-go/internal/subtree"
)

// NewEncryptorFromConfig creates an Encryptor based on the configured type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (subtree.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg.RecipientPath, cfg.IdentityPath), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
