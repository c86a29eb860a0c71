package blob

import (
	"context"
	"fmt"

	"subtree-go/internal/config"
	"subtree-go/internal/subtree"
)

// NewStoreFromConfig creates a BlobStore based on the storage config type.
// When cfg.Encrypted is set the backend is wrapped in an EncryptedStore;
// enc may be nil only for unencrypted storage.
func NewStoreFromConfig(cfg config.StorageConfig, enc subtree.Encryptor) (subtree.BlobStore, error) {
	var store subtree.BlobStore
	switch cfg.Type {
	case "memory":
		store = NewMemoryStore()
	case "filesystem", "":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem storage requires fs_root to be set")
		}
		fs, err := NewFilesystemStore(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		store = fs
	case "s3":
		s3s, err := NewS3Store(context.Background(), cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			return nil, err
		}
		store = s3s
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}

	if cfg.Encrypted {
		if enc == nil {
			return nil, fmt.Errorf("encrypted storage requires an encryptor")
		}
		return NewEncryptedStore(store, enc), nil
	}
	return store, nil
}
