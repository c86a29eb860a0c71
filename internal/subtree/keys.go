package subtree

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// KeyGenerator produces candidate storage keys. Keys must be unguessable;
// uniqueness is the allocator's job, not the generator's.
type KeyGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// maxKeyAttempts bounds the collision retry loop. Random UUID collisions
// are astronomically rare; hitting the bound means the generator or the
// existence check is broken.
const maxKeyAttempts = 32

// AllocateKey returns a storage key that exists does not know yet,
// retrying on collision. The existence predicate is injected so the
// allocator can be tested without a real store.
func AllocateKey(gen KeyGenerator, exists func(string) (bool, error)) (string, error) {
	for i := 0; i < maxKeyAttempts; i++ {
		key := gen.New()
		taken, err := exists(key)
		if err != nil {
			return "", fmt.Errorf("checking key existence: %w", err)
		}
		if !taken {
			return key, nil
		}
	}
	return "", fmt.Errorf("no unique storage key after %d attempts", maxKeyAttempts)
}
