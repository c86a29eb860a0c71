package subtree

// Service is the orchestration layer for submission file trees: it turns
// uploads into logical trees, persists them, and serves queries and
// restores against the persisted records.
type Service struct {
	store       TreeStore
	blobs       BlobStore
	decoder     Decoder
	reserved    *ReservedNames
	logger      Logger
	clock       Clock
	keygen      KeyGenerator
	maxFileSize int64
}

// NewService creates a Service with the provided dependencies.
// maxFileSize is the per-file cap applied to plain uploads; the decoder
// carries its own copy for archive members.
func NewService(store TreeStore, blobs BlobStore, decoder Decoder, reserved *ReservedNames, logger Logger, clock Clock, keygen KeyGenerator, maxFileSize int64) *Service {
	return &Service{
		store:       store,
		blobs:       blobs,
		decoder:     decoder,
		reserved:    reserved,
		logger:      logger,
		clock:       clock,
		keygen:      keygen,
		maxFileSize: maxFileSize,
	}
}

// allocateKey picks a fresh storage key, collision-checked against the
// blob store.
func (s *Service) allocateKey() (string, error) {
	return AllocateKey(s.keygen, s.blobs.Exists)
}
