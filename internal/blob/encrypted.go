package blob

import (
	"fmt"
	"io"
	"os"
	"sync"

	"subtree-go/internal/subtree"
)

// EncryptedStore wraps another store and encrypts every blob before it
// reaches the inner store. Writing needs only the public key; Open, Size
// and FileContents-style reads require Unlock to have been called first.
//
// Sizes returned by Put and Adopt are plaintext sizes, so quota accounting
// sees the same numbers with and without encryption.
type EncryptedStore struct {
	inner subtree.BlobStore
	enc   subtree.Encryptor

	mu  sync.RWMutex
	dec subtree.Decryptor
}

var _ subtree.BlobStore = (*EncryptedStore)(nil)

func NewEncryptedStore(inner subtree.BlobStore, enc subtree.Encryptor) *EncryptedStore {
	return &EncryptedStore{inner: inner, enc: enc}
}

// Unlock decrypts the private key with the passphrase, enabling reads.
func (s *EncryptedStore) Unlock(passphrase string) error {
	dec, err := s.enc.Unlock(passphrase)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.dec = dec
	s.mu.Unlock()
	return nil
}

func (s *EncryptedStore) decryptor() (subtree.Decryptor, error) {
	s.mu.RLock()
	dec := s.dec
	s.mu.RUnlock()
	if dec == nil {
		return nil, fmt.Errorf("store is locked: unlock with passphrase first")
	}
	return dec, nil
}

func (s *EncryptedStore) Adopt(key string, srcPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("opening source: %w", err)
	}
	n, err := s.Put(key, src)
	src.Close()
	if err != nil {
		return 0, err
	}
	if err := os.Remove(srcPath); err != nil {
		return 0, fmt.Errorf("removing source: %w", err)
	}
	return n, nil
}

func (s *EncryptedStore) Put(key string, r io.Reader) (int64, error) {
	cr := &countingReader{r: r}
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(s.enc.Encrypt(cr, pw))
	}()
	if _, err := s.inner.Put(key, pr); err != nil {
		pr.CloseWithError(err)
		return 0, err
	}
	return cr.n, nil
}

func (s *EncryptedStore) Open(key string) (io.ReadCloser, error) {
	dec, err := s.decryptor()
	if err != nil {
		return nil, err
	}
	ct, err := s.inner.Open(key)
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	go func() {
		err := dec.Decrypt(ct, pw)
		ct.Close()
		pw.CloseWithError(err)
	}()
	return pr, nil
}

func (s *EncryptedStore) Exists(key string) (bool, error) {
	return s.inner.Exists(key)
}

// Size decrypts and counts. The inner store only knows ciphertext sizes,
// which include age header overhead.
func (s *EncryptedStore) Size(key string) (int64, error) {
	rc, err := s.Open(key)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	n, err := io.Copy(io.Discard, rc)
	if err != nil {
		return 0, fmt.Errorf("sizing blob %s: %w", key, err)
	}
	return n, nil
}

func (s *EncryptedStore) Remove(key string) error {
	return s.inner.Remove(key)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
