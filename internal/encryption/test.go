package encryption

import (
	"bytes"
	"fmt"
	"io"

	"subtree-go/internal/subtree"
)

// testHeader marks data produced by TestEncryptor so decryption can verify
// it is undoing the right transformation.
var testHeader = []byte("STENC\x00\x00\x00")

// TestEncryptor is a deterministic, key-free encryptor for tests. It
// prepends a fixed header on encryption and strips it on decryption, so
// "ciphertext" differs from plaintext without any real crypto.
type TestEncryptor struct{}

var _ subtree.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error { return nil }

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (subtree.Decryptor, error) {
	return &testDecryptor{}, nil
}

func (e *TestEncryptor) Ready() bool { return true }

type testDecryptor struct{}

var _ subtree.Decryptor = (*testDecryptor)(nil)

func (d *testDecryptor) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
