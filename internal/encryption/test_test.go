package encryption_test

import (
	"bytes"
	"testing"

	"subtree-go/internal/encryption"
)

func TestTestEncryptor_RoundTrip(t *testing.T) {
	enc := encryption.NewTestEncryptor()

	if !enc.Ready() {
		t.Error("TestEncryptor should always be ready")
	}
	if err := enc.Setup("ignored"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	var ct bytes.Buffer
	if err := enc.Encrypt(bytes.NewReader([]byte("payload")), &ct); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Equal(ct.Bytes(), []byte("payload")) {
		t.Error("ciphertext should differ from plaintext")
	}

	dec, err := enc.Unlock("anything")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var pt bytes.Buffer
	if err := dec.Decrypt(bytes.NewReader(ct.Bytes()), &pt); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if pt.String() != "payload" {
		t.Errorf("decrypted = %q, want %q", pt.String(), "payload")
	}
}

func TestTestDecryptor_RejectsForeignData(t *testing.T) {
	enc := encryption.NewTestEncryptor()
	dec, err := enc.Unlock("")
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := dec.Decrypt(bytes.NewReader([]byte("no header here at all")), &out); err == nil {
		t.Error("Decrypt() should reject data without the marker header")
	}
}
