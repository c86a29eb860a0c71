// Package encryption provides the at-rest encryption used by the encrypted
// blob store, built on filippo.io/age with X25519 keys.
package encryption

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"subtree-go/internal/subtree"
)

// AgeEncryptor implements subtree.Encryptor. The recipient (public key) is
// kept in plaintext so blobs can be ingested without a passphrase; the
// identity (private key) is itself age-encrypted with a passphrase via
// scrypt, and is only needed to read blobs back.
type AgeEncryptor struct {
	recipientPath string
	identityPath  string
}

var _ subtree.Encryptor = (*AgeEncryptor)(nil)

func NewAgeEncryptor(recipientPath, identityPath string) *AgeEncryptor {
	return &AgeEncryptor{
		recipientPath: recipientPath,
		identityPath:  identityPath,
	}
}

// Setup generates a new X25519 key pair. The recipient is written in
// plaintext; the identity is passphrase-encrypted before it touches disk.
func (e *AgeEncryptor) Setup(passphrase string) error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, p := range []string{e.recipientPath, e.identityPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}

	if err := os.WriteFile(e.recipientPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing recipient: %w", err)
	}

	f, err := os.OpenFile(e.identityPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating identity file: %w", err)
	}
	defer f.Close()

	scrypt, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	w, err := age.Encrypt(f, scrypt)
	if err != nil {
		return fmt.Errorf("encrypting identity: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("writing identity: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing identity: %w", err)
	}
	return nil
}

// Encrypt reads plaintext from r and writes age ciphertext to w using the
// stored recipient.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := e.loadRecipient()
	if err != nil {
		return err
	}

	ew, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypting writer: %w", err)
	}
	if _, err := io.Copy(ew, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := ew.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Unlock decrypts the stored identity with the passphrase and returns a
// Decryptor holding it. A wrong passphrase fails here, not at read time.
func (e *AgeEncryptor) Unlock(passphrase string) (subtree.Decryptor, error) {
	data, err := os.ReadFile(e.identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	dr, err := age.Decrypt(bytes.NewReader(data), scrypt)
	if err != nil {
		return nil, fmt.Errorf("decrypting identity: %w", err)
	}
	keyData, err := io.ReadAll(dr)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted identity: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(keyData))
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in identity file")
	}
	return &ageDecryptor{identity: identities[0]}, nil
}

// Ready reports whether both key files exist.
func (e *AgeEncryptor) Ready() bool {
	if _, err := os.Stat(e.recipientPath); err != nil {
		return false
	}
	if _, err := os.Stat(e.identityPath); err != nil {
		return false
	}
	return true
}

func (e *AgeEncryptor) loadRecipient() (age.Recipient, error) {
	data, err := os.ReadFile(e.recipientPath)
	if err != nil {
		return nil, fmt.Errorf("reading recipient: %w", err)
	}
	recipients, err := age.ParseRecipients(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing recipient: %w", err)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients found in recipient file")
	}
	return recipients[0], nil
}

type ageDecryptor struct {
	identity age.Identity
}

var _ subtree.Decryptor = (*ageDecryptor)(nil)

func (d *ageDecryptor) Decrypt(r io.Reader, w io.Writer) error {
	dr, err := age.Decrypt(r, d.identity)
	if err != nil {
		return fmt.Errorf("creating decrypting reader: %w", err)
	}
	if _, err := io.Copy(w, dr); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}
