package subtree

import "io"

// Encryptor turns plaintext streams into ciphertext for at-rest storage.
// Encrypting needs only the public half of the key material; reading data
// back requires unlocking the private half with a passphrase.
type Encryptor interface {
	// Setup generates fresh key material protected by the passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock verifies the passphrase and returns a Decryptor holding the
	// unlocked private key.
	Unlock(passphrase string) (Decryptor, error)

	// Ready reports whether key material has been set up.
	Ready() bool
}

// Decryptor reverses Encryptor.Encrypt.
type Decryptor interface {
	Decrypt(r io.Reader, w io.Writer) error
}
