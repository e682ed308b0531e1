package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork

	"github.com/ZebulonRouseFrantzich/artifetch/internal/logging"
)

var (
	// ErrEmptyContent is returned when a download has no bytes.
	ErrEmptyContent = errors.New("downloaded content is empty")
	// ErrSignature is wrapped by every signature verification failure.
	ErrSignature = errors.New("signature verification failed")
)

// IntegrityError reports a SHA-256 mismatch.
type IntegrityError struct {
	URL      string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("sha256 mismatch:\nactual:   %s\nexpected: %s", e.Actual, e.Expected)
	}
	return fmt.Sprintf("sha256 mismatch for %s:\nactual:   %s\nexpected: %s", e.URL, e.Actual, e.Expected)
}

// Verifier checks downloaded bytes.
type Verifier struct {
	log logging.Logger
}

// NewVerifier creates a new verifier
func NewVerifier(log logging.Logger) *Verifier {
	return &Verifier{log: logging.OrNop(log)}
}

// VerifySHA256 compares the digest of data with expected, ignoring case.
func (v *Verifier) VerifySHA256(data []byte, expected string) error {
	actual := calculateSHA256(data)
	expected = strings.TrimSpace(expected)

	if !strings.EqualFold(actual, expected) {
		v.log.Error("hash mismatch", "actual", actual, "expected", expected)
		return &IntegrityError{Expected: expected, Actual: actual}
	}
	return nil
}

// VerifySignature checks a detached OpenPGP signature over data using the
// public key(s) in keyPath. Both the signature and the key file may be
// armored or binary.
func (v *Verifier) VerifySignature(data, signature []byte, keyPath string) error {
	keyring, err := loadKeyring(keyPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}

	signer, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	if err != nil {
		signer, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(signature), nil)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}

	v.log.Debug("signature verified", "key", keyPath, "signer", fmt.Sprintf("%X", signer.PrimaryKey.Fingerprint))
	return nil
}

// loadKeyring loads an OpenPGP keyring from disk
func loadKeyring(path string) (openpgp.EntityList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(raw))
	if err != nil {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}
	return keyring, nil
}

// calculateSHA256 returns the lowercase hex SHA-256 of data.
func calculateSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
