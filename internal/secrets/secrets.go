// Package secrets materializes run credentials from secret values.
package secrets

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Materialize decodes a base64-encoded service-account blob and writes
// it to path with owner-only permissions. The file exists only for the
// run's duration; callers remove it when the run finishes.
// It returns a short fingerprint of the credential for logging.
func Materialize(encoded, path string) (fingerprint string, err error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", fmt.Errorf("credential secret is empty")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("credential secret is not valid base64: %w", err)
	}

	// The blob must be a JSON document (a service-account key file);
	// catching corruption here beats a confusing downstream auth error.
	if !json.Valid(raw) {
		return "", fmt.Errorf("decoded credential is not valid JSON")
	}

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", fmt.Errorf("failed to write credential file: %w", err)
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8]), nil
}

// Remove deletes the credential file. Missing files are not an error;
// provisioning may have failed before the file was written.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
