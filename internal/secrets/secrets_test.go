package secrets

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func TestMaterialize_Success(t *testing.T) {
	blob := `{"type":"service_account","project_id":"leads"}`
	encoded := base64.StdEncoding.EncodeToString([]byte(blob))
	path := filepath.Join(t.TempDir(), "credentials.json")

	fp, err := Materialize(encoded, path)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if fp == "" {
		t.Error("expected a non-empty fingerprint")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("credential file not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}

	data, _ := os.ReadFile(path)
	if string(data) != blob {
		t.Errorf("credential content mismatch: %q", data)
	}
}

func TestMaterialize_MissingSecret(t *testing.T) {
	_, err := Materialize("", filepath.Join(t.TempDir(), "credentials.json"))
	if err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestMaterialize_MalformedBase64(t *testing.T) {
	_, err := Materialize("not-base64!!!", filepath.Join(t.TempDir(), "credentials.json"))
	if err == nil {
		t.Error("expected error for malformed base64")
	}
}

func TestMaterialize_NotJSON(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("plain text, not a key file"))
	_, err := Materialize(encoded, filepath.Join(t.TempDir(), "credentials.json"))
	if err == nil {
		t.Error("expected error for non-JSON credential")
	}
}

func TestRemove_MissingFileIsNotAnError(t *testing.T) {
	if err := Remove(filepath.Join(t.TempDir(), "credentials.json")); err != nil {
		t.Errorf("Remove of missing file failed: %v", err)
	}
}

func TestRemove_DeletesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected credential file to be deleted")
	}
}
