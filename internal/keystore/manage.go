package keystore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Key administration for file-backed credential sets, used by gatectl.
// HTTP and exec sources are read-only from this process's point of view;
// their payloads are owned by the remote secret store.

// GenerateKey returns a new opaque API key: "sk-" plus 32 random bytes,
// URL-safe base64 without padding.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "sk-" + base64.RawURLEncoding.EncodeToString(b), nil
}

// ReadKeyFile parses a name->key JSON file.
func ReadKeyFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var keys map[string]string
	if err := json.Unmarshal(b, &keys); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if keys == nil {
		keys = map[string]string{}
	}
	return keys, nil
}

// WriteKeyFile writes the set back with restrictive permissions.
func WriteKeyFile(path string, keys map[string]string) error {
	b, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o600)
}

// InitKeyFile creates an empty key file. Fails if the file already exists.
func InitKeyFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return WriteKeyFile(path, map[string]string{})
}

// AddKey generates a key under name and returns it. Existing names are
// rejected; use RotateKey to replace a key.
func AddKey(path, name string) (string, error) {
	keys, err := ReadKeyFile(path)
	if err != nil {
		return "", err
	}
	if _, exists := keys[name]; exists {
		return "", fmt.Errorf("key %q already exists, use rotate to replace it", name)
	}
	k, err := GenerateKey()
	if err != nil {
		return "", err
	}
	keys[name] = k
	if err := WriteKeyFile(path, keys); err != nil {
		return "", err
	}
	return k, nil
}

// RotateKey replaces the key under an existing name and returns the new key.
func RotateKey(path, name string) (string, error) {
	keys, err := ReadKeyFile(path)
	if err != nil {
		return "", err
	}
	if _, exists := keys[name]; !exists {
		return "", fmt.Errorf("key %q not found, use add to create it", name)
	}
	k, err := GenerateKey()
	if err != nil {
		return "", err
	}
	keys[name] = k
	if err := WriteKeyFile(path, keys); err != nil {
		return "", err
	}
	return k, nil
}

// RemoveKey deletes the key under name.
func RemoveKey(path, name string) error {
	keys, err := ReadKeyFile(path)
	if err != nil {
		return err
	}
	if _, exists := keys[name]; !exists {
		return fmt.Errorf("key %q not found", name)
	}
	delete(keys, name)
	return WriteKeyFile(path, keys)
}

// ListKeys returns the sorted key names. Values are never listed.
func ListKeys(path string) ([]string, error) {
	keys, err := ReadKeyFile(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for n := range keys {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
