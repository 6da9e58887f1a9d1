package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned when a secret has no stored entry.
var ErrNotFound = errors.New("secret not found")

// Store is a service/user keyed secret store.
type Store interface {
	Set(service, user, secret string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

// SystemKeyring stores secrets in the OS keyring.
type SystemKeyring struct{}

func (SystemKeyring) Set(service, user, secret string) error {
	return keyring.Set(service, user, secret)
}

func (SystemKeyring) Get(service, user string) (string, error) {
	secret, err := keyring.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, service, user)
	}
	return secret, err
}

func (SystemKeyring) Delete(service, user string) error {
	err := keyring.Delete(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// FileKeyring implements an encrypted file keyring for headless servers
type FileKeyring struct {
	mu          sync.Mutex
	keyringPath string
	masterKey   []byte
}

// fileEntry represents a stored keyring entry
type fileEntry struct {
	Service string `json:"service"`
	User    string `json:"user"`
	Data    string `json:"data"` // encrypted data
}

// NewFileKeyring creates a new file keyring keyed by a master password
func NewFileKeyring(keyringPath, masterPassword string) *FileKeyring {
	hash := sha256.Sum256([]byte(masterPassword))
	return &FileKeyring{
		keyringPath: keyringPath,
		masterKey:   hash[:],
	}
}

// NewStore returns the OS keyring when it is usable and the file keyring
// otherwise. The probe gives up after timeout.
func NewStore(keyringPath, masterPassword string, timeout time.Duration) Store {
	const probeService, probeUser = "redb-esadapter-probe", "probe"

	done := make(chan error, 1)
	go func() {
		err := keyring.Set(probeService, probeUser, "ok")
		if err == nil {
			_ = keyring.Delete(probeService, probeUser)
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			return SystemKeyring{}
		}
	case <-time.After(timeout):
	}

	return NewFileKeyring(keyringPath, masterPassword)
}

func (fk *FileKeyring) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(fk.masterKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (fk *FileKeyring) encrypt(plaintext string) (string, error) {
	gcm, err := fk.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}

func (fk *FileKeyring) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	gcm, err := fk.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (fk *FileKeyring) load() (map[string]fileEntry, error) {
	entries := make(map[string]fileEntry)
	data, err := os.ReadFile(fk.keyringPath)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("corrupt keyring file %s: %w", fk.keyringPath, err)
	}
	return entries, nil
}

func (fk *FileKeyring) save(entries map[string]fileEntry) error {
	if err := os.MkdirAll(filepath.Dir(fk.keyringPath), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(fk.keyringPath, data, 0600)
}

func entryKey(service, user string) string {
	return service + ":" + user
}

// Set stores an entry in the file keyring
func (fk *FileKeyring) Set(service, user, secret string) error {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	entries, err := fk.load()
	if err != nil {
		return err
	}

	encrypted, err := fk.encrypt(secret)
	if err != nil {
		return err
	}
	entries[entryKey(service, user)] = fileEntry{Service: service, User: user, Data: encrypted}

	return fk.save(entries)
}

// Get retrieves an entry from the file keyring
func (fk *FileKeyring) Get(service, user string) (string, error) {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	entries, err := fk.load()
	if err != nil {
		return "", err
	}

	entry, exists := entries[entryKey(service, user)]
	if !exists {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, service, user)
	}

	return fk.decrypt(entry.Data)
}

// Delete removes an entry from the file keyring
func (fk *FileKeyring) Delete(service, user string) error {
	fk.mu.Lock()
	defer fk.mu.Unlock()

	entries, err := fk.load()
	if err != nil {
		return err
	}
	if _, ok := entries[entryKey(service, user)]; !ok {
		return nil
	}
	delete(entries, entryKey(service, user))

	return fk.save(entries)
}

// MasterPasswordFromEnv gets the file keyring master password from the environment
func MasterPasswordFromEnv() string {
	return os.Getenv("REDB_ESADAPTER_KEYRING_PASSWORD")
}

// DefaultKeyringPath returns the default keyring file path
func DefaultKeyringPath() string {
	if path := os.Getenv("REDB_ESADAPTER_KEYRING_PATH"); path != "" {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "redb-esadapter-keyring.json")
	}
	return filepath.Join(homeDir, ".local", "share", "redb-esadapter", "keyring.json")
}
