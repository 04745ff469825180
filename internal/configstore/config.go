// Package configstore implements the per-module on-disk configuration
// record: credentials, negotiated permissions, last-known bus URL and
// remote hostname. It is modeled on the teacher's
// internal/configfile package: load-or-default semantics, JSON on disk,
// derived-path helpers.
package configstore

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"
)

const passwordLength = 22
const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Permissions holds the subscribe/publish path lists a module has been
// granted (or has asked for).
type Permissions struct {
	Subscribe []string `json:"subscribe"`
	Publish   []string `json:"publish"`
}

// Client holds the credentials a module authenticates to the bus with.
type Client struct {
	User        string      `json:"user"`
	Password    string      `json:"password"`
	Permissions Permissions `json:"permissions"`
}

// Key holds the plaintext secret used to authenticate (the password
// before bcrypt hashing).
type Key struct {
	Private string `json:"private"`
}

// Vbus holds the last-known connection details.
type Vbus struct {
	URL       string `json:"url"`
	Hostname  string `json:"hostname"`
	NetworkIP string `json:"networkIp"`
}

// Config is the full on-disk configuration record for one module id.
//
// A "v2" shape also exists on disk: only the Vbus block, used when an
// external process supplies credentials out of band. Load recognizes
// both; Config.ExternalCredentials reports which one was read.
type Config struct {
	Client Client `json:"client"`
	Key    Key    `json:"key"`
	Vbus   Vbus   `json:"vbus"`

	// ExternalCredentials is true when the file on disk held only the
	// "vbus" block (the v2 shape) rather than client credentials.
	ExternalCredentials bool `json:"-"`
}

// Path returns the config file path for a module id under root.
func Path(root, id string) string {
	return filepath.Join(root, id+".conf")
}

// Load reads the config file at path. A missing file is not an error:
// it returns (nil, nil) so the caller can fall back to DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("configstore: read %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("configstore: parse %s: %w", path, err)
	}

	cfg, ok := decodeV2(raw)
	if ok {
		return cfg, nil
	}
	cfg, ok = decodeV1(raw)
	if ok {
		return cfg, nil
	}
	return nil, nil
}

func decodeV1(raw map[string]json.RawMessage) (*Config, bool) {
	clientRaw, hasClient := raw["client"]
	keyRaw, hasKey := raw["key"]
	vbusRaw, hasVbus := raw["vbus"]
	if !hasClient || !hasKey || !hasVbus {
		return nil, false
	}

	var cfg Config
	if err := json.Unmarshal(clientRaw, &cfg.Client); err != nil {
		return nil, false
	}
	if err := json.Unmarshal(keyRaw, &cfg.Key); err != nil {
		return nil, false
	}
	if err := json.Unmarshal(vbusRaw, &cfg.Vbus); err != nil {
		return nil, false
	}
	if cfg.Client.User == "" || cfg.Key.Private == "" {
		return nil, false
	}
	return &cfg, true
}

func decodeV2(raw map[string]json.RawMessage) (*Config, bool) {
	if len(raw) != 1 {
		return nil, false
	}
	vbusRaw, hasVbus := raw["vbus"]
	if !hasVbus {
		return nil, false
	}
	var cfg Config
	if err := json.Unmarshal(vbusRaw, &cfg.Vbus); err != nil {
		return nil, false
	}
	cfg.ExternalCredentials = true
	return &cfg, true
}

// Save writes cfg to path. The write is atomic: it writes to a temp file
// in the same directory and renames it into place, so a concurrent
// reader never observes a partially-written file.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("configstore: mkdir %s: %w", filepath.Dir(path), err)
	}

	var data []byte
	var err error
	if cfg.ExternalCredentials {
		data, err = json.MarshalIndent(map[string]Vbus{"vbus": cfg.Vbus}, "", "  ")
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("configstore: marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("configstore: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("configstore: rename %s: %w", tmp, err)
	}
	return nil
}

// DefaultConfig builds a fresh configuration for id on hostname: a random
// 22-character password, its bcrypt (cost 11) hash as the wire password,
// and the default subscribe/publish permission lists scoped to id.
func DefaultConfig(id, hostname string) (*Config, error) {
	password, err := generatePassword(passwordLength)
	if err != nil {
		return nil, fmt.Errorf("configstore: generate password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 11)
	if err != nil {
		return nil, fmt.Errorf("configstore: hash password: %w", err)
	}

	user := id + "." + hostname
	return &Config{
		Client: Client{
			User:     user,
			Password: string(hash),
			Permissions: Permissions{
				Subscribe: []string{id + ".>", user + ".>"},
				Publish:   []string{id + ".>", user + ".>"},
			},
		},
		Key: Key{Private: password},
		Vbus: Vbus{
			Hostname: hostname,
		},
	}, nil
}

func generatePassword(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
