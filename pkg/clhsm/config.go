package clhsm

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultDistance is the statistical distance parameter (in bits) used to
	// widen the exponent bound past the class number bound.
	DefaultDistance = 42

	// DefaultRSABits is the reencryption key size used when none is configured.
	DefaultRSABits = 2048
)

// Config expresses the knobs required to stand up a CL-HSM2k deployment.
type Config struct {
	// SecurityBits is the bit length of the generated modulus n. Ignored when
	// Modulus is set.
	SecurityBits int `yaml:"security_bits"`

	// K sets the cleartext space to [0, 2^K).
	K int `yaml:"k"`

	// Modulus optionally pins n as a decimal string. Every party of a
	// deployment must agree on it.
	Modulus string `yaml:"modulus,omitempty"`

	// ClassNumberBound optionally supplies a precomputed bound for the class
	// group of discriminant -8n, skipping the Euler product at start up.
	ClassNumberBound string `yaml:"class_number_bound,omitempty"`

	// Distance overrides DefaultDistance when at least 2.
	Distance int `yaml:"distance,omitempty"`

	Threshold ThresholdConfig `yaml:"threshold"`

	Reencryption ReencryptionConfig `yaml:"reencryption"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`
}

// ThresholdConfig describes the (t, n) access structure of the key shares.
type ThresholdConfig struct {
	T int `yaml:"t"`
	N int `yaml:"n"`
}

// ReencryptionConfig selects how partial decryptions travel to the client.
type ReencryptionConfig struct {
	// Scheme is "rsa" or "ecies".
	Scheme  string `yaml:"scheme"`
	RSABits int    `yaml:"rsa_bits,omitempty"`
}

// DefaultConfig returns the parameters used by the test-suite and the CLI
// when no file is given: 128-bit modulus, 128-bit cleartexts, 2-of-3 sharing.
func DefaultConfig() Config {
	return Config{
		SecurityBits: 128,
		K:            128,
		Distance:     DefaultDistance,
		Threshold:    ThresholdConfig{T: 2, N: 3},
		Reencryption: ReencryptionConfig{Scheme: "rsa", RSABits: DefaultRSABits},
		LogLevel:     "info",
	}
}

// Validate checks field ranges and fills defaults for zero values.
func (c *Config) Validate() error {
	const op = "clhsm.Config.Validate"
	if c.K < 1 {
		return Errorf(op, ErrInvalidArgument, "k must be at least 1, got %d", c.K)
	}
	if c.Modulus == "" && c.SecurityBits < 16 {
		return Errorf(op, ErrInvalidArgument, "security_bits must be at least 16, got %d", c.SecurityBits)
	}
	if c.Modulus != "" {
		if _, err := c.ModulusInt(); err != nil {
			return err
		}
	}
	if c.ClassNumberBound != "" {
		if _, err := c.ClassNumberBoundInt(); err != nil {
			return err
		}
	}
	if c.Distance < 2 {
		c.Distance = DefaultDistance
	}
	if c.Threshold.T < 1 || c.Threshold.N < c.Threshold.T {
		return Errorf(op, ErrInvalidArgument, "threshold must satisfy 1 <= t <= n, got t=%d n=%d", c.Threshold.T, c.Threshold.N)
	}
	switch c.Reencryption.Scheme {
	case "":
		c.Reencryption.Scheme = "rsa"
	case "rsa", "ecies":
	default:
		return Errorf(op, ErrInvalidArgument, "unknown reencryption scheme %q", c.Reencryption.Scheme)
	}
	if c.Reencryption.RSABits == 0 {
		c.Reencryption.RSABits = DefaultRSABits
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return Errorf(op, ErrInvalidArgument, "unknown log level %q", c.LogLevel)
	}
	return nil
}

// ModulusInt parses Modulus. It returns nil when the modulus is unset.
func (c Config) ModulusInt() (*big.Int, error) {
	return parsePositive("clhsm.Config.ModulusInt", "modulus", c.Modulus)
}

// ClassNumberBoundInt parses ClassNumberBound. It returns nil when unset.
func (c Config) ClassNumberBoundInt() (*big.Int, error) {
	return parsePositive("clhsm.Config.ClassNumberBoundInt", "class_number_bound", c.ClassNumberBound)
}

func parsePositive(op, field, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() <= 0 {
		return nil, Errorf(op, ErrInvalidArgument, "%s must be a positive decimal integer", field)
	}
	return v, nil
}

// LoadConfig reads and validates a YAML configuration file. Fields missing
// from the file keep the values of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	absPath, err := SecurePath(path)
	if err != nil {
		return nil, fmt.Errorf("secure path: %w", err)
	}
	data, err := os.ReadFile(absPath) // #nosec G304 -- absPath validated by SecurePath
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SecurePath validates that a file path doesn't escape the working directory.
// This prevents path traversal attacks when loading user-specified config files.
func SecurePath(path string) (string, error) {
	clean := filepath.Clean(path)
	absPath, err := filepath.Abs(clean)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	base, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	rel, err := filepath.Rel(base, absPath)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes working directory", path)
	}
	return absPath, nil
}
