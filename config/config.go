// Package config loads the configuration of the registration tools.
//
// Configuration comes from a single YAML file. Every value can be
// overridden by an AUTHENTICITY_* environment variable; the signing key is
// normally supplied this way (AUTHENTICITY_LEDGER_WIF) and is never written
// back in logs or marshaled output.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AUTHENTICITY_"

// Config is the complete configuration.
type Config struct {
	Ledger     LedgerConfig     `yaml:"ledger" json:"ledger"`
	Artifact   ArtifactConfig   `yaml:"artifact" json:"artifact"`
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`
	Pipeline   PipelineConfig   `yaml:"pipeline" json:"pipeline"`
	Journal    JournalConfig    `yaml:"journal" json:"journal"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" json:"telemetry"`
	Logger     LoggerConfig     `yaml:"logger" json:"logger"`
}

// LedgerConfig configures the Neo N3 node and the signing account.
type LedgerConfig struct {
	// Endpoint is the RPC endpoint of the node.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// WIF is the signing key.
	WIF Secret `yaml:"wif" json:"wif"`
	// Contract is the authenticity contract: LE script hash, address or
	// NNS domain.
	Contract string `yaml:"contract" json:"contract"`
	// GasLimit is the fixed system fee in GAS fractions.
	GasLimit int64 `yaml:"gas_limit" json:"gas_limit"`
	// GasPrice is the fixed network fee surcharge in GAS fractions. It is
	// required, zero is a valid value.
	GasPrice *int64 `yaml:"gas_price" json:"gas_price"`

	DialTimeout       time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	NonceRetryBackoff time.Duration `yaml:"nonce_retry_backoff" json:"nonce_retry_backoff"`
}

// ArtifactConfig configures the IPFS node.
type ArtifactConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Gateway is optional, it is only used to build links in receipts.
	Gateway    string        `yaml:"gateway" json:"gateway"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	Pin        bool          `yaml:"pin" json:"pin"`
	CIDVersion int           `yaml:"cid_version" json:"cid_version"`
}

// ClassifierConfig configures the model server.
type ClassifierConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// PipelineConfig configures registration runs.
type PipelineConfig struct {
	RunTimeout time.Duration `yaml:"run_timeout" json:"run_timeout"`
}

// JournalConfig configures the receipt journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path" json:"path"`
}

// TelemetryConfig configures OTLP export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure" json:"insecure"`
}

// LoggerConfig configures logging.
type LoggerConfig struct {
	Level zapcore.Level `yaml:"level" json:"level"`
}

// Default returns the configuration values applied before the file is read.
func Default() Config {
	return Config{
		Ledger: LedgerConfig{
			DialTimeout:       5 * time.Second,
			RequestTimeout:    15 * time.Second,
			NonceRetryBackoff: time.Second,
		},
		Artifact: ArtifactConfig{
			Timeout:    time.Minute,
			Pin:        true,
			CIDVersion: 1,
		},
		Classifier: ClassifierConfig{
			Timeout: time.Minute,
		},
		Pipeline: PipelineConfig{
			RunTimeout: 3 * time.Minute,
		},
		Logger: LoggerConfig{
			Level: zapcore.InfoLevel,
		},
	}
}

// Load reads the file at path and applies environment overrides.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	return Read(f, os.LookupEnv)
}

// Read decodes YAML from r over Default and applies overrides found by
// lookupEnv. A nil lookupEnv disables overrides.
func Read(r io.Reader, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Default()

	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)

		err = dec.Decode(&cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}

	if lookupEnv != nil {
		err = cfg.applyEnv(lookupEnv)
		if err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

type override struct {
	key   string
	apply func(c *Config, v string) error
}

func setString(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func setDuration(dst func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst(c) = d
		return nil
	}
}

var overrides = []override{
	{"LEDGER_ENDPOINT", setString(func(c *Config) *string { return &c.Ledger.Endpoint })},
	{"LEDGER_WIF", func(c *Config, v string) error { c.Ledger.WIF = Secret(v); return nil }},
	{"LEDGER_CONTRACT", setString(func(c *Config) *string { return &c.Ledger.Contract })},
	{"LEDGER_GAS_LIMIT", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		c.Ledger.GasLimit = n
		return err
	}},
	{"LEDGER_GAS_PRICE", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		c.Ledger.GasPrice = &n
		return err
	}},
	{"LEDGER_DIAL_TIMEOUT", setDuration(func(c *Config) *time.Duration { return &c.Ledger.DialTimeout })},
	{"LEDGER_REQUEST_TIMEOUT", setDuration(func(c *Config) *time.Duration { return &c.Ledger.RequestTimeout })},
	{"LEDGER_NONCE_RETRY_BACKOFF", setDuration(func(c *Config) *time.Duration { return &c.Ledger.NonceRetryBackoff })},
	{"ARTIFACT_ENDPOINT", setString(func(c *Config) *string { return &c.Artifact.Endpoint })},
	{"ARTIFACT_GATEWAY", setString(func(c *Config) *string { return &c.Artifact.Gateway })},
	{"ARTIFACT_TIMEOUT", setDuration(func(c *Config) *time.Duration { return &c.Artifact.Timeout })},
	{"CLASSIFIER_ENDPOINT", setString(func(c *Config) *string { return &c.Classifier.Endpoint })},
	{"CLASSIFIER_TIMEOUT", setDuration(func(c *Config) *time.Duration { return &c.Classifier.Timeout })},
	{"PIPELINE_RUN_TIMEOUT", setDuration(func(c *Config) *time.Duration { return &c.Pipeline.RunTimeout })},
	{"JOURNAL_PATH", setString(func(c *Config) *string { return &c.Journal.Path })},
	{"TELEMETRY_OTLP_ENDPOINT", setString(func(c *Config) *string { return &c.Telemetry.OTLPEndpoint })},
	{"LOGGER_LEVEL", func(c *Config, v string) error { return c.Logger.Level.UnmarshalText([]byte(v)) }},
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) error {
	var errs []error

	for _, o := range overrides {
		v, ok := lookupEnv(EnvPrefix + o.key)
		if !ok {
			continue
		}

		err := o.apply(c, strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s%s: %w", EnvPrefix, o.key, err))
		}
	}

	return errors.Join(errs...)
}

// MissingError lists required options absent from the configuration.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

// Validate checks that every required option is set and all values are
// usable. Missing options are reported together in *MissingError.
func (c Config) Validate() error {
	var missing []string

	for _, req := range []struct {
		key string
		set bool
	}{
		{"ledger.endpoint", c.Ledger.Endpoint != ""},
		{"ledger.wif", c.Ledger.WIF != ""},
		{"ledger.contract", c.Ledger.Contract != ""},
		{"ledger.gas_limit", c.Ledger.GasLimit != 0},
		{"ledger.gas_price", c.Ledger.GasPrice != nil},
		{"artifact.endpoint", c.Artifact.Endpoint != ""},
		{"classifier.endpoint", c.Classifier.Endpoint != ""},
	} {
		if !req.set {
			missing = append(missing, req.key)
		}
	}

	var errs []error

	if len(missing) > 0 {
		errs = append(errs, &MissingError{Keys: missing})
	}
	if c.Ledger.GasLimit < 0 {
		errs = append(errs, fmt.Errorf("negative ledger.gas_limit %d", c.Ledger.GasLimit))
	}
	if c.Ledger.GasPrice != nil && *c.Ledger.GasPrice < 0 {
		errs = append(errs, fmt.Errorf("negative ledger.gas_price %d", *c.Ledger.GasPrice))
	}
	if c.Artifact.CIDVersion != 0 && c.Artifact.CIDVersion != 1 {
		errs = append(errs, fmt.Errorf("unsupported artifact.cid_version %d", c.Artifact.CIDVersion))
	}
	if c.Pipeline.RunTimeout < 0 {
		errs = append(errs, fmt.Errorf("negative pipeline.run_timeout %s", c.Pipeline.RunTimeout))
	}

	return errors.Join(errs...)
}
