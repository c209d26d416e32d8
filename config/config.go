package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"recycless/crypto"
)

const (
	DefaultNetworkName       = "recycless-local"
	DefaultRPCAddress        = ":8080"
	DefaultDataDir           = "./recycless-data"
	DefaultBackend           = "leveldb"
	DefaultRequestsPerMinute = 600
	DefaultBurst             = 60
	DefaultDispatchQueue     = 1024
	DefaultBankDriver        = "sqlite"
)

type Config struct {
	NetworkName          string `toml:"NetworkName"`
	RPCAddress           string `toml:"RPCAddress"`
	DataDir              string `toml:"DataDir"`
	Backend              string `toml:"Backend"`
	Creator              string `toml:"Creator"`
	ContractAccount      string `toml:"ContractAccount"`
	ContractKeystorePath string `toml:"ContractKeystorePath"`
	LogEnv               string `toml:"LogEnv"`
	LogLevel             string `toml:"LogLevel"`
	LogFile              string `toml:"LogFile"`
	Paused               bool   `toml:"Paused"`
	DispatchQueue        int    `toml:"DispatchQueue"`

	RateLimit RateLimitConfig `toml:"RateLimit"`
	Bank      BankConfig      `toml:"Bank"`
	Tracing   TracingConfig   `toml:"Tracing"`
	Funding   []Funding       `toml:"Funding"`
}

// RateLimitConfig bounds RPC requests per client address.
type RateLimitConfig struct {
	RequestsPerMinute int      `toml:"RequestsPerMinute"`
	Burst             int      `toml:"Burst"`
	TrustedProxies    []string `toml:"TrustedProxies"`
}

// BankConfig selects the asset ledger database.
type BankConfig struct {
	Driver    string `toml:"Driver"`
	DSN       string `toml:"DSN"`
	AutoOptIn bool   `toml:"AutoOptIn"`
}

type TracingConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
}

// Funding credits the contract account with an asset balance at boot.
type Funding struct {
	Asset  uint64 `toml:"Asset"`
	Amount uint64 `toml:"Amount"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyDefaults()
	if strings.TrimSpace(cfg.ContractAccount) == "" {
		if err := ensureContractAccount(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = DefaultNetworkName
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = DefaultRPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.Backend) == "" {
		c.Backend = DefaultBackend
	}
	if c.DispatchQueue == 0 {
		c.DispatchQueue = DefaultDispatchQueue
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = DefaultBurst
	}
	if strings.TrimSpace(c.Bank.Driver) == "" {
		c.Bank.Driver = DefaultBankDriver
	}
}

// ensureContractAccount generates the contract account key when the config
// names neither an account nor an existing keystore.
func ensureContractAccount(configPath string, cfg *Config) error {
	keystorePath := cfg.ContractKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}
	if _, err := os.Stat(keystorePath); err == nil {
		return fmt.Errorf("ContractAccount is empty but keystore %s exists; set ContractAccount to its address", keystorePath)
	} else if !os.IsNotExist(err) {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return err
	}
	cfg.ContractKeystorePath = keystorePath
	cfg.ContractAccount = key.PubKey().Address().String()
	return persist(configPath, cfg)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		NetworkName: DefaultNetworkName,
		RPCAddress:  DefaultRPCAddress,
		DataDir:     DefaultDataDir,
		Backend:     DefaultBackend,
		LogEnv:      "dev",
		LogLevel:    "info",
		RateLimit: RateLimitConfig{
			RequestsPerMinute: DefaultRequestsPerMinute,
			Burst:             DefaultBurst,
		},
		DispatchQueue: DefaultDispatchQueue,
		Bank:          BankConfig{Driver: DefaultBankDriver, AutoOptIn: true},
	}
	if err := ensureContractAccount(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "contract.keystore")
}

// CreatorAddress returns the genesis admin. The boolean is false when no
// creator is configured.
func (c *Config) CreatorAddress() (common.Address, bool, error) {
	if strings.TrimSpace(c.Creator) == "" {
		return common.Address{}, false, nil
	}
	addr, err := crypto.ParseIdentity(c.Creator)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("Creator: %w", err)
	}
	return addr, true, nil
}

// ContractAddress returns the account the contract sends transfers from.
func (c *Config) ContractAddress() (common.Address, error) {
	addr, err := crypto.ParseIdentity(c.ContractAccount)
	if err != nil {
		return common.Address{}, fmt.Errorf("ContractAccount: %w", err)
	}
	return addr, nil
}

// StatePath is where the persistent backends keep contract state.
func (c *Config) StatePath() string {
	switch strings.ToLower(c.Backend) {
	case "bolt", "bbolt":
		return filepath.Join(c.DataDir, "state.db")
	default:
		return filepath.Join(c.DataDir, "state")
	}
}

// BankDSN returns the configured asset ledger DSN, defaulting sqlite to a file
// under DataDir.
func (c *Config) BankDSN() string {
	if strings.TrimSpace(c.Bank.DSN) != "" {
		return c.Bank.DSN
	}
	if strings.EqualFold(c.Bank.Driver, "sqlite") && !strings.EqualFold(c.Backend, "memory") {
		return filepath.Join(c.DataDir, "bank.sqlite")
	}
	return ""
}
