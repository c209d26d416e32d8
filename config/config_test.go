package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"recycless/crypto"
)

var testContract = crypto.Format(common.HexToAddress("0x00000000000000000000000000000000000c0de0"))

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesSettings(t *testing.T) {
	creator := crypto.Format(common.HexToAddress("0x00000000000000000000000000000000000a11ce"))
	path := writeConfig(t, `NetworkName = "recycless-test"
RPCAddress = "127.0.0.1:9000"
DataDir = "./data"
Backend = "bolt"
Creator = "`+creator+`"
ContractAccount = "`+testContract+`"
LogFile = "/var/log/recycless.log"
Paused = true

[RateLimit]
RequestsPerMinute = 120
Burst = 10
TrustedProxies = ["10.0.0.1"]

[Bank]
Driver = "postgres"
DSN = "postgres://localhost/bank"

[[Funding]]
Asset = 7
Amount = 1000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NetworkName != "recycless-test" || cfg.RPCAddress != "127.0.0.1:9000" {
		t.Fatalf("unexpected network settings: %+v", cfg)
	}
	if !cfg.Paused || cfg.Backend != "bolt" {
		t.Fatalf("unexpected flags: paused=%v backend=%q", cfg.Paused, cfg.Backend)
	}
	if cfg.StatePath() != filepath.Join("./data", "state.db") {
		t.Fatalf("unexpected state path %q", cfg.StatePath())
	}
	if cfg.RateLimit.RequestsPerMinute != 120 || cfg.RateLimit.Burst != 10 {
		t.Fatalf("unexpected rate limit: %+v", cfg.RateLimit)
	}
	if len(cfg.RateLimit.TrustedProxies) != 1 || cfg.RateLimit.TrustedProxies[0] != "10.0.0.1" {
		t.Fatalf("unexpected trusted proxies: %v", cfg.RateLimit.TrustedProxies)
	}
	if cfg.Bank.Driver != "postgres" || cfg.BankDSN() != "postgres://localhost/bank" {
		t.Fatalf("unexpected bank settings: %+v", cfg.Bank)
	}
	if len(cfg.Funding) != 1 || cfg.Funding[0].Asset != 7 || cfg.Funding[0].Amount != 1000 {
		t.Fatalf("unexpected funding: %+v", cfg.Funding)
	}
	addr, ok, err := cfg.CreatorAddress()
	if err != nil || !ok || addr != common.HexToAddress("0x00000000000000000000000000000000000a11ce") {
		t.Fatalf("creator: %s ok=%v err=%v", addr.Hex(), ok, err)
	}
	if cfg.DispatchQueue != DefaultDispatchQueue {
		t.Fatalf("expected default dispatch queue, got %d", cfg.DispatchQueue)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `ContractAccount = "`+testContract+`"
ValidatorKeystorePath = "old.keystore"
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ValidatorKeystorePath") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadValidates(t *testing.T) {
	cases := map[string]string{
		"backend": `Backend = "redis"`,
		"creator": `Creator = "not-an-address"`,
		"bank":    "[Bank]\nDriver = \"mysql\"",
		"proxy":   "[RateLimit]\nTrustedProxies = [\"10.0.0.0/8\"]",
		"funding": "[[Funding]]\nAsset = 0\nAmount = 1",
		"dupe":    "[[Funding]]\nAsset = 3\nAmount = 1\n[[Funding]]\nAsset = 3\nAmount = 2",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, "ContractAccount = \""+testContract+"\"\n"+body+"\n")
			if _, err := Load(path); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if cfg.NetworkName != DefaultNetworkName || cfg.Backend != DefaultBackend {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, err := os.Stat(filepath.Join(dir, "contract.keystore")); err != nil {
		t.Fatalf("expected contract keystore: %v", err)
	}
	if _, err := cfg.ContractAddress(); err != nil {
		t.Fatalf("contract account: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ContractAccount != cfg.ContractAccount {
		t.Fatalf("contract account changed across loads: %s != %s", reloaded.ContractAccount, cfg.ContractAccount)
	}
	if _, _, err := reloaded.CreatorAddress(); err != nil {
		t.Fatalf("empty creator must be accepted: %v", err)
	}
}
