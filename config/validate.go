package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.NetworkName) == "" {
		return fmt.Errorf("NetworkName must not be empty")
	}
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "", "memory", "leveldb", "bolt", "bbolt":
	default:
		return fmt.Errorf("Backend: unsupported value %q", c.Backend)
	}
	if _, _, err := c.CreatorAddress(); err != nil {
		return err
	}
	if _, err := c.ContractAddress(); err != nil {
		return err
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("RateLimit: values must not be negative")
	}
	for _, proxy := range c.RateLimit.TrustedProxies {
		if net.ParseIP(strings.TrimSpace(proxy)) == nil {
			return fmt.Errorf("RateLimit.TrustedProxies: %q is not an IP address", proxy)
		}
	}
	if c.DispatchQueue < 0 {
		return fmt.Errorf("DispatchQueue must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Bank.Driver)) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("Bank.Driver: unsupported value %q", c.Bank.Driver)
	}
	seen := make(map[uint64]struct{}, len(c.Funding))
	for _, f := range c.Funding {
		if f.Asset == 0 {
			return fmt.Errorf("Funding: asset 0 is reserved for \"no reward asset\"")
		}
		if _, dup := seen[f.Asset]; dup {
			return fmt.Errorf("Funding: asset %d listed twice", f.Asset)
		}
		seen[f.Asset] = struct{}{}
	}
	return nil
}
