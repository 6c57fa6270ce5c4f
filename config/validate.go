package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"govchain/core"
	"govchain/crypto"
	"govchain/native/governance"
	"govchain/native/timelock"
	"govchain/storage/audit"
)

var (
	MinVotingPeriodSeconds = uint64(60)
)

// Validate checks addresses, delay bounds and parameter relationships.
func (c *Config) Validate() error {
	_, err := c.NodeConfig()
	if err != nil {
		return err
	}
	switch strings.ToLower(c.Audit.Driver) {
	case audit.DriverSQLite, audit.DriverPostgres:
	default:
		return fmt.Errorf("audit: unsupported driver %q", c.Audit.Driver)
	}
	if c.Audit.Enabled && strings.TrimSpace(c.Audit.DSN) == "" {
		return fmt.Errorf("audit: dsn required when enabled")
	}
	if c.API.RequireAuth && strings.TrimSpace(c.JWTSecret()) == "" {
		return fmt.Errorf("api: jwt secret required when auth is enabled")
	}
	if c.API.RateLimitPerSecond < 0 || c.API.RateLimitBurst < 0 {
		return fmt.Errorf("api: rate limits must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample ratio must be within [0, 1]")
	}
	return nil
}

// GovernanceParams parses the governance section, falling back to the
// registry defaults for fields left empty.
func (c *Config) GovernanceParams() (governance.Params, error) {
	params := governance.DefaultParams()
	if v := strings.TrimSpace(c.Governance.QuorumVotes); v != "" {
		amount, err := parseAmount(v)
		if err != nil {
			return params, fmt.Errorf("governance: invalid QuorumVotes: %w", err)
		}
		params.QuorumVotes = amount
	}
	if v := strings.TrimSpace(c.Governance.ProposalThreshold); v != "" {
		amount, err := parseAmount(v)
		if err != nil {
			return params, fmt.Errorf("governance: invalid ProposalThreshold: %w", err)
		}
		params.ProposalThreshold = amount
	}
	if c.Governance.MaxOperations != 0 {
		params.MaxOperations = c.Governance.MaxOperations
	}
	if c.Governance.VotingPeriodSeconds != 0 {
		params.VotingPeriod = c.Governance.VotingPeriodSeconds
	}
	if params.VotingPeriod < MinVotingPeriodSeconds {
		return params, fmt.Errorf("governance: voting period must be at least %d seconds", MinVotingPeriodSeconds)
	}
	if params.QuorumVotes.Lt(params.ProposalThreshold) {
		return params, fmt.Errorf("governance: quorum below proposal threshold")
	}
	return params, nil
}

// NodeConfig converts the file representation into the sequencer
// configuration.
func (c *Config) NodeConfig() (core.Config, error) {
	var out core.Config
	var err error
	if out.Governor, err = requireAddress("governance.Address", c.Governance.Address); err != nil {
		return out, err
	}
	if out.Params, err = requireAddress("governance.ParamsAddress", c.Governance.ParamsAddress); err != nil {
		return out, err
	}
	if out.Timelock, err = requireAddress("timelock.Address", c.Timelock.Address); err != nil {
		return out, err
	}
	if out.Token, err = requireAddress("token.Address", c.Token.Address); err != nil {
		return out, err
	}
	seen := map[common.Address]string{}
	for name, addr := range map[string]common.Address{
		"governance": out.Governor, "timelock": out.Timelock, "token": out.Token, "params": out.Params,
	} {
		if other, dup := seen[addr]; dup {
			return out, fmt.Errorf("config: %s and %s share address %s", other, name, addr.Hex())
		}
		seen[addr] = name
	}
	if out.Guardian, err = optionalAddress("governance.Guardian", c.Governance.Guardian); err != nil {
		return out, err
	}
	if out.FeeToSetter, err = optionalAddress("governance.FeeToSetter", c.Governance.FeeToSetter); err != nil {
		return out, err
	}
	if out.TimelockAdmin, err = optionalAddress("timelock.Admin", c.Timelock.Admin); err != nil {
		return out, err
	}
	if out.TimelockPendingAdmin, err = optionalAddress("timelock.PendingAdmin", c.Timelock.PendingAdmin); err != nil {
		return out, err
	}
	if out.Minter, err = optionalAddress("token.Minter", c.Token.Minter); err != nil {
		return out, err
	}
	if c.Timelock.DelaySeconds < timelock.MinimumDelay || c.Timelock.DelaySeconds > timelock.MaximumDelay {
		return out, fmt.Errorf("timelock: delay %d outside [%d, %d]", c.Timelock.DelaySeconds, timelock.MinimumDelay, timelock.MaximumDelay)
	}
	out.TimelockDelay = c.Timelock.DelaySeconds
	if out.Governance, err = c.GovernanceParams(); err != nil {
		return out, err
	}
	if len(c.Token.Allocations) > 0 && out.Minter == (common.Address{}) {
		return out, fmt.Errorf("token: allocations require a minter")
	}
	for i, alloc := range c.Token.Allocations {
		addr, err := requireAddress(fmt.Sprintf("token.Allocations[%d].Address", i), alloc.Address)
		if err != nil {
			return out, err
		}
		amount, err := parseAmount(alloc.Amount)
		if err != nil {
			return out, fmt.Errorf("token: invalid Allocations[%d].Amount: %w", i, err)
		}
		out.Allocations = append(out.Allocations, core.Allocation{Address: addr, Amount: amount, SelfDelegate: alloc.SelfDelegate})
	}
	out.ChainID = c.Signing.ChainID
	out.GovernorName = c.Governance.Name
	out.TokenName = c.Token.Name
	return out, nil
}

func requireAddress(field, raw string) (common.Address, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("config: %s: %w", field, err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("config: %s must not be the zero address", field)
	}
	return addr, nil
}

func optionalAddress(field, raw string) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return common.Address{}, nil
	}
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("config: %s: %w", field, err)
	}
	return addr, nil
}

// parseAmount reads a decimal base-unit amount.
func parseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty amount")
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, err
	}
	return amount, nil
}
