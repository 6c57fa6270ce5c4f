package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"govchain/crypto"
	"govchain/native/governance"
	"govchain/native/timelock"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "govd.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultGovernorAddress, cfg.Governance.Address)
	require.Equal(t, timelock.DefaultDelay, cfg.Timelock.DelaySeconds)
	require.FileExists(t, path)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.API.ListenAddress, reloaded.API.ListenAddress)
}

func TestLoadParsesTOML(t *testing.T) {
	holder := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	path := writeFile(t, "govd.toml", `DataDir = "/var/lib/govd"

[Governance]
Guardian = "0x00000000000000000000000000000000000000c1"
QuorumVotes = "1000"
ProposalThreshold = "100"
VotingPeriodSeconds = 600

[Timelock]
DelaySeconds = 259200

[Token]
Minter = "0x00000000000000000000000000000000000000c2"

[[Token.Allocations]]
Address = "`+crypto.FromCommon(holder).String()+`"
Amount = "5000"
SelfDelegate = true

[API]
ListenAddress = "127.0.0.1:9000"
RateLimitPerSecond = 5

[Logging]
Level = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/govd", cfg.DataDir)
	require.Equal(t, filepath.Join("/var/lib/govd", "audit.db"), cfg.Audit.DSN)

	node, err := cfg.NodeConfig()
	require.NoError(t, err)
	require.Equal(t, uint64(259200), node.TimelockDelay)
	require.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000c1"), node.Guardian)
	require.Equal(t, uint256.NewInt(1000), node.Governance.QuorumVotes)
	require.Equal(t, uint256.NewInt(100), node.Governance.ProposalThreshold)
	require.Equal(t, uint64(600), node.Governance.VotingPeriod)
	require.Equal(t, governance.DefaultParams().MaxOperations, node.Governance.MaxOperations)
	require.Len(t, node.Allocations, 1)
	require.Equal(t, holder, node.Allocations[0].Address)
	require.True(t, node.Allocations[0].SelfDelegate)
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeFile(t, "govd.yaml", `dataDir: ./data
governance:
  name: Council
timelock:
  delaySeconds: 172800
api:
  requireAuth: true
  jwtSecret: topsecret
audit:
  enabled: true
  driver: postgres
  dsn: postgres://localhost/govd
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Council", cfg.Governance.Name)
	require.Equal(t, "postgres", cfg.Audit.Driver)
	require.Equal(t, "topsecret", cfg.JWTSecret())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown field":     "Bogus = 1\n",
		"delay too short":   "[Timelock]\nDelaySeconds = 60\n",
		"delay too long":    "[Timelock]\nDelaySeconds = 9999999\n",
		"bad address":       "[Governance]\nGuardian = \"nope\"\n",
		"shared address":    "[Token]\nAddress = \"" + DefaultGovernorAddress + "\"\n",
		"quorum below":      "[Governance]\nQuorumVotes = \"1\"\nProposalThreshold = \"2\"\n",
		"bad amount":        "[Governance]\nQuorumVotes = \"-5\"\n",
		"auth no secret":    "[API]\nRequireAuth = true\n",
		"alloc no minter":   "[[Token.Allocations]]\nAddress = \"0x00000000000000000000000000000000000000b1\"\nAmount = \"1\"\n",
		"unsupported audit": "[Audit]\nDriver = \"oracle\"\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "govd.toml", contents)
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestJWTSecretPrefersEnvironment(t *testing.T) {
	t.Setenv("GOVD_TEST_JWT", "from-env")
	cfg := Default()
	cfg.API.JWTSecret = "from-file"
	cfg.API.JWTSecretEnv = "GOVD_TEST_JWT"
	require.Equal(t, "from-env", cfg.JWTSecret())

	cfg.API.JWTSecretEnv = "GOVD_TEST_JWT_UNSET"
	require.True(t, strings.EqualFold("from-file", cfg.JWTSecret()))
}
