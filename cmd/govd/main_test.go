package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"govchain/config"
	"govchain/core/events"
	"govchain/crypto"
	"govchain/native/sigverify"
	"govchain/storage/audit"
)

const testPassEnv = "GOVD_TEST_KEYSTORE_PASS"

func lightScrypt(t *testing.T) {
	t.Helper()
	crypto.ScryptN, crypto.ScryptP = keystore.LightScryptN, keystore.LightScryptP
	t.Cleanup(func() { crypto.ScryptN, crypto.ScryptP = keystore.StandardScryptN, keystore.StandardScryptP })
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func keygen(t *testing.T) (string, common.Address) {
	t.Helper()
	lightScrypt(t)
	t.Setenv(testPassEnv, "correct horse")
	path := filepath.Join(t.TempDir(), "keys", "voter.json")
	code, stdout, stderr := runCLI("keygen", "-out", path, "-pass-env", testPassEnv)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "Bech32:  gov1")

	key, err := crypto.LoadFromKeystore(path, "correct horse")
	require.NoError(t, err)
	addr := key.PubKey().Address().Common()
	require.Contains(t, stdout, addr.Hex())
	return path, addr
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	code, _, stderr := runCLI("frobnicate")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Unknown command")

	code, _, stderr = runCLI()
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Usage: govd")
}

func TestKeygenRefusesOverwrite(t *testing.T) {
	path, _ := keygen(t)
	code, _, stderr := runCLI("keygen", "-out", path, "-pass-env", testPassEnv)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Refusing to overwrite")
}

func TestSignVoteProducesRecoverableBallot(t *testing.T) {
	keyPath, signerAddr := keygen(t)
	cfgPath := filepath.Join(t.TempDir(), "govd.toml")

	code, stdout, stderr := runCLI("sign-vote", "-config", cfgPath, "-keystore", keyPath,
		"-pass-env", testPassEnv, "-proposal", "3", "-support")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stderr, "/v1/proposals/3/votes-by-sig")

	var body struct {
		Support   bool   `json:"support"`
		Signature string `json:"signature"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &body))
	require.True(t, body.Support)
	sig, err := hexutil.Decode(body.Signature)
	require.NoError(t, err)

	domain := sigverify.Domain{
		Name:              "Governor",
		ChainID:           uint256.NewInt(1),
		VerifyingContract: common.HexToAddress(config.DefaultGovernorAddress),
	}
	recovered, err := sigverify.Recover(sigverify.BallotDigest(domain, 3, true), sig)
	require.NoError(t, err)
	require.Equal(t, signerAddr, recovered)
}

func TestSignDelegationProducesRecoverableAuthorisation(t *testing.T) {
	keyPath, signerAddr := keygen(t)
	cfgPath := filepath.Join(t.TempDir(), "govd.toml")
	delegatee := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	code, stdout, stderr := runCLI("sign-delegation", "-config", cfgPath, "-keystore", keyPath,
		"-pass-env", testPassEnv, "-delegatee", delegatee.Hex(), "-nonce", "4", "-expiry", "1900000000")
	require.Equal(t, 0, code, stderr)

	var body struct {
		Delegatee string `json:"delegatee"`
		Nonce     uint64 `json:"nonce"`
		Expiry    uint64 `json:"expiry"`
		Signature string `json:"signature"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &body))
	require.Equal(t, delegatee.Hex(), body.Delegatee)
	require.Equal(t, uint64(4), body.Nonce)
	require.Equal(t, uint64(1900000000), body.Expiry)

	sig, err := hexutil.Decode(body.Signature)
	require.NoError(t, err)
	domain := sigverify.Domain{
		Name:              "Gov",
		ChainID:           uint256.NewInt(1),
		VerifyingContract: common.HexToAddress(config.DefaultTokenAddress),
	}
	recovered, err := sigverify.Recover(sigverify.DelegationDigest(domain, delegatee, 4, 1900000000), sig)
	require.NoError(t, err)
	require.Equal(t, signerAddr, recovered)
}

func TestSignCommandsValidateInput(t *testing.T) {
	code, _, stderr := runCLI("sign-vote")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Usage: govd sign-vote")

	code, _, stderr = runCLI("sign-delegation", "-delegatee", "nonsense")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Invalid delegatee")

	cfgPath := filepath.Join(t.TempDir(), "govd.toml")
	code, _, stderr = runCLI("sign-vote", "-config", cfgPath, "-proposal", "1")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "keystore path required")
}

func TestExportAuditWritesParquet(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "audit.db")
	store, err := audit.Open(audit.DriverSQLite, dsn)
	require.NoError(t, err)
	store.Emit(events.ProposalQueued{ID: 1, Eta: 100})
	store.Emit(events.ProposalExecuted{ID: 1})
	store.Emit(events.ProposalExecuted{ID: 2})
	require.NoError(t, store.Close())

	out := filepath.Join(dir, "audit.parquet")
	code, stdout, stderr := runCLI("export-audit", "-dsn", dsn, "-out", out, "-proposal", "1")
	require.Equal(t, 0, code, stderr)
	require.True(t, strings.HasPrefix(stdout, "Exported 2 audit records"), stdout)

	code, _, stderr = runCLI("export-audit", "-dsn", dsn)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Usage: govd export-audit")
}
