package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"govchain/cmd/internal/passphrase"
	"govchain/config"
	"govchain/crypto"
	"govchain/native/sigverify"
)

const defaultSignatureTTL = time.Hour

func runKeygenCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "", "Path of the keystore file to create")
	passEnv := fs.String("pass-env", keystorePassEnv, "Environment variable holding the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	path := strings.TrimSpace(*out)
	if path == "" {
		fmt.Fprintln(stderr, "Usage: govd keygen -out <keystore> [-pass-env VAR]")
		return 1
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(stderr, "Refusing to overwrite existing keystore %s\n", path)
		return 1
	}

	pass, err := passphrase.NewSource(*passEnv, "").RequireConfirmation().Get()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to generate key: %v\n", err)
		return 1
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			fmt.Fprintf(stderr, "Failed to create keystore directory: %v\n", err)
			return 1
		}
	}
	if err := crypto.SaveToKeystore(path, key, pass); err != nil {
		fmt.Fprintf(stderr, "Failed to write keystore: %v\n", err)
		return 1
	}
	addr := key.PubKey().Address()
	fmt.Fprintf(stdout, "Address: %s\n", addr.Common().Hex())
	fmt.Fprintf(stdout, "Bech32:  %s\n", addr.String())
	fmt.Fprintf(stdout, "Keystore: %s\n", path)
	return 0
}

// signer bundles what every signing command needs: the loaded key and the
// validated node configuration that determines the signing domains.
type signer struct {
	key *crypto.PrivateKey
	cfg *config.Config
}

func bindSignerFlags(fs *flag.FlagSet) (configPath, keystore, passEnv *string) {
	configPath = fs.String("config", defaultConfigPath, "Path to the configuration file (TOML or YAML)")
	keystore = fs.String("keystore", "", "Keystore path (defaults to Signing.KeystorePath)")
	passEnv = fs.String("pass-env", keystorePassEnv, "Environment variable holding the keystore passphrase")
	return configPath, keystore, passEnv
}

func loadSigner(configPath, keystore, passEnv string) (*signer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	path := strings.TrimSpace(keystore)
	if path == "" {
		path = strings.TrimSpace(cfg.Signing.KeystorePath)
	}
	if path == "" {
		return nil, fmt.Errorf("keystore path required; pass -keystore or set Signing.KeystorePath")
	}
	expected, err := crypto.KeystoreAddress(path)
	if err != nil {
		return nil, err
	}
	pass, err := passphrase.NewSource(passEnv, fmt.Sprintf("Passphrase for %s: ", expected.Hex())).Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, err
	}
	if key.PubKey().Address().Common() != expected {
		return nil, fmt.Errorf("keystore %s decrypts to a different address", filepath.Base(path))
	}
	return &signer{key: key, cfg: cfg}, nil
}

func (s *signer) domain(name, verifying string) (sigverify.Domain, error) {
	addr, err := crypto.ParseAddress(verifying)
	if err != nil {
		return sigverify.Domain{}, err
	}
	return sigverify.Domain{
		Name:              name,
		ChainID:           uint256.NewInt(s.cfg.Signing.ChainID),
		VerifyingContract: addr,
	}, nil
}

func (s *signer) address() string {
	return s.key.PubKey().Address().Common().Hex()
}

func writeSigned(stdout io.Writer, body interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}

func runSignVoteCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sign-vote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath, keystore, passEnv := bindSignerFlags(fs)
	proposal := fs.Uint64("proposal", 0, "Proposal identifier")
	support := fs.Bool("support", false, "Vote in favour of the proposal")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *proposal == 0 {
		fmt.Fprintln(stderr, "Usage: govd sign-vote -proposal <id> [-support] [-keystore path] [-config path]")
		return 1
	}

	s, err := loadSigner(*configPath, *keystore, *passEnv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	domain, err := s.domain(s.cfg.Governance.Name, s.cfg.Governance.Address)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	sig, err := sigverify.SignBallot(domain, s.key.PrivateKey, *proposal, *support)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to sign ballot: %v\n", err)
		return 1
	}
	fmt.Fprintf(stderr, "Signer: %s\nSubmit to: POST /v1/proposals/%d/votes-by-sig\n", s.address(), *proposal)
	if err := writeSigned(stdout, map[string]interface{}{
		"support":   *support,
		"signature": hexutil.Encode(sig),
	}); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runSignDelegationCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sign-delegation", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath, keystore, passEnv := bindSignerFlags(fs)
	delegateeFlag := fs.String("delegatee", "", "Account receiving the voting power")
	nonce := fs.Uint64("nonce", 0, "Current delegation nonce of the signer")
	expiry := fs.Uint64("expiry", 0, "Unix expiry of the authorisation (defaults to one hour from now)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*delegateeFlag) == "" {
		fmt.Fprintln(stderr, "Usage: govd sign-delegation -delegatee <addr> [-nonce n] [-expiry unix] [-keystore path] [-config path]")
		return 1
	}
	delegatee, err := crypto.ParseAddress(*delegateeFlag)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid delegatee: %v\n", err)
		return 1
	}
	exp := *expiry
	if exp == 0 {
		exp = uint64(time.Now().Add(defaultSignatureTTL).Unix())
	}

	s, err := loadSigner(*configPath, *keystore, *passEnv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	domain, err := s.domain(s.cfg.Token.Name, s.cfg.Token.Address)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	sig, err := sigverify.SignDelegation(domain, s.key.PrivateKey, delegatee, *nonce, exp)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to sign delegation: %v\n", err)
		return 1
	}
	fmt.Fprintf(stderr, "Signer: %s\nSubmit to: POST /v1/delegate-by-sig\n", s.address())
	if err := writeSigned(stdout, map[string]interface{}{
		"delegatee": delegatee.Hex(),
		"nonce":     *nonce,
		"expiry":    exp,
		"signature": hexutil.Encode(sig),
	}); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
