package main

import (
	"fmt"
	"io"
	"os"
)

const (
	defaultConfigPath = "./govd.toml"
	keystorePassEnv   = "GOVD_KEYSTORE_PASS"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "serve":
		return runServeCommand(args[1:], stdout, stderr)
	case "keygen":
		return runKeygenCommand(args[1:], stdout, stderr)
	case "sign-vote":
		return runSignVoteCommand(args[1:], stdout, stderr)
	case "sign-delegation":
		return runSignDelegationCommand(args[1:], stdout, stderr)
	case "export-audit":
		return runExportAuditCommand(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command %q\n\n%s\n", args[0], usage())
		return 1
	}
}

func usage() string {
	return `Usage: govd <command> [flags]

Commands:
  serve             run the governance node and HTTP API
  keygen            create an encrypted keystore
  sign-vote         sign a ballot for submission via votes-by-sig
  sign-delegation   sign a delegation for submission via delegate-by-sig
  export-audit      export the audit trail to a parquet file`
}
