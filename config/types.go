package config

// Governance configures the proposal registry and its parameter registry.
type Governance struct {
	Address             string `toml:"Address" yaml:"address"`
	Name                string `toml:"Name" yaml:"name"`
	Guardian            string `toml:"Guardian" yaml:"guardian"`
	QuorumVotes         string `toml:"QuorumVotes" yaml:"quorumVotes"`
	ProposalThreshold   string `toml:"ProposalThreshold" yaml:"proposalThreshold"`
	MaxOperations       uint64 `toml:"MaxOperations" yaml:"maxOperations"`
	VotingPeriodSeconds uint64 `toml:"VotingPeriodSeconds" yaml:"votingPeriodSeconds"`
	ParamsAddress       string `toml:"ParamsAddress" yaml:"paramsAddress"`
	FeeToSetter         string `toml:"FeeToSetter" yaml:"feeToSetter"`
}

// Timelock configures the execution queue. An empty Admin defaults to the
// governance address.
type Timelock struct {
	Address      string `toml:"Address" yaml:"address"`
	Admin        string `toml:"Admin" yaml:"admin"`
	PendingAdmin string `toml:"PendingAdmin" yaml:"pendingAdmin"`
	DelaySeconds uint64 `toml:"DelaySeconds" yaml:"delaySeconds"`
}

// Signing configures the typed-data domain shared by signed ballots and
// delegations.
type Signing struct {
	ChainID      uint64 `toml:"ChainID" yaml:"chainId"`
	KeystorePath string `toml:"KeystorePath" yaml:"keystorePath"`
}

// Allocation is a genesis token balance.
type Allocation struct {
	Address      string `toml:"Address" yaml:"address"`
	Amount       string `toml:"Amount" yaml:"amount"`
	SelfDelegate bool   `toml:"SelfDelegate" yaml:"selfDelegate"`
}

// Token configures the governance token ledger.
type Token struct {
	Address     string       `toml:"Address" yaml:"address"`
	Name        string       `toml:"Name" yaml:"name"`
	Minter      string       `toml:"Minter" yaml:"minter"`
	Allocations []Allocation `toml:"Allocations" yaml:"allocations"`
}

// API configures the HTTP surface.
type API struct {
	ListenAddress       string  `toml:"ListenAddress" yaml:"listenAddress"`
	RequireAuth         bool    `toml:"RequireAuth" yaml:"requireAuth"`
	JWTSecret           string  `toml:"JWTSecret" yaml:"jwtSecret"`
	JWTSecretEnv        string  `toml:"JWTSecretEnv" yaml:"jwtSecretEnv"`
	JWTIssuer           string  `toml:"JWTIssuer" yaml:"jwtIssuer"`
	RateLimitPerSecond  float64 `toml:"RateLimitPerSecond" yaml:"rateLimitPerSecond"`
	RateLimitBurst      int     `toml:"RateLimitBurst" yaml:"rateLimitBurst"`
	ReadTimeoutSeconds  int     `toml:"ReadTimeoutSeconds" yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds int     `toml:"WriteTimeoutSeconds" yaml:"writeTimeoutSeconds"`
}

// Audit configures the relational audit trail.
type Audit struct {
	Enabled bool   `toml:"Enabled" yaml:"enabled"`
	Driver  string `toml:"Driver" yaml:"driver"`
	DSN     string `toml:"DSN" yaml:"dsn"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"insecure"`
	Headers     string  `toml:"Headers" yaml:"headers"`
	Metrics     bool    `toml:"Metrics" yaml:"metrics"`
	Traces      bool    `toml:"Traces" yaml:"traces"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"sampleRatio"`
}

// Logging configures the structured logger.
type Logging struct {
	Env        string `toml:"Env" yaml:"env"`
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"maxAgeDays"`
}
