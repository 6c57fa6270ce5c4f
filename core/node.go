// Package core sequences governance operations. Every state-changing call runs
// under one lock against a journaled state manager; it is committed as a
// single batch when it succeeds and discarded entirely when it fails.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"govchain/core/events"
	"govchain/core/state"
	"govchain/native/bank"
	"govchain/native/governance"
	"govchain/native/params"
	"govchain/native/sigverify"
	"govchain/native/timelock"
	"govchain/native/votes"
	"govchain/observability"
	govotel "govchain/observability/otel"
	"govchain/storage"
)

// Allocation mints an initial token balance during bootstrap.
type Allocation struct {
	Address      common.Address
	Amount       *uint256.Int
	SelfDelegate bool
}

// Config describes the identities and genesis parameters of a node.
type Config struct {
	ChainID  uint64
	Governor common.Address
	Timelock common.Address
	Token    common.Address
	Params   common.Address

	GovernorName string
	TokenName    string

	Guardian             common.Address
	TimelockAdmin        common.Address
	TimelockPendingAdmin common.Address
	TimelockDelay        uint64
	Governance           governance.Params

	Minter      common.Address
	FeeToSetter common.Address
	Allocations []Allocation
}

// Node is the central controller, wiring all governance components together.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	state   *state.Manager
	buffer  *events.Buffer
	subs    []events.Emitter
	subsMu  sync.RWMutex
	clock   func() time.Time
	last    time.Time
	current time.Time
	logger  *slog.Logger
	tracer  trace.Tracer

	votes      *votes.Engine
	governance *governance.Engine
	timelock   *timelock.Engine
	bank       *bank.Ledger
	params     *params.Registry
}

// Option customises node construction.
type Option func(*Node)

// WithClock overrides the wall clock used to stamp operations.
func WithClock(clock func() time.Time) Option {
	return func(n *Node) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithLogger overrides the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNode wires the engines on top of db and applies the bootstrap
// configuration when the database is empty.
func NewNode(db storage.Database, cfg Config, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	n := &Node{
		db:     db,
		state:  state.NewManager(db),
		buffer: &events.Buffer{},
		clock:  func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
		tracer: govotel.Tracer("govchain/core"),
	}
	for _, opt := range opts {
		opt(n)
	}
	now := n.now

	chainID := uint256.NewInt(cfg.ChainID)

	n.votes = votes.NewEngine()
	n.votes.SetState(n.state)
	n.votes.SetEmitter(n.buffer)
	n.votes.SetNowFunc(now)
	n.votes.SetDomain(sigverify.Domain{Name: cfg.TokenName, ChainID: chainID, VerifyingContract: cfg.Token})

	n.bank = bank.NewLedger(cfg.Token)
	n.bank.SetState(n.state)
	n.bank.SetEmitter(n.buffer)
	n.bank.SetTransferHook(n.votes)
	n.votes.SetBalances(n.bank)

	router := timelock.NewRouter()
	n.timelock = timelock.NewEngine(cfg.Timelock)
	n.timelock.SetState(n.state)
	n.timelock.SetEmitter(n.buffer)
	n.timelock.SetNowFunc(now)
	n.timelock.SetRouter(router)

	n.governance = governance.NewEngine(cfg.Governor)
	n.governance.SetState(n.state)
	n.governance.SetEmitter(n.buffer)
	n.governance.SetNowFunc(now)
	n.governance.SetVotingPower(n.votes)
	n.governance.SetTimelock(n.timelock)
	n.governance.SetGuardian(cfg.Guardian)
	n.governance.SetDomain(sigverify.Domain{Name: cfg.GovernorName, ChainID: chainID, VerifyingContract: cfg.Governor})
	if cfg.Governance.QuorumVotes != nil && cfg.Governance.ProposalThreshold != nil {
		n.governance.SetDefaultParams(cfg.Governance)
	}

	n.params = params.NewRegistry(cfg.Timelock)
	n.params.SetState(n.state)
	n.params.SetEmitter(n.buffer)

	router.Register(cfg.Governor, n.governance)
	router.Register(cfg.Token, bank.NewTarget(n.bank))
	router.Register(cfg.Params, n.params)

	if err := n.bootstrap(cfg); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) bootstrap(cfg Config) error {
	return n.apply("bootstrap", func() error {
		admin := cfg.TimelockAdmin
		if admin == (common.Address{}) {
			admin = cfg.Governor
		}
		delay := cfg.TimelockDelay
		if delay == 0 {
			delay = timelock.DefaultDelay
		}
		if err := n.timelock.Initialize(admin, cfg.TimelockPendingAdmin, delay); err != nil {
			return err
		}
		if cfg.Minter != (common.Address{}) {
			if err := n.bank.Initialize(cfg.Minter); err != nil {
				return err
			}
		}
		if err := n.params.Initialize(cfg.FeeToSetter); err != nil {
			return err
		}
		supply, err := n.bank.TotalSupply()
		if err != nil {
			return err
		}
		if !supply.IsZero() {
			return nil
		}
		minter, err := n.bank.Minter()
		if err != nil {
			return err
		}
		if len(cfg.Allocations) > 0 && minter == (common.Address{}) {
			return fmt.Errorf("core: genesis allocations require a minter")
		}
		for _, alloc := range cfg.Allocations {
			if alloc.SelfDelegate {
				if err := n.votes.Delegate(alloc.Address, alloc.Address); err != nil {
					return err
				}
			}
			if err := n.bank.Mint(minter, alloc.Address, alloc.Amount); err != nil {
				return fmt.Errorf("core: genesis allocation %s: %w", alloc.Address.Hex(), err)
			}
		}
		return nil
	})
}

// Subscribe registers an emitter that receives every committed event.
func (n *Node) Subscribe(emitter events.Emitter) {
	if emitter == nil {
		return
	}
	n.subsMu.Lock()
	n.subs = append(n.subs, emitter)
	n.subsMu.Unlock()
}

func (n *Node) now() time.Time { return n.current }

// tick advances the operation clock. A wall clock that moved backwards is
// clamped to the last observed time.
func (n *Node) tick() {
	t := n.clock()
	if t.Before(n.last) {
		t = n.last
	}
	n.last = t
	n.current = t
}

// Now returns the timestamp the next operation would observe.
func (n *Node) Now() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tick()
	return uint64(n.current.Unix())
}

// apply runs fn as one all-or-nothing operation.
func (n *Node) apply(operation string, fn func() error) error {
	started := time.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tick()

	_, span := n.tracer.Start(context.Background(), "core."+operation,
		trace.WithAttributes(attribute.Int64("govchain.time", n.current.Unix())))
	defer span.End()

	err := fn()
	if err == nil {
		err = n.state.Commit()
	}
	if err != nil {
		n.state.Discard()
		n.buffer.Reset()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.GovernanceMetrics().ObserveOperation(operation, err, time.Since(started))
		n.logger.Warn("operation rejected", slog.String("operation", operation), slog.String("error", err.Error()))
		return err
	}

	committed := n.buffer.Drain()
	n.subsMu.RLock()
	subs := append([]events.Emitter(nil), n.subs...)
	n.subsMu.RUnlock()
	for _, evt := range committed {
		if payload, ok := evt.(events.Payload); ok {
			if rendered := payload.Event(); rendered != nil {
				observability.GovernanceMetrics().RecordEvent(rendered.Type, rendered.Attributes)
			}
		}
		events.Fanout(subs).Emit(evt)
	}
	observability.GovernanceMetrics().ObserveOperation(operation, nil, time.Since(started))
	n.logger.Debug("operation committed",
		slog.String("operation", operation),
		slog.Int("events", len(committed)),
		slog.Duration("duration", time.Since(started)))
	return nil
}

// view runs a read-only query under the sequencer lock.
func (n *Node) view(fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tick()
	defer n.state.Discard()
	return fn()
}
