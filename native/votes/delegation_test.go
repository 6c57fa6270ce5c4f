package votes

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	coreerrors "govchain/core/errors"
	"govchain/core/events"
	"govchain/native/sigverify"
)

func TestDelegateEmitsChange(t *testing.T) {
	engine, _, _, emitter := newTestEngine(mockBalances{alice: uint256.NewInt(5)})
	require.NoError(t, engine.Delegate(alice, bob))

	delegate, err := engine.Delegates(alice)
	require.NoError(t, err)
	require.Equal(t, bob, delegate)

	require.NotEmpty(t, emitter.events)
	changed, ok := emitter.events[0].(events.DelegateChanged)
	require.True(t, ok)
	require.Equal(t, alice, changed.Delegator)
	require.Equal(t, common.Address{}, changed.FromDelegate)
	require.Equal(t, bob, changed.ToDelegate)
}

func TestMoveVotingPowerOnTransferFollowsDelegates(t *testing.T) {
	balances := mockBalances{alice: uint256.NewInt(100)}
	engine, _, _, _ := newTestEngine(balances)
	require.NoError(t, engine.Delegate(alice, alice))
	require.NoError(t, engine.Delegate(bob, carol))

	require.NoError(t, engine.MoveVotingPowerOnTransfer(alice, bob, uint256.NewInt(40)))
	alicePower, _ := engine.CurrentPower(alice)
	carolPower, _ := engine.CurrentPower(carol)
	require.True(t, alicePower.Eq(uint256.NewInt(60)))
	require.True(t, carolPower.Eq(uint256.NewInt(40)))

	// Zero amount and same-delegate moves are no-ops.
	require.NoError(t, engine.MoveVotingPowerOnTransfer(alice, bob, uint256.NewInt(0)))
	require.NoError(t, engine.MoveVotingPowerOnTransfer(alice, alice, uint256.NewInt(10)))
	alicePower, _ = engine.CurrentPower(alice)
	require.True(t, alicePower.Eq(uint256.NewInt(60)))
}

func TestUndelegatedHoldersCarryNoPower(t *testing.T) {
	engine, _, _, _ := newTestEngine(mockBalances{})
	dave := common.HexToAddress("0x00000000000000000000000000000000000000d4")

	// Minting into an account that never delegated creates no power.
	require.NoError(t, engine.MoveVotingPowerOnTransfer(common.Address{}, alice, uint256.NewInt(100)))
	checkpoints, err := engine.Checkpoints(alice)
	require.NoError(t, err)
	require.Empty(t, checkpoints)

	// The receiver's delegate gains only when the receiver has one.
	require.NoError(t, engine.Delegate(bob, carol))
	require.NoError(t, engine.MoveVotingPowerOnTransfer(alice, bob, uint256.NewInt(30)))
	carolPower, _ := engine.CurrentPower(carol)
	require.True(t, carolPower.Eq(uint256.NewInt(30)))

	// Sending from a delegated holder to an undelegated one burns power.
	require.NoError(t, engine.MoveVotingPowerOnTransfer(bob, dave, uint256.NewInt(10)))
	carolPower, _ = engine.CurrentPower(carol)
	require.True(t, carolPower.Eq(uint256.NewInt(20)))
}

func TestNestedDelegationDoesNotChain(t *testing.T) {
	balances := mockBalances{alice: uint256.NewInt(10), bob: uint256.NewInt(20)}
	engine, _, _, _ := newTestEngine(balances)

	require.NoError(t, engine.Delegate(alice, bob))
	require.NoError(t, engine.Delegate(bob, carol))

	bobPower, _ := engine.CurrentPower(bob)
	carolPower, _ := engine.CurrentPower(carol)
	require.True(t, bobPower.Eq(uint256.NewInt(10)))
	require.True(t, carolPower.Eq(uint256.NewInt(20)))
}

func TestMoveVotingPowerUnderflowFails(t *testing.T) {
	engine, _, _, _ := newTestEngine(mockBalances{})
	require.NoError(t, engine.Delegate(alice, alice))
	err := engine.MoveVotingPowerOnTransfer(alice, common.Address{}, uint256.NewInt(1))
	require.True(t, errors.Is(err, coreerrors.ErrState))
}

func TestDelegateBySig(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	signer := ethcrypto.PubkeyToAddress(key.PublicKey)
	balances := mockBalances{signer: uint256.NewInt(77)}
	engine, _, clock, _ := newTestEngine(balances)
	domain := sigverify.Domain{Name: "Token", ChainID: uint256.NewInt(1), VerifyingContract: common.HexToAddress("0xfe")}
	engine.SetDomain(domain)
	expiry := uint64(clock.now.Unix()) + 60

	sig, err := sigverify.SignDelegation(domain, key, bob, 0, expiry)
	require.NoError(t, err)
	recovered, err := engine.DelegateBySig(bob, 0, expiry, sig)
	require.NoError(t, err)
	require.Equal(t, signer, recovered)

	nonce, err := engine.Nonce(signer)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
	power, _ := engine.CurrentPower(bob)
	require.True(t, power.Eq(uint256.NewInt(77)))

	// Replaying the same authorisation fails on the nonce.
	_, err = engine.DelegateBySig(bob, 0, expiry, sig)
	require.True(t, errors.Is(err, coreerrors.ErrStaleNonce))

	expired, err := sigverify.SignDelegation(domain, key, carol, 1, expiry)
	require.NoError(t, err)
	clock.advance(61)
	_, err = engine.DelegateBySig(carol, 1, expiry, expired)
	require.True(t, errors.Is(err, coreerrors.ErrSignatureExpired))

	_, err = engine.DelegateBySig(carol, 1, expiry, []byte{0x01})
	require.True(t, errors.Is(err, coreerrors.ErrInvalidSignature))
}
