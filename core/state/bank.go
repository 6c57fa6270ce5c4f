package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BankBalance returns the token balance of account.
func (m *Manager) BankBalance(account common.Address) (*uint256.Int, error) {
	return m.getAmount(addressKey(bankBalancePrefix, account))
}

// BankSetBalance stores the token balance of account.
func (m *Manager) BankSetBalance(account common.Address, amount *uint256.Int) error {
	return m.putAmount(addressKey(bankBalancePrefix, account), amount)
}

// BankTotalSupply returns the circulating supply.
func (m *Manager) BankTotalSupply() (*uint256.Int, error) { return m.getAmount(bankTotalSupplyKey) }

// BankSetTotalSupply stores the circulating supply.
func (m *Manager) BankSetTotalSupply(amount *uint256.Int) error {
	return m.putAmount(bankTotalSupplyKey, amount)
}

// BankMinter returns the mint authority.
func (m *Manager) BankMinter() (common.Address, error) { return m.getAddress(bankMinterKey) }

// BankSetMinter stores the mint authority.
func (m *Manager) BankSetMinter(minter common.Address) error { return m.KVPut(bankMinterKey, minter) }
