package state

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

var (
	votesDelegatePrefix        = []byte("votes/delegate/")
	votesNoncePrefix           = []byte("votes/nonce/")
	votesCheckpointCountPrefix = []byte("votes/checkpoints/count/")
	votesCheckpointPrefix      = []byte("votes/checkpoints/entry/")

	governanceProposalCountKey = []byte("gov/proposals/count")
	governanceProposalPrefix   = []byte("gov/proposals/entry/")
	governanceReceiptPrefix    = []byte("gov/receipts/")
	governanceLatestPrefix     = []byte("gov/latest/")
	governanceParamsKey        = []byte("gov/params")

	timelockQueuedPrefix = []byte("timelock/queued/")
	timelockAdminKey     = []byte("timelock/admin")
	timelockPendingKey   = []byte("timelock/pending-admin")
	timelockDelayKey     = []byte("timelock/delay")

	bankBalancePrefix  = []byte("bank/balance/")
	bankTotalSupplyKey = []byte("bank/total-supply")
	bankMinterKey      = []byte("bank/minter")

	paramStorePrefix = []byte("params/")
)

func prefixed(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	out := make([]byte, 0, size)
	out = append(out, prefix...)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}

func addressKey(prefix []byte, addr common.Address) []byte {
	return prefixed(prefix, addr.Bytes())
}

func uint64Bytes(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}
