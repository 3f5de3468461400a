package solanafees

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

var ErrOverflow = errors.New("overflow")

const (
	DefaultLamportsPerSignature uint64 = 5000

	// Default rent sysvar parameters.
	LamportsPerByteYear     uint64 = 3480
	ExemptionThresholdYears uint64 = 2
	AccountStorageOverhead  uint64 = 128
)

type TxFeeEstimate struct {
	LamportsPerSignature uint64 `json:"lamports_per_signature"`
	Signatures           uint64 `json:"signatures"`
	BaseFeeLamports      uint64 `json:"base_fee_lamports"`

	ComputeUnitLimit    uint32 `json:"compute_unit_limit"`
	MicroLamportsPerCU  uint64 `json:"micro_lamports_per_cu"`
	PriorityFeeLamports uint64 `json:"priority_fee_lamports"`

	TotalLamports uint64 `json:"total_lamports"`
}

func PriorityFeeLamports(computeUnitLimit uint32, microLamportsPerCU uint64) (uint64, error) {
	if computeUnitLimit == 0 || microLamportsPerCU == 0 {
		return 0, nil
	}
	hi, lo := bits.Mul64(uint64(computeUnitLimit), microLamportsPerCU)
	if hi != 0 {
		return 0, ErrOverflow
	}
	const denom = uint64(1_000_000)
	return (lo + denom - 1) / denom, nil
}

func BaseFeeLamports(lamportsPerSignature uint64, signatures uint64) (uint64, error) {
	hi, lo := bits.Mul64(lamportsPerSignature, signatures)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// Estimate prices a transaction from its signature count and compute
// budget. A zero lamportsPerSignature means the cluster default.
func Estimate(signatures, lamportsPerSignature uint64, computeUnitLimit uint32, microLamportsPerCU uint64) (TxFeeEstimate, error) {
	if lamportsPerSignature == 0 {
		lamportsPerSignature = DefaultLamportsPerSignature
	}
	base, err := BaseFeeLamports(lamportsPerSignature, signatures)
	if err != nil {
		return TxFeeEstimate{}, err
	}
	priority, err := PriorityFeeLamports(computeUnitLimit, microLamportsPerCU)
	if err != nil {
		return TxFeeEstimate{}, err
	}
	total, carry := bits.Add64(base, priority, 0)
	if carry != 0 {
		return TxFeeEstimate{}, ErrOverflow
	}
	return TxFeeEstimate{
		LamportsPerSignature: lamportsPerSignature,
		Signatures:           signatures,
		BaseFeeLamports:      base,
		ComputeUnitLimit:     computeUnitLimit,
		MicroLamportsPerCU:   microLamportsPerCU,
		PriorityFeeLamports:  priority,
		TotalLamports:        total,
	}, nil
}

// RentExemptLamports is the minimum balance that keeps an account of
// dataLen bytes alive under the default rent parameters.
func RentExemptLamports(dataLen uint64) (uint64, error) {
	size, carry := bits.Add64(dataLen, AccountStorageOverhead, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(size, LamportsPerByteYear*ExemptionThresholdYears)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// LookupTableRentLamports is the rent-exempt balance of a table account
// holding n addresses.
func LookupTableRentLamports(n int) (uint64, error) {
	if n < 0 {
		return 0, fmt.Errorf("negative address count %d", n)
	}
	return RentExemptLamports(uint64(solana.AddressLookupTableDataLen(n)))
}

func (e TxFeeEstimate) String() string {
	return fmt.Sprintf("total=%d lamports (base=%d, priority=%d @ %d microLamports/CU, limit=%d)",
		e.TotalLamports,
		e.BaseFeeLamports,
		e.PriorityFeeLamports,
		e.MicroLamportsPerCU,
		e.ComputeUnitLimit,
	)
}
