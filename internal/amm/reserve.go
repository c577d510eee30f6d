package amm

import "github.com/holiman/uint256"

// feeDenominator is the basis-point scale for all fee rates.
const feeDenominator = 10_000

// Swap prices a constant-product trade of grossAmountIn against the pool
// (reserveIn, reserveOut), skimming feeRateBps from the input before it
// enters the curve:
//
//	fee          = grossAmountIn * feeRateBps / 10_000
//	newReserveIn = reserveIn + (grossAmountIn - fee)
//	amountOut    = reserveOut - (reserveIn * reserveOut) / newReserveIn
//
// Division truncates, which biases rounding in the pool's favor. The
// returned amountOut is always strictly less than reserveOut; a trade that
// would fully drain the output reserve fails with ErrArithmetic, as do a
// zero input reserve and any 256-bit overflow. Inputs are not mutated.
func Swap(reserveIn, reserveOut, grossAmountIn *uint256.Int, feeRateBps uint64) (amountOut, fee *uint256.Int, err error) {
	if reserveIn.IsZero() {
		return nil, nil, ErrArithmetic
	}

	fee = new(uint256.Int)
	if feeRateBps > 0 {
		var overflow bool
		_, overflow = fee.MulOverflow(grossAmountIn, uint256.NewInt(feeRateBps))
		if overflow {
			return nil, nil, ErrArithmetic
		}
		fee.Div(fee, uint256.NewInt(feeDenominator))
	}

	netIn := new(uint256.Int).Sub(grossAmountIn, fee)

	newReserveIn := new(uint256.Int)
	if _, overflow := newReserveIn.AddOverflow(reserveIn, netIn); overflow {
		return nil, nil, ErrArithmetic
	}
	if newReserveIn.IsZero() {
		return nil, nil, ErrArithmetic
	}

	product := new(uint256.Int)
	if _, overflow := product.MulOverflow(reserveIn, reserveOut); overflow {
		return nil, nil, ErrArithmetic
	}

	newReserveOut := new(uint256.Int).Div(product, newReserveIn)
	if newReserveOut.IsZero() && !reserveOut.IsZero() {
		// The trade would drain the entire output side.
		return nil, nil, ErrArithmetic
	}

	amountOut = new(uint256.Int).Sub(reserveOut, newReserveOut)
	return amountOut, fee, nil
}

// feePortion returns amount * feeRateBps / 10_000, truncating.
func feePortion(amount *uint256.Int, feeRateBps uint64) (*uint256.Int, error) {
	fee := new(uint256.Int)
	if _, overflow := fee.MulOverflow(amount, uint256.NewInt(feeRateBps)); overflow {
		return nil, ErrArithmetic
	}
	return fee.Div(fee, uint256.NewInt(feeDenominator)), nil
}
