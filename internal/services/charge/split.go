package charge

import (
	"fmt"
	"math"

	"payflow/internal/models"
)

// splitTolerance absorbs float rounding when comparing part sums to the
// charge amount.
const splitTolerance = 1e-6

// ValidateSplit checks that the allocation has non-negative parts summing
// exactly to the charge amount. An empty allocation is valid (no split).
func ValidateSplit(splits models.SplitInstructions, amount float64) error {
	if len(splits) == 0 {
		return nil
	}
	var sum float64
	for _, split := range splits {
		if split.Recipient == "" {
			return fmt.Errorf("%w: empty recipient", ErrInvalidSplit)
		}
		if split.Amount < 0 {
			return fmt.Errorf("%w: negative amount for recipient %s", ErrInvalidSplit, split.Recipient)
		}
		sum += split.Amount
	}
	if math.Abs(sum-amount) > splitTolerance {
		return fmt.Errorf("%w: parts sum to %.2f, charge amount is %.2f", ErrInvalidSplit, sum, amount)
	}
	return nil
}
