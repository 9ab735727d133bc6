package inventory

import "fmt"

// SplitRatio divides total into a 1:x working solution. partA is the stock
// concentrate and partB the diluent, so partA + partB == total.
func SplitRatio(total, x float64) (partA, partB float64, err error) {
	if total <= 0 {
		return 0, 0, fmt.Errorf("%w: total must be greater than 0", ErrInvalid)
	}
	if x <= 0 {
		return 0, 0, fmt.Errorf("%w: ratio must be greater than 0", ErrInvalid)
	}
	partA = total / (x + 1)
	partB = partA * x
	return partA, partB, nil
}
