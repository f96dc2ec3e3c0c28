package payroll

import "errors"

var (
	ErrLiquidationNotFound  = errors.New("liquidation not found")
	ErrCachedTotalsNotFound = errors.New("cached period totals not found")
	ErrNoLiquidations       = errors.New("no liquidations for period")
)
