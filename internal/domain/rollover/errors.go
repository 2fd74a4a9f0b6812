package rollover

import "errors"

var (
	ErrNoSourceBalances = errors.New("no balances found for source year")
	ErrEmployeeNotFound = errors.New("employee not found")
)
