package order

import "errors"

var (
	ErrStoreWriteFailure   = errors.New("order: store write failure")
	ErrStoreReadFailure    = errors.New("order: store read failure")
	ErrInvalidStage        = errors.New("order: invalid lifecycle stage")
	ErrMissingExternalID   = errors.New("order: record has no external order id")
	ErrNegativeAmount      = errors.New("order: computed amount is negative")
	ErrStageRegression     = errors.New("order: lifecycle stage cannot move backward")
	ErrUnknownExportColumn = errors.New("order: unknown export column")
)
