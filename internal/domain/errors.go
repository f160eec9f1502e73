package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error is a typed engine error. Code is stable and safe to expose to clients.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

const (
	CodeInvalidConsumption  = "INVALID_CONSUMPTION"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeAlreadyPaid         = "ALREADY_PAID"
	CodeBillImmutable       = "BILL_IMMUTABLE"
	CodeDuplicateBillNumber = "DUPLICATE_BILL_NUMBER"
	CodeNotDeletable        = "NOT_DELETABLE"
	CodeNotFound            = "NOT_FOUND"
	CodeUserNotBillable     = "USER_NOT_BILLABLE"
	CodeInvalidInput        = "INVALID_INPUT"
)

var (
	ErrInvalidConsumption  = NewError(CodeInvalidConsumption, "current reading is lower than previous reading")
	ErrInvalidTransition   = NewError(CodeInvalidTransition, "bill status transition not allowed")
	ErrAlreadyPaid         = NewError(CodeAlreadyPaid, "bill is already paid")
	ErrBillImmutable       = NewError(CodeBillImmutable, "paid bills cannot be modified")
	ErrDuplicateBillNumber = NewError(CodeDuplicateBillNumber, "bill number already exists")
	ErrNotDeletable        = NewError(CodeNotDeletable, "paid bills cannot be deleted")
	ErrNotFound            = NewError(CodeNotFound, "resource not found")
	ErrUserNotBillable     = NewError(CodeUserNotBillable, "user is not active; new bills are not allowed")
	ErrInvalidInput        = NewError(CodeInvalidInput, "invalid input")
)

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// TotalMismatch is raised when a caller-supplied total disagrees with the
// computed one. It is a warning: the computed total is kept.
type TotalMismatch struct {
	Supplied decimal.Decimal
	Computed decimal.Decimal
}

func (w TotalMismatch) Error() string {
	return fmt.Sprintf("total mismatch: supplied %s, computed %s", w.Supplied.StringFixed(2), w.Computed.StringFixed(2))
}
