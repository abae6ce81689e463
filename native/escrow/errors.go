package escrow

import (
	"errors"
	"fmt"
)

// ErrorCode identifies one kind of escrow failure. Codes are stable and are
// surfaced verbatim to RPC clients.
type ErrorCode uint32

const (
	CodeEscrowNotFound ErrorCode = iota + 1
	CodeEscrowAlreadyExists
	CodeMilestoneNotFound
	CodeMilestoneAlreadyReleased
	CodeUnauthorizedAccess
	CodeInvalidMilestoneAmount
	CodeTotalAmountMismatch
	CodeInsufficientBalance
	CodeEscrowNotActive
	CodeVectorTooLarge
	CodeTreasuryNotInitialized
	CodeInvalidFeeConfiguration
	CodeZeroAmount
	CodeInvalidDeadline
	CodeSelfDealing
)

var codeNames = map[ErrorCode]string{
	CodeEscrowNotFound:           "EscrowNotFound",
	CodeEscrowAlreadyExists:      "EscrowAlreadyExists",
	CodeMilestoneNotFound:        "MilestoneNotFound",
	CodeMilestoneAlreadyReleased: "MilestoneAlreadyReleased",
	CodeUnauthorizedAccess:       "UnauthorizedAccess",
	CodeInvalidMilestoneAmount:   "InvalidMilestoneAmount",
	CodeTotalAmountMismatch:      "TotalAmountMismatch",
	CodeInsufficientBalance:      "InsufficientBalance",
	CodeEscrowNotActive:          "EscrowNotActive",
	CodeVectorTooLarge:           "VectorTooLarge",
	CodeTreasuryNotInitialized:   "TreasuryNotInitialized",
	CodeInvalidFeeConfiguration:  "InvalidFeeConfiguration",
	CodeZeroAmount:               "ZeroAmount",
	CodeInvalidDeadline:          "InvalidDeadline",
	CodeSelfDealing:              "SelfDealing",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(c))
}

// Error is a coded escrow failure. Each kind has exactly one sentinel value,
// so errors.Is matches wrapped instances.
type Error struct {
	Code ErrorCode
	msg  string
}

func (e *Error) Error() string { return "escrow: " + e.msg }

var (
	ErrEscrowNotFound           = &Error{Code: CodeEscrowNotFound, msg: "escrow not found"}
	ErrEscrowAlreadyExists      = &Error{Code: CodeEscrowAlreadyExists, msg: "escrow already exists"}
	ErrMilestoneNotFound        = &Error{Code: CodeMilestoneNotFound, msg: "milestone not found"}
	ErrMilestoneAlreadyReleased = &Error{Code: CodeMilestoneAlreadyReleased, msg: "milestone already released"}
	ErrUnauthorizedAccess       = &Error{Code: CodeUnauthorizedAccess, msg: "unauthorized access"}
	ErrInvalidMilestoneAmount   = &Error{Code: CodeInvalidMilestoneAmount, msg: "invalid milestone amount"}
	ErrEscrowNotActive          = &Error{Code: CodeEscrowNotActive, msg: "escrow not active"}
	ErrVectorTooLarge           = &Error{Code: CodeVectorTooLarge, msg: "too many milestones"}
	ErrTreasuryNotInitialized   = &Error{Code: CodeTreasuryNotInitialized, msg: "treasury not initialized"}
	ErrInvalidFeeConfiguration  = &Error{Code: CodeInvalidFeeConfiguration, msg: "invalid fee configuration"}
	ErrZeroAmount               = &Error{Code: CodeZeroAmount, msg: "milestone amount must be positive"}
	ErrSelfDealing              = &Error{Code: CodeSelfDealing, msg: "depositor and recipient must differ"}

	// Reserved kinds. No operation produces them yet.
	ErrTotalAmountMismatch = &Error{Code: CodeTotalAmountMismatch, msg: "total amount mismatch"}
	ErrInsufficientBalance = &Error{Code: CodeInsufficientBalance, msg: "insufficient balance"}
	ErrInvalidDeadline     = &Error{Code: CodeInvalidDeadline, msg: "invalid deadline"}
)

// CodeOf extracts the escrow error code carried by err.
func CodeOf(err error) (ErrorCode, bool) {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code, true
	}
	return 0, false
}

// ErrAuthorization marks a call aborted because the caller could not prove
// control of a required identity. It carries no ErrorCode: the
// host treats it as an abort of the whole invocation.
var ErrAuthorization = errors.New("escrow: caller authorization failed")

// IsAuthorizationFailure reports whether err aborted on a missing proof.
func IsAuthorizationFailure(err error) bool {
	return errors.Is(err, ErrAuthorization)
}

var (
	errNilState  = errors.New("escrow engine: state not configured")
	errNilAuth   = errors.New("escrow engine: auth provider not configured")
	errNilLedger = errors.New("escrow engine: token ledger not configured")
)
