package modules

import (
	"context"
	"errors"
	"net/http"

	"vaultix/native/escrow"
)

const (
	codeInvalidParams = -32602
	codeServerError   = -32000
	codeUnauthorized  = -32001
	// Escrow failures use codeEscrowBase minus the escrow error code, so
	// EscrowNotFound (1) is reported as -33001.
	codeEscrowBase = -33000
)

type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidParams(message string, data interface{}) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: message, Data: data}
}

// EscrowErrorCode returns the JSON-RPC error code used for an escrow error
// code.
func EscrowErrorCode(code escrow.ErrorCode) int {
	return codeEscrowBase - int(code)
}

// fromError maps a runtime failure onto its RPC representation.
func fromError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	if escrow.IsAuthorizationFailure(err) {
		return &ModuleError{HTTPStatus: http.StatusUnauthorized, Code: codeUnauthorized, Message: err.Error()}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codeServerError, Message: err.Error()}
	}
	code, ok := escrow.CodeOf(err)
	if !ok {
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: err.Error()}
	}
	status := http.StatusBadRequest
	switch code {
	case escrow.CodeEscrowNotFound, escrow.CodeMilestoneNotFound:
		status = http.StatusNotFound
	case escrow.CodeEscrowAlreadyExists, escrow.CodeMilestoneAlreadyReleased, escrow.CodeEscrowNotActive:
		status = http.StatusConflict
	case escrow.CodeUnauthorizedAccess:
		status = http.StatusForbidden
	case escrow.CodeTreasuryNotInitialized:
		status = http.StatusPreconditionFailed
	}
	return &ModuleError{HTTPStatus: status, Code: EscrowErrorCode(code), Message: err.Error(), Data: code.String()}
}
