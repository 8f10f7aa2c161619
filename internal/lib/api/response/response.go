package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Response is the envelope every player-facing handler returns. Code is a
// stable machine-readable identifier; clients branch on it, never on the
// message text.
type Response struct {
	Status int    `json:"status"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
}

const (
	StatusOK = 200
)

// Stable error codes for the gameplay error taxonomy.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidAmount        = "invalid_amount"
	CodeUnknownAsset         = "unknown_asset"
	CodeRoundNotAccepting    = "round_not_accepting_bets"
	CodeNoActiveRound        = "no_active_round"
	CodeAlreadyBet           = "already_bet"
	CodeNoOpenBet            = "no_open_bet"
	CodeAlreadySettled       = "already_settled"
	CodeCrashAlreadyOccurred = "crash_already_occurred"
	CodeInsufficientBalance  = "insufficient_balance"
	CodeUserNotFound         = "user_not_found"
	CodeRoundNotFound        = "round_not_found"
	CodeInternal             = "internal_error"
)

func OK() Response {
	return Response{
		Status: StatusOK,
	}
}

func Error(msg string, status int) Response {
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return Response{
		Status: status,
		Code:   CodeInternal,
		Error:  msg,
	}
}

func ErrorCode(code, msg string, status int) Response {
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return Response{
		Status: status,
		Code:   code,
		Error:  msg,
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is required", err.Field()))
		case "min":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is below the minimum", err.Field()))
		case "oneof":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s has an unsupported value", err.Field()))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is invalid", err.Field()))
		}
	}

	return Response{
		Status: http.StatusBadRequest,
		Code:   CodeInvalidRequest,
		Error:  strings.Join(errMsgs, ", "),
	}
}
