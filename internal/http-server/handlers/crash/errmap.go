package crash

import (
	"errors"
	"net/http"

	"go-crashout/internal/engine"
	"go-crashout/internal/ledger"
	resp "go-crashout/internal/lib/api/response"
)

// MapError translates an engine or ledger error into the stable code the
// envelope carries, so clients branch on semantics rather than text.
func MapError(err error) resp.Response {
	switch {
	case errors.Is(err, engine.ErrInvalidAmount):
		return resp.ErrorCode(resp.CodeInvalidAmount, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrUnknownAsset):
		return resp.ErrorCode(resp.CodeUnknownAsset, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrRoundNotAcceptingBets):
		return resp.ErrorCode(resp.CodeRoundNotAccepting, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrNoActiveRound):
		return resp.ErrorCode(resp.CodeNoActiveRound, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrCrashAlreadyOccurred):
		return resp.ErrorCode(resp.CodeCrashAlreadyOccurred, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrAlreadyBet):
		return resp.ErrorCode(resp.CodeAlreadyBet, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrNoOpenBet):
		return resp.ErrorCode(resp.CodeNoOpenBet, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrAlreadySettled):
		return resp.ErrorCode(resp.CodeAlreadySettled, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return resp.ErrorCode(resp.CodeInsufficientBalance, err.Error(), http.StatusPaymentRequired)
	}

	return resp.Error("internal error", http.StatusInternalServerError)
}
