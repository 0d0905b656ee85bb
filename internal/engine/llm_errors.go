package engine

import (
	"context"
	"errors"
	"net"

	"axiom/engine/internal/errinfo"
	"axiom/engine/internal/llm"
)

func mapLLMError(phase, modelID string, err error) *errinfo.ErrorInfo {
	info := classifyLLMError(phase, err)
	info.ModelID = modelID
	info.Subphase = errinfo.SubphaseModelCall
	return info
}

func classifyLLMError(phase string, err error) *errinfo.ErrorInfo {
	switch {
	case err == nil:
		return errinfo.Internal(phase, "model call failed without an error")
	case errors.Is(err, llm.ErrUnauthorized):
		return errinfo.ProviderAuthFailed(phase)
	case errors.Is(err, llm.ErrEgressBlocked):
		return errinfo.EgressBlocked(phase, "model endpoint not allowed")
	case errors.Is(err, llm.ErrUnavailable), errors.Is(err, llm.ErrRateLimited):
		return errinfo.ProviderUnavailable(phase, err.Error())
	case errors.Is(err, context.Canceled):
		return errinfo.UserCanceled(phase, "turn canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return errinfo.NetworkUnavailable(phase, err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errinfo.NetworkUnavailable(phase, err.Error())
	}
	if errors.Is(err, llm.ErrBadResponse) {
		return errinfo.ValidationFailed(phase, err.Error())
	}
	return errinfo.Internal(phase, err.Error())
}
