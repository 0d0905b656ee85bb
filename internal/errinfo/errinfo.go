package errinfo

// ErrorInfo is the structured error payload returned to the editor.
type ErrorInfo struct {
	ErrorCode string   `json:"error_code"`
	Phase     string   `json:"phase,omitempty"`
	Subphase  string   `json:"subphase,omitempty"`
	Retryable bool     `json:"retryable"`
	Actions   []string `json:"actions,omitempty"`
	ModelID   string   `json:"model_id,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	ToolName  string   `json:"tool_name,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

func (e *ErrorInfo) Error() string {
	if e.Detail != "" {
		return e.ErrorCode + ": " + e.Detail
	}
	return e.ErrorCode
}

const (
	CodeEgressBlocked         = "EGRESS_BLOCKED_BY_POLICY"
	CodeProviderAuthFailed    = "PROVIDER_AUTH_FAILED"
	CodeProviderUnavailable   = "PROVIDER_UNAVAILABLE"
	CodeNetworkUnavailable    = "NETWORK_UNAVAILABLE"
	CodeSandboxViolation      = "SANDBOX_VIOLATION"
	CodeSandboxNotInitialized = "SANDBOX_NOT_INITIALIZED"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeFileNotFound          = "FILE_NOT_FOUND"
	CodeFileReadFailed        = "FILE_READ_FAILED"
	CodeFileWriteFailed       = "FILE_WRITE_FAILED"
	CodeToolNotFound          = "TOOL_NOT_FOUND"
	CodeToolFailed            = "TOOL_FAILED"
	CodeUnknownCommand        = "UNKNOWN_COMMAND"
	CodeUserCanceled          = "USER_CANCELED"
	CodeAgentLoopDetected     = "AGENT_LOOP_DETECTED"
	CodeInternal              = "INTERNAL_ERROR"
)

const (
	ActionRetry      = "retry"
	ActionInitialize = "initialize"
	ActionOpenConfig = "open_config"
)

const (
	PhaseInitialize = "initialize"
	PhaseChat       = "chat"
	PhaseInline     = "inline_completion"
	PhaseHover      = "hover"
	PhaseTools      = "tools"
	PhaseProtocol   = "protocol"
)

const (
	SubphaseModelCall = "model_call"
	SubphaseInterpret = "interpret"
	SubphaseToolCall  = "tool_call"
)

func ProviderAuthFailed(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeProviderAuthFailed,
		Phase:     phase,
		Retryable: false,
		Actions:   []string{ActionOpenConfig},
	}
}

func ValidationFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeValidationFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func SandboxViolation(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeSandboxViolation,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func SandboxNotInitialized(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeSandboxNotInitialized,
		Phase:     phase,
		Retryable: true,
		Actions:   []string{ActionInitialize},
		Detail:    detail,
	}
}

func FileNotFound(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeFileNotFound,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func FileReadFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeFileReadFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func FileWriteFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeFileWriteFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func ToolNotFound(phase, name string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeToolNotFound,
		Phase:     phase,
		Retryable: false,
		ToolName:  name,
		Detail:    "tool not found: " + name,
	}
}

func ToolFailed(phase, name, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeToolFailed,
		Phase:     phase,
		Retryable: false,
		ToolName:  name,
		Detail:    detail,
	}
}

func UnknownCommand(command string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeUnknownCommand,
		Phase:     PhaseProtocol,
		Retryable: false,
		Detail:    "unknown command: " + command,
	}
}

func EgressBlocked(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeEgressBlocked,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func AgentLoopDetected(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeAgentLoopDetected,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func ProviderUnavailable(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeProviderUnavailable,
		Phase:     phase,
		Retryable: true,
		Actions:   []string{ActionRetry},
		Detail:    detail,
	}
}

func UserCanceled(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeUserCanceled,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func NetworkUnavailable(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeNetworkUnavailable,
		Phase:     phase,
		Retryable: true,
		Actions:   []string{ActionRetry},
		Detail:    detail,
	}
}

func Internal(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeInternal,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}
