package errors

import "strings"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every layer.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeValidation         ErrorCode = "COMMON_006"
	ErrCodeSerialization      ErrorCode = "COMMON_007"
	ErrCodeDatabaseError      ErrorCode = "COMMON_008"
	ErrCodeCacheError         ErrorCode = "COMMON_009"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_010"
	ErrCodeNotImplemented     ErrorCode = "COMMON_011"
)

// Model-runtime error codes.  ErrCodeModelNotReady and ErrCodeModelCallFailed
// are the only codes the triage pipeline ever surfaces to callers; everything
// else inside the pipeline degrades to a documented fallback value instead of
// propagating.
const (
	ErrCodeModelNotReady      ErrorCode = "MDL_001"
	ErrCodeModelCallFailed    ErrorCode = "MDL_002"
	ErrCodeEmbeddingFailed    ErrorCode = "MDL_003"
	ErrCodeModelDownload      ErrorCode = "MDL_004"
	ErrCodeModelResponseEmpty ErrorCode = "MDL_005"
)

// Terminology error codes.
const (
	ErrCodeTermSearchFailed  ErrorCode = "TERM_001"
	ErrCodeTermImportFailed  ErrorCode = "TERM_002"
	ErrCodeTermSourceInvalid ErrorCode = "TERM_003"
	ErrCodeTermStoreNotReady ErrorCode = "TERM_004"
)

// Triage pipeline error codes.
const (
	ErrCodeStageBusy        ErrorCode = "TRI_001"
	ErrCodeEmptyTranscript  ErrorCode = "TRI_002"
	ErrCodeAuditPublishFail ErrorCode = "TRI_003"
)

// Aliases kept short for call-site readability.
const (
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeTimeout      = ErrCodeTimeout
	CodeUnavailable  = ErrCodeServiceUnavailable
)

// Module returns the module prefix of a code ("COMMON", "MDL", "TERM", "TRI").
// Alias codes without a prefix are returned verbatim.  Middleware uses this as
// a low-cardinality metric label.
func (c ErrorCode) Module() string {
	if i := strings.IndexByte(string(c), '_'); i > 0 {
		return string(c)[:i]
	}
	return string(c)
}
