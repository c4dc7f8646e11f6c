package registry

import "fmt"

// Registry validation error codes (R100-R199)
const (
	ErrSchemaViolation    = "R100" // document rejected by the CUE schema
	ErrModelEntrypoint    = "R101" // malformed entrypoint notation
	ErrModelFileMissing   = "R102" // model file not found
	ErrDataFileMissing    = "R103" // data dependency not found
	ErrCodeFileMissing    = "R104" // code dependency not found
	ErrTargetFileMissing  = "R105" // target file not found
	ErrObservationMissing = "R106" // observation data not found
	ErrDigestMalformed    = "R107" // digest not sha256:<64 hex>
)

// ValidationError is one problem found in a registry document.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}
