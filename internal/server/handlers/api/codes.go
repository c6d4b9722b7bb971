package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied
	CodeNotFound       = "E_NOT_FOUND"       // no such route

	// Auth errors
	CodeAuthInvalidCredentials    = "E_AUTH_INVALID_CREDENTIALS"     // token is invalid, expired, or malformed.
	CodeAuthTokenGenerationFailed = "E_AUTH_TOKEN_GENERATION_FAILED" // a failure during the generation of new access tokens.

	// Drive errors
	CodeDriveInvalid    = "E_DRIVE_INVALID"     // a submitted drive snapshot failed validation.
	CodeDriveSaveFailed = "E_DRIVE_SAVE_FAILED" // the drive snapshot could not be persisted.
)
