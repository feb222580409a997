package errors

import (
	"errors"

	"github.com/burrowworks/critterledger/internal/errors/i18n"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// HandleError converts domain errors into gRPC statuses for host responses.
// The user-facing message comes from the catalog for the requested locale;
// empty or unknown locales resolve to the base catalog.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		catalog := i18n.GetCatalog(locale)
		userMsg := catalog.Format(string(domainErr.Code), domainErr.Metadata)
		return domainErr.ToGRPCStatus(catalog.Locale(), userMsg)
	}

	// Non-domain errors carry no detail that is safe to show callers.
	return status.Error(codes.Internal, "an unexpected error occurred")
}

// Localize renders the user-facing message for an error in the given locale.
// Non-domain errors render as the UNKNOWN code.
func Localize(err error, locale string) string {
	return i18n.GetCatalog(locale).Format(string(GetCode(err)), GetMetadata(err))
}

// GetCode extracts the domain code from an error chain.
// Returns CodeUnknown when no domain error is present.
func GetCode(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeUnknown
}

// IsCode reports whether the error chain carries the given code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// GetMetadata extracts metadata from a domain error in the chain.
// Returns nil when no domain error or metadata is present.
func GetMetadata(err error) map[string]string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Metadata
	}
	return nil
}
