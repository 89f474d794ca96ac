package core

// # Error Codes Reference
//
// This file maps technical errors to user-friendly messages with codes for
// support reference. Codes are grouped by category:
//
// # Stream Errors (NDJ001-NDJ099)
//
//	NDJ001 - Stream read failed: the upload broke off mid-stream
//	         Action: Send the file again
//	         Patterns: "stream read failed"
//
// # Encoding Errors (ENC001-ENC099)
//
//	ENC001 - Unsupported encoding: Content-Encoding is not gzip, zstd or lz4
//	ENC002 - Corrupt body: compressed body could not be opened
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Body too large
//	FILE002 - Unsupported media type
//	FILE004 - No body
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - System busy: all import slots taken
//	IMP002 - Run not found
//	IMP003 - Request cancelled
//	IMP004 - Request timed out
//
// # Database Errors (DB004-DB005), Rate Limiting (RATE001), Default (ERR000)
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns come first:
// a body-size failure surfaces wrapped in a stream read error and must map
// to FILE001, not NDJ001.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File errors first: they arrive wrapped in stream errors.
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "Upload exceeds the maximum body size",
			Action:  "Split the file or send it compressed",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unsupported media type",
		msg: UserMessage{
			Message: "Upload is not NDJSON",
			Action:  "Send the file with Content-Type application/x-ndjson",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no body",
		msg: UserMessage{
			Message: "No data was sent",
			Action:  "Attach the NDJSON file as the request body",
			Code:    "FILE004",
		},
	},

	// =========================================================================
	// Stream Errors (NDJ001)
	// =========================================================================
	{
		pattern: "stream read failed",
		msg: UserMessage{
			Message: "The upload was interrupted while reading",
			Action:  "Please send the file again",
			Code:    "NDJ001",
		},
	},

	// =========================================================================
	// Encoding Errors (ENC001-ENC002)
	// =========================================================================
	{
		pattern: "unsupported content encoding",
		msg: UserMessage{
			Message: "The content encoding is not supported",
			Action:  "Send the file uncompressed or as gzip, zstd or lz4",
			Code:    "ENC001",
		},
	},
	{
		pattern: "corrupt compressed body",
		msg: UserMessage{
			Message: "The compressed upload could not be opened",
			Action:  "Check that Content-Encoding matches the file",
			Code:    "ENC002",
		},
	},

	// =========================================================================
	// Import Errors (IMP001-IMP004)
	// =========================================================================
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "import run not found",
		msg: UserMessage{
			Message: "Import run not found",
			Action:  "Check the run id; old runs are dropped from history",
			Code:    "IMP002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Import timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "IMP004",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB005)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or ERR000 when nothing matches.
//
// Example:
//
//	err := errors.New("stream read failed after line 12: unexpected EOF")
//	msg := MapError(err)
//	// msg.Code == "NDJ001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
