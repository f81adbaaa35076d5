// Package security provides validation, sanitization, and limits for the
// auto-answer engine.
//
// This package includes:
//   - Record ID and answer size validation
//   - Error message sanitization before reasons are shown or journaled
//   - Clamping of writer retry attempts and coalescing windows
//
// Most users should import the root package
// github.com/jdziat/questionnaire-autoanswer which re-exports these functions.
package security
