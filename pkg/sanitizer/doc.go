// Package sanitizer normalizes raw booking input before validation.
//
// All functions are idempotent: applying them twice gives the same result as
// applying them once. Invalid input is never an error here; it is passed
// through (or emptied) and left for the validator to reject.
//
// Normalization includes:
//   - Identifiers: trimmed of surrounding whitespace
//   - Dates and times: trimmed, single-digit hours zero-padded ("9:05" becomes "09:05")
//   - Modality: lowercased, separators folded to underscores ("In-Person" becomes "in_person")
//   - Notes: control characters removed, whitespace collapsed, length capped
//   - Phone numbers: E.164 format (+[country][number]) when the number is valid
//   - Emails: trimmed and lowercased
package sanitizer
