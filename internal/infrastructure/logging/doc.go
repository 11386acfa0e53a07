// Package logging provides structured logging for the clinic core.
//
// It wraps log/slog with level filtering, a JSON or text handler, and
// default service/version fields on every entry.
//
// Patient records are sensitive: log entries must carry record identifiers
// (patient ID, visit ID), never names, birth dates, or medical notes.
// Credentials are never logged in any form.
package logging
