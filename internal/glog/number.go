package glog

import "log/slog"

// N returns a copy of log that includes a field for the given block number.
func N[T ~uint32 | ~uint64](log *slog.Logger, number T) *slog.Logger {
	return log.With("number", uint64(number))
}

// NE returns a copy of log that includes fields for the given block number and error.
//
// This is a convenient shorthand for the common case
// of logging a rejected request.
func NE[T ~uint32 | ~uint64](log *slog.Logger, number T, e error) *slog.Logger {
	return log.With("number", uint64(number), "err", e)
}
