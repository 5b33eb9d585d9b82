// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, WarnKV, etc.).
//
// Long-running components take a context and extract the logger from it, so
// fields attached upstream (task IDs, command sources) follow the work.
package logger
