// Package logger provides structured logging for xscraper on top of zerolog.
//
// A global logger is initialised from config.LoggingConfig and used through
// package-level helpers; components that need isolation take a Logger in
// their options and fall back to a no-op logger when none is given.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.WithField("subject", "followers:jack").Info("Collection started")
//
// Console output is written to stderr so exports piped to stdout stay clean.
// TestLogger captures messages for assertions in tests.
package logger
