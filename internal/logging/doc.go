// Package logging implements the structured application log: entry types,
// the text, JSON, CSV, compact and detailed formats, and the file manager
// that buffers, rotates, compresses and expires log files.
//
// # Components
//
//   - [Entry] and its [Level], [Source] and [Category] enums
//   - [Format] and friends: pure functions from an entry to a string
//   - [FileManager]: per-file buffers committed on a timer, when a buffer
//     fills, or immediately for ERROR and FATAL entries
//   - [Service] and [Logger]: the façade applications log through
//
// # Files
//
// The live file for a process run is
//
//	<logDir>/<YYYY-MM-DD>/<sessionId>.log
//
// where the session id is the start time as YYYY-MM-DD-HH-mm-ss. A file that
// reaches maxFileSize is renamed to <sessionId>-rotated-<timestamp>.log in
// the same folder and, when compression is enabled, gzipped in the
// background. At most maxFiles rotations are kept per live file. Files older
// than retentionDays are deleted from the date folders and from archives/.
//
// # Thread Safety
//
// All exported types are safe for concurrent use. Each log file has its own
// lock covering its buffer, flushes and rotation; writes to different files
// do not contend.
//
// # Basic Usage
//
//	cfgManager := config.NewManager(config.ConfigFile(), config.Default())
//	svc := logging.NewService(cfgManager)
//	defer svc.Close()
//
//	log := svc.Logger(logging.SourceMain)
//	log.Info("window opened", logging.CategoryWindow, "window.go",
//	    logging.WithField("id", 3))
//	log.Error("save failed", logging.CategoryFile, "store.go",
//	    logging.WithError(err), logging.WithTransaction(logging.NewTransactionID()))
//
// Entries below the configured level are dropped before they are formatted.
// Buffered entries are lost if the process exits without Flush or Close.
//
// # Testing
//
// Use [NopLogger] for the diagnostics logger, and [WithFs] with an
// afero.MemMapFs to keep log files in memory.
package logging
