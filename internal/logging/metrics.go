package logging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts FileManager activity. Collectors are registered on the
// registerer passed to NewMetrics; a nil registerer leaves them unregistered.
type Metrics struct {
	EntriesBuffered *prometheus.CounterVec
	Flushes         prometheus.Counter
	FlushedBytes    prometheus.Counter
	Rotations       prometheus.Counter
	Compressions    prometheus.Counter
	FilesDeleted    prometheus.Counter
	DroppedLines    prometheus.Counter
	IOErrors        *prometheus.CounterVec
}

// NewMetrics creates the FileManager collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EntriesBuffered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logkeeper_entries_buffered_total",
			Help: "Log lines accepted into a file buffer, by level",
		}, []string{"level"}),
		Flushes: factory.NewCounter(prometheus.CounterOpts{
			Name: "logkeeper_flushes_total",
			Help: "Non-empty buffer flushes that reached disk",
		}),
		FlushedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "logkeeper_flushed_bytes_total",
			Help: "Bytes appended to log files",
		}),
		Rotations: factory.NewCounter(prometheus.CounterOpts{
			Name: "logkeeper_rotations_total",
			Help: "Log files rotated for exceeding the size limit",
		}),
		Compressions: factory.NewCounter(prometheus.CounterOpts{
			Name: "logkeeper_compressions_total",
			Help: "Rotated log files compressed with gzip",
		}),
		FilesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "logkeeper_files_deleted_total",
			Help: "Log files removed by retention cleanup or rotation pruning",
		}),
		DroppedLines: factory.NewCounter(prometheus.CounterOpts{
			Name: "logkeeper_dropped_lines_total",
			Help: "Buffered lines discarded after repeated flush failures",
		}),
		IOErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logkeeper_io_errors_total",
			Help: "File operations that failed, by operation",
		}, []string{"op"}),
	}
}
