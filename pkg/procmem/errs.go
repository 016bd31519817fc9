package procmem

import "errors"

var (
	// ErrVitalsUnavailable means a required field was absent from
	// /proc/meminfo. Fatal for the tick; surfaced to the caller.
	ErrVitalsUnavailable = errors.New("procmem: required vitals field unavailable")

	// ErrNoProcesses means PID enumeration returned nothing at all
	// (distinct from every candidate being disqualified).
	ErrNoProcesses = errors.New("procmem: no processes enumerated")

	// ErrBadInterval means a non-positive loop interval was requested
	// where a positive one is required by the caller.
	ErrBadInterval = errors.New("procmem: interval must be > 0")

	// errFileMissing/errPermissionDenied are what translateErr turns
	// procfs-layer errors into; disqualifyFromErr maps them to a
	// DisqualifyReason.
	errFileMissing      = errors.New("procmem: file missing")
	errPermissionDenied = errors.New("procmem: permission denied")
)
