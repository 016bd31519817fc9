package procmem

// DisqualifyReason explains why a candidate PID was dropped from the
// current tick without aborting it (spec §7).
type DisqualifyReason int

const (
	DisqualifyNone DisqualifyReason = iota
	DisqualifyKernelProcess
	DisqualifyFilteredByArgs
	DisqualifyPermissionDenied
	DisqualifyFileMissing
)

func (r DisqualifyReason) String() string {
	switch r {
	case DisqualifyNone:
		return "none"
	case DisqualifyKernelProcess:
		return "KernelProcess"
	case DisqualifyFilteredByArgs:
		return "FilteredByArgs"
	case DisqualifyPermissionDenied:
		return "PermissionDenied"
	case DisqualifyFileMissing:
		return "FileMissing"
	default:
		return "unknown"
	}
}
