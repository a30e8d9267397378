package wayline

import "fmt"

// Verdict is the small closed output space of the error classifier.
type Verdict int

const (
	// VerdictSuccess means the code reports no error.
	VerdictSuccess Verdict = iota

	// VerdictRetryable means the condition is transient and the caller
	// may retry. This core never retries on its own.
	VerdictRetryable

	// VerdictTerminal means the task cannot continue; the kind selects
	// the terminal status to force.
	VerdictTerminal

	// VerdictUserAction means the condition needs an operator decision
	// (fix a file, resume, adjust limits) before anything can proceed.
	VerdictUserAction
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictRetryable:
		return "retryable"
	case VerdictTerminal:
		return "terminal"
	case VerdictUserAction:
		return "user_action"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// IsValid reports whether the verdict is one of the defined buckets.
func (v Verdict) IsValid() bool {
	return v >= VerdictSuccess && v <= VerdictUserAction
}

// TerminalKind selects which terminal status a terminal verdict forces.
type TerminalKind string

const (
	TerminalNone     TerminalKind = ""
	TerminalFailed   TerminalKind = "failed"
	TerminalRejected TerminalKind = "rejected"
	TerminalTimeout  TerminalKind = "timeout"
	TerminalUnknown  TerminalKind = "unknown"
)

// Classification is the classifier's verdict for one wire error code.
type Classification struct {
	Code    int
	Verdict Verdict
	Kind    TerminalKind
	Message string
}

// IsTerminal reports whether the classification forces a terminal status.
func (c Classification) IsTerminal() bool {
	return c.Verdict == VerdictTerminal
}

// TerminalStatus maps a terminal classification to the status it
// forces. Unknown codes map to failed: never silently retried, always
// surfaced.
func (c Classification) TerminalStatus() (TaskStatus, bool) {
	if c.Verdict != VerdictTerminal {
		return "", false
	}
	switch c.Kind {
	case TerminalRejected:
		return TaskStatusRejected, true
	case TerminalTimeout:
		return TaskStatusTimeout, true
	default:
		return TaskStatusFailed, true
	}
}

// CodeSuccess is the wire code for "no error".
const CodeSuccess = 0

// codeRange assigns a family default to a contiguous block of codes.
type codeRange struct {
	lo, hi  int
	verdict Verdict
	kind    TerminalKind
	message string
}

// classRanges covers the code families the device firmware emits.
// Specific codes in classEntries override their family default, so the
// table stays total without hand-written branching.
//
// Families:
//
//	312xxx transport / link
//	314xxx wayline file and validation
//	315xxx safety-limit trips
//	316xxx sensor quality
//	317xxx user-initiated interruptions
//	319xxx device-side rejections
//	320xxx breakpoint validation
//	321xxx schedule / time window
var classRanges = []codeRange{
	{312000, 312999, VerdictRetryable, TerminalNone, "transport error, command may be retried"},
	{314000, 314999, VerdictTerminal, TerminalFailed, "wayline file error"},
	{315000, 315999, VerdictTerminal, TerminalFailed, "flight safety limit reached"},
	{316000, 316999, VerdictRetryable, TerminalNone, "sensor quality degraded, condition may clear"},
	{317000, 317999, VerdictUserAction, TerminalNone, "interrupted by operator"},
	{319000, 319999, VerdictTerminal, TerminalRejected, "rejected by device"},
	{320000, 320999, VerdictTerminal, TerminalRejected, "breakpoint validation failed on device"},
	{321000, 321999, VerdictTerminal, TerminalTimeout, "task schedule expired"},
}

// classEntries carries the per-code messages and the codes whose bucket
// differs from their family default.
var classEntries = map[int]Classification{
	CodeSuccess: {Verdict: VerdictSuccess, Message: "ok"},

	// Transport / link.
	312001: {Verdict: VerdictRetryable, Message: "device did not answer in time"},
	312002: {Verdict: VerdictRetryable, Message: "device offline"},
	312003: {Verdict: VerdictRetryable, Message: "command channel congested"},
	312004: {Verdict: VerdictRetryable, Message: "dock is relaying, drone link unstable"},

	// Wayline file and validation.
	314001: {Verdict: VerdictTerminal, Kind: TerminalFailed, Message: "wayline file does not exist on device"},
	314002: {Verdict: VerdictUserAction, Message: "wayline file cannot be parsed, re-export the mission"},
	314003: {Verdict: VerdictUserAction, Message: "wayline file checksum mismatch, re-upload the mission"},
	314004: {Verdict: VerdictRetryable, Message: "wayline file download failed"},
	314005: {Verdict: VerdictUserAction, Message: "wayline format version not supported by device firmware"},
	314006: {Verdict: VerdictTerminal, Kind: TerminalFailed, Message: "wayline contains no executable route"},
	314007: {Verdict: VerdictTerminal, Kind: TerminalRejected, Message: "requested wayline id out of range"},

	// Safety-limit trips.
	315001: {Verdict: VerdictTerminal, Kind: TerminalFailed, Message: "height limit reached"},
	315002: {Verdict: VerdictTerminal, Kind: TerminalFailed, Message: "distance limit reached"},
	315003: {Verdict: VerdictTerminal, Kind: TerminalFailed, Message: "geofence boundary reached"},
	315004: {Verdict: VerdictTerminal, Kind: TerminalFailed, Message: "battery reached forced return threshold"},
	315005: {Verdict: VerdictTerminal, Kind: TerminalFailed, Message: "wind too strong to continue"},
	315006: {Verdict: VerdictTerminal, Kind: TerminalFailed, Message: "obstacle detected on route"},
	315007: {Verdict: VerdictTerminal, Kind: TerminalFailed, Message: "airspace restriction active"},

	// Sensor quality.
	316001: {Verdict: VerdictRetryable, Message: "rtk not converged"},
	316002: {Verdict: VerdictRetryable, Message: "satellite positioning poor"},
	316003: {Verdict: VerdictRetryable, Message: "ambient light too low for vision system"},
	316004: {Verdict: VerdictTerminal, Kind: TerminalFailed, Message: "compass interference"},

	// User-initiated interruptions.
	317001: {Verdict: VerdictUserAction, Message: "paused by operator"},
	317002: {Verdict: VerdictUserAction, Message: "operator took manual control"},
	317003: {Verdict: VerdictUserAction, Message: "return to home triggered by operator"},

	// Device-side rejections.
	319001: {Verdict: VerdictTerminal, Kind: TerminalRejected, Message: "another task is already running"},
	319002: {Verdict: VerdictTerminal, Kind: TerminalRejected, Message: "cloud does not hold control authority"},
	319003: {Verdict: VerdictTerminal, Kind: TerminalRejected, Message: "drone not docked or not ready"},
	319004: {Verdict: VerdictTerminal, Kind: TerminalRejected, Message: "wayline cannot be interrupted in current phase"},
	319005: {Verdict: VerdictTerminal, Kind: TerminalRejected, Message: "wayline not started, nothing to interrupt"},

	// Breakpoint validation.
	320001: {Verdict: VerdictTerminal, Kind: TerminalRejected, Message: "breakpoint index out of range"},
	320002: {Verdict: VerdictTerminal, Kind: TerminalRejected, Message: "breakpoint progress inconsistent"},
	320003: {Verdict: VerdictTerminal, Kind: TerminalRejected, Message: "breakpoint state does not match wayline"},
	320004: {Verdict: VerdictTerminal, Kind: TerminalRejected, Message: "breakpoint expired, mission changed since capture"},

	// Schedule / time window.
	321001: {Verdict: VerdictTerminal, Kind: TerminalTimeout, Message: "execution window closed before task could run"},
	321002: {Verdict: VerdictRetryable, Message: "execution window not yet open"},
}

// classTable is the fully materialized code -> classification table,
// built once so totality is a property of construction, not of
// branching logic.
var classTable = buildClassTable()

func buildClassTable() map[int]Classification {
	table := make(map[int]Classification, len(classEntries)+2048)

	for _, r := range classRanges {
		for code := r.lo; code <= r.hi; code++ {
			table[code] = Classification{
				Code:    code,
				Verdict: r.verdict,
				Kind:    r.kind,
				Message: r.message,
			}
		}
	}

	for code, c := range classEntries {
		c.Code = code
		table[code] = c
	}

	return table
}

// Classify maps a wire error code to its bucket and human message.
// It is total: unknown codes classify to Terminal(Unknown) and are
// surfaced to the user, never silently retried.
func Classify(code int) Classification {
	if c, ok := classTable[code]; ok {
		return c
	}
	return Classification{
		Code:    code,
		Verdict: VerdictTerminal,
		Kind:    TerminalUnknown,
		Message: fmt.Sprintf("unknown device error code %d", code),
	}
}

// KnownCodes returns every code in the taxonomy. Used by tests to
// verify totality and by tooling that renders code references.
func KnownCodes() []int {
	codes := make([]int, 0, len(classTable))
	for code := range classTable {
		codes = append(codes, code)
	}
	return codes
}
