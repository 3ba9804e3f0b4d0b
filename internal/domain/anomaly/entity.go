package anomaly

type DeviationType string

const (
	DeviationLateArrival       DeviationType = "late_arrival"
	DeviationEarlyDeparture    DeviationType = "early_departure"
	DeviationOvertime          DeviationType = "overtime"
	DeviationUnplannedAbsence  DeviationType = "unplanned_absence"
	DeviationUnplannedPresence DeviationType = "unplanned_presence"
	DeviationOutOfWindow       DeviationType = "out_of_window"

	// DeviationEarlyArrival is informational only and never counted as an anomaly.
	DeviationEarlyArrival DeviationType = "early_arrival"
)

// DeviationTypes lists the penalizing deviation types, in report order.
var DeviationTypes = []DeviationType{
	DeviationUnplannedAbsence,
	DeviationLateArrival,
	DeviationEarlyDeparture,
	DeviationOvertime,
	DeviationUnplannedPresence,
	DeviationOutOfWindow,
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityInfo     Severity = "info"
)

// Rank orders severities, most severe first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// Slot is the time-of-day category of a shift (the "créneau").
type Slot string

const (
	SlotNone       Slot = ""
	SlotMidday     Slot = "midday"
	SlotEvening    Slot = "evening"
	SlotSplitShift Slot = "split_shift"
	SlotContinuous Slot = "continuous"
)

type Urgency string

const (
	UrgencyOngoing   Urgency = "ongoing"
	UrgencyUrgent    Urgency = "urgent"
	UrgencySoon      Urgency = "soon"
	UrgencyScheduled Urgency = "scheduled"
)

type ReplacementReason string

const (
	ReplacementUnassigned ReplacementReason = "unassigned"
	ReplacementFlagged    ReplacementReason = "flagged"
)
