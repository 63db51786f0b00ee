package model

// SpikeType classifies a confirmed spike by which threshold(s) it crossed.
type SpikeType string

const (
	SpikeCPU     SpikeType = "cpu"
	SpikeRAM     SpikeType = "ram"
	SpikeMixed   SpikeType = "mixed"
	SpikeUnknown SpikeType = "unknown"
)

// SpikeRecord is a confirmed resource-usage spike plus the forensic evidence
// attached to it after the fact. It is created by the state store on
// confirmation, mutated exactly twice (event attachment, RCA attachment),
// then immutable.
type SpikeRecord struct {
	ID         int64  `json:"id"`
	DetectedAt string `json:"detected_at"`
	StartTime  string `json:"start_time"`
	ConfirmTime string `json:"confirm_time"`

	CPUAtConfirm float64 `json:"cpu_at_confirm"`
	RAMAtConfirm float64 `json:"ram_at_confirm"`

	Reason        string    `json:"reason"`
	SpikeType     SpikeType `json:"spike_type"`
	SeverityScore float64   `json:"severity_score"`

	AttachedEventCount int     `json:"attached_event_count"`
	ETWEvents          []Event `json:"etw_events,omitempty"`

	RCA *RCA `json:"rca,omitempty"`
}

// SpikeInfo is the information the detector hands to the state store on
// confirmation — everything add_spike needs to build a SpikeRecord.
type SpikeInfo struct {
	StartTime     string
	ConfirmTime   string
	SpikeType     SpikeType
	SeverityScore float64
	CPUAtConfirm  float64
	RAMAtConfirm  float64
}
