package model

// RankedCandidate is one PID's score across all components of the ranker
// pipeline, and the raw features those scores were computed from.
type RankedCandidate struct {
	PID     int32  `json:"pid"`
	Name    string `json:"name"`
	Cmdline string `json:"cmdline"`

	CPUPct float64 `json:"cpu_pct"`
	RAMPct float64 `json:"ram_pct"`

	EventRate  int `json:"event_rate"`
	ThreadRate int `json:"thread_rate"`
	CPUSamples int `json:"cpu_samples"`
	PageFaults int `json:"page_faults"`
	GCEvents   int `json:"gc_events"`

	NetBytes  float64 `json:"net_bytes"`
	DiskBytes float64 `json:"disk_bytes"`

	ZAnomaly          float64 `json:"z_anomaly"`
	Mahalanobis       float64 `json:"mahalanobis"`
	AnomalyScore      float64 `json:"anomaly_score"`
	EnergyScore       float64 `json:"energy_score"`
	CosineCorrelation float64 `json:"cosine_correlation"`
	LeadLagScore      float64 `json:"lead_lag_score"`
	CorrelationScore  float64 `json:"correlation_score"`
	FinalScore        float64 `json:"final_score"`
}
