package vitals

// Record is a single simulated reading.
type Record struct {
	HR          float64 `json:"HR"`
	SpO2        float64 `json:"SpO2"`
	PI          float64 `json:"PI"`
	RR          float64 `json:"RR"`
	TauUS       float64 `json:"tau_us"`
	SignalTrust float64 `json:"SignalTrust"`
	PPGPoint    float64 `json:"ppg_point"`
}
