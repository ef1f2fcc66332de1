// Package vitals simulates a PPG sensor. A Sensor holds the active patient
// profile and produces one synthetic vitals Record per Read, including a
// single sample of the photoplethysmography waveform.
package vitals
