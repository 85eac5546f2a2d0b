package models

// ThresholdGroup is a named partition of instruments, e.g. instruments whose
// average traded value exceeds a cutoff. Groups scope cache directories and
// run statistics only; they carry no computational semantics.
type ThresholdGroup struct {
	Name string `yaml:"name"`
	// CutoffValue is the average-traded-value cutoff that defines membership,
	// in the source currency. Informational only.
	CutoffValue float64 `yaml:"cutoff_value"`
	Instruments []string `yaml:"instruments"`
}
