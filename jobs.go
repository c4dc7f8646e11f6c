package contracts

import "fmt"

// TargetSpec names the observed data a calibration study fits against and
// how misfit is scored.
type TargetSpec struct {
	Data         map[string][]float64 `json:"data"`
	LossFunction string               `json:"loss_function"`
	Weights      map[string]float64   `json:"weights,omitempty"`
	Metadata     map[string]string    `json:"metadata,omitempty"`
}

// NewTargetSpec validates and builds a TargetSpec. Weights, when present,
// must reference declared data series.
func NewTargetSpec(spec TargetSpec) (TargetSpec, error) {
	if len(spec.Data) == 0 {
		return TargetSpec{}, NewStructuralError("data", "target must declare at least one data series")
	}
	if spec.LossFunction == "" {
		return TargetSpec{}, NewStructuralError("loss_function", "loss_function must be non-empty")
	}
	for name := range spec.Weights {
		if _, ok := spec.Data[name]; !ok {
			return TargetSpec{}, NewStructuralError("weights",
				fmt.Sprintf("weight references unknown data series %q", name))
		}
	}
	return spec, nil
}

// CalibrationJob describes one calibration study: which bundle to
// calibrate, with which algorithm, against which targets, under which
// budget.
type CalibrationJob struct {
	JobID               string             `json:"job_id"`
	BundleRef           string             `json:"bundle_ref"`
	Algorithm           string             `json:"algorithm"`
	Target              TargetSpec         `json:"target"`
	MaxIterations       int                `json:"max_iterations"`
	ConvergenceCriteria map[string]float64 `json:"convergence_criteria,omitempty"`
	AlgorithmConfig     Params             `json:"algorithm_config,omitempty"`
}

// NewCalibrationJob validates and builds a CalibrationJob.
func NewCalibrationJob(job CalibrationJob) (CalibrationJob, error) {
	if job.JobID == "" {
		return CalibrationJob{}, NewStructuralError("job_id", "job_id must be non-empty")
	}
	if err := ValidateBundleRef(job.BundleRef); err != nil {
		return CalibrationJob{}, err
	}
	if job.Algorithm == "" {
		return CalibrationJob{}, NewStructuralError("algorithm", "algorithm must be non-empty")
	}
	if job.MaxIterations < 1 {
		return CalibrationJob{}, NewRangeError("max_iterations",
			fmt.Sprintf("max_iterations must be at least 1, got %d", job.MaxIterations))
	}
	target, err := NewTargetSpec(job.Target)
	if err != nil {
		return CalibrationJob{}, err
	}
	job.Target = target
	if job.AlgorithmConfig != nil {
		if _, err := EncodeParams(job.AlgorithmConfig); err != nil {
			return CalibrationJob{}, err
		}
		job.AlgorithmConfig = job.AlgorithmConfig.Clone()
	}
	return job, nil
}

// BlobKey returns the storage key a serialized job lives under.
func (j CalibrationJob) BlobKey() string {
	return fmt.Sprintf("jobs/calibration/%s.json", j.JobID)
}
