package contracts

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTargetSpec() TargetSpec {
	return TargetSpec{
		Data: map[string][]float64{
			"infections": {10, 25, 60, 110},
			"deaths":     {0, 1, 3, 8},
		},
		LossFunction: "weighted_mse",
		Weights:      map[string]float64{"infections": 1.0, "deaths": 5.0},
	}
}

func TestNewTargetSpec(t *testing.T) {
	spec, err := NewTargetSpec(validTargetSpec())
	require.NoError(t, err)
	assert.Len(t, spec.Data, 2)
	assert.Equal(t, "weighted_mse", spec.LossFunction)
}

func TestNewTargetSpecWeightsOptional(t *testing.T) {
	in := validTargetSpec()
	in.Weights = nil
	_, err := NewTargetSpec(in)
	assert.NoError(t, err)
}

func TestNewTargetSpecRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TargetSpec)
	}{
		{"no data", func(s *TargetSpec) { s.Data = nil }},
		{"empty loss function", func(s *TargetSpec) { s.LossFunction = "" }},
		{"weight for unknown series", func(s *TargetSpec) {
			s.Weights = map[string]float64{"hospitalizations": 2.0}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validTargetSpec()
			tt.mutate(&spec)
			_, err := NewTargetSpec(spec)
			require.Error(t, err)
			assert.True(t, IsStructuralError(err))
		})
	}
}

func validCalibrationJob() CalibrationJob {
	return CalibrationJob{
		JobID:         "calib-3",
		BundleRef:     "sha256:" + testBundleDigest,
		Algorithm:     "cma-es",
		Target:        validTargetSpec(),
		MaxIterations: 200,
		ConvergenceCriteria: map[string]float64{
			"loss_delta": 1e-6,
		},
		AlgorithmConfig: Params{"population_size": Int(32)},
	}
}

func TestNewCalibrationJob(t *testing.T) {
	job, err := NewCalibrationJob(validCalibrationJob())
	require.NoError(t, err)

	assert.Equal(t, "calib-3", job.JobID)
	assert.Equal(t, "cma-es", job.Algorithm)
	assert.Equal(t, 200, job.MaxIterations)
}

func TestNewCalibrationJobClonesConfig(t *testing.T) {
	in := validCalibrationJob()
	job, err := NewCalibrationJob(in)
	require.NoError(t, err)

	in.AlgorithmConfig["population_size"] = Int(64)
	assert.Equal(t, Int(32), job.AlgorithmConfig["population_size"])
}

func TestNewCalibrationJobRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CalibrationJob)
		check  func(error) bool
	}{
		{"empty job_id", func(j *CalibrationJob) { j.JobID = "" }, IsStructuralError},
		{"bad bundle ref", func(j *CalibrationJob) { j.BundleRef = "nope" }, IsStructuralError},
		{"empty algorithm", func(j *CalibrationJob) { j.Algorithm = "" }, IsStructuralError},
		{"zero max iterations", func(j *CalibrationJob) { j.MaxIterations = 0 }, IsRangeError},
		{"negative max iterations", func(j *CalibrationJob) { j.MaxIterations = -5 }, IsRangeError},
		{"invalid target", func(j *CalibrationJob) { j.Target.Data = nil }, IsStructuralError},
		{"non-encodable config", func(j *CalibrationJob) {
			j.AlgorithmConfig = Params{"sigma": Float(math.Inf(1))}
		}, IsStructuralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := validCalibrationJob()
			tt.mutate(&job)
			_, err := NewCalibrationJob(job)
			require.Error(t, err)
			assert.True(t, tt.check(err))
		})
	}
}

func TestCalibrationJobBlobKey(t *testing.T) {
	job, err := NewCalibrationJob(validCalibrationJob())
	require.NoError(t, err)
	assert.Equal(t, "jobs/calibration/calib-3.json", job.BlobKey())
}
