package contracts

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBundleDigest is a fixed 64-hex digest for task fixtures.
var testBundleDigest = strings.Repeat("ab", 32)

func validTask(t *testing.T) SimTask {
	t.Helper()
	task, err := TaskFromComponents(
		"covid.models.SEIR", "baseline",
		"sha256:"+testBundleDigest,
		Params{"R0": Float(2.5)},
		42,
		[]string{"infections"},
	)
	require.NoError(t, err)
	return task
}

func TestValidateBundleRef(t *testing.T) {
	tests := []struct {
		name  string
		ref   string
		valid bool
	}{
		{"sha256", "sha256:" + testBundleDigest, true},
		{"local", "local://abababababab", true},
		{"empty", "", false},
		{"bare digest", testBundleDigest, false},
		{"uppercase digest", "sha256:" + strings.Repeat("AB", 32), false},
		{"short sha256", "sha256:" + strings.Repeat("ab", 31), false},
		{"short local", "local://ababab", false},
		{"long local", "local://ababababababab", false},
		{"unknown scheme", "oci://" + testBundleDigest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBundleRef(tt.ref)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, IsStructuralError(err))
			}
		})
	}
}

func TestTaskFromComponents(t *testing.T) {
	// Assembling a task from raw components must produce a fully-validated
	// task whose entrypoint is the canonical digest-free form.
	task, err := TaskFromComponents(
		"covid.models.SEIR", "baseline",
		"sha256:"+testBundleDigest,
		Params{"R0": Float(2.5)},
		42,
		[]string{"infections"},
	)
	require.NoError(t, err)

	assert.Equal(t, "covid.models.SEIR/baseline", task.Entrypoint().String())
	assert.False(t, task.Entrypoint().HasDigest())
	assert.Equal(t, "sha256:"+testBundleDigest, task.BundleRef())
	assert.Equal(t, uint64(42), task.Seed())
	assert.Equal(t, []string{"infections"}, task.Outputs())
	assert.Equal(t, MustParamID(Params{"R0": Float(2.5)}), task.ParamID())
	assert.Len(t, task.TaskID(), DigestHexLen)
	assert.Len(t, task.SimRoot(), DigestHexLen)
}

func TestTaskFromComponentsRejectsBadParts(t *testing.T) {
	_, err := TaskFromComponents("no-dots", "baseline", "sha256:"+testBundleDigest, nil, 1, nil)
	require.Error(t, err)
	assert.True(t, IsStructuralError(err))

	_, err = TaskFromComponents("covid.models.SEIR", "Bad Scenario", "sha256:"+testBundleDigest, nil, 1, nil)
	require.Error(t, err)
	assert.True(t, IsStructuralError(err))
}

func TestNewSimTaskValidation(t *testing.T) {
	ps, err := NewParameterSet(Params{"R0": Float(2.5)})
	require.NoError(t, err)

	t.Run("bad entrypoint", func(t *testing.T) {
		_, err := NewSimTask("garbage", "sha256:"+testBundleDigest, ps, 1, nil)
		require.Error(t, err)
		assert.True(t, IsStructuralError(err))
	})

	t.Run("bad bundle ref", func(t *testing.T) {
		_, err := NewSimTask("covid.models.SEIR/baseline", "nonsense", ps, 1, nil)
		require.Error(t, err)
		assert.True(t, IsStructuralError(err))
	})

	t.Run("zero parameter set", func(t *testing.T) {
		var zero ParameterSet
		_, err := NewSimTask("covid.models.SEIR/baseline", "sha256:"+testBundleDigest, zero, 1, nil)
		require.Error(t, err)
		assert.True(t, IsStructuralError(err))
	})

	t.Run("empty output name", func(t *testing.T) {
		_, err := NewSimTask("covid.models.SEIR/baseline", "sha256:"+testBundleDigest, ps, 1, []string{"infections", ""})
		require.Error(t, err)
		assert.True(t, IsStructuralError(err))
	})
}

func TestNewSimTaskDigestConsistency(t *testing.T) {
	ps, err := NewParameterSet(Params{"R0": Float(2.5)})
	require.NoError(t, err)

	t.Run("mismatched fragment is a provenance error", func(t *testing.T) {
		// The entrypoint claims bundle deadbeefcafe but the reference names a
		// different digest. This is a provenance failure, not a format one:
		// both values are well-formed, they just disagree.
		otherDigest := "1234567890ab" + strings.Repeat("cd", 26)
		require.Len(t, otherDigest, 64)

		_, err := NewSimTask(
			"covid.models.SEIR/baseline@deadbeefcafe",
			"sha256:"+otherDigest,
			ps, 1, nil,
		)
		require.Error(t, err)
		assert.True(t, IsProvenanceError(err), "expected provenance error, got: %v", err)
		assert.False(t, IsStructuralError(err))
	})

	t.Run("matching prefix passes", func(t *testing.T) {
		_, err := NewSimTask(
			"covid.models.SEIR/baseline@abababababab",
			"sha256:"+testBundleDigest,
			ps, 1, nil,
		)
		assert.NoError(t, err)
	})

	t.Run("fragment comparison is case-insensitive", func(t *testing.T) {
		_, err := NewSimTask(
			"covid.models.SEIR/baseline@ABABABABABAB",
			"sha256:"+testBundleDigest,
			ps, 1, nil,
		)
		assert.NoError(t, err)
	})

	t.Run("longer fragment still a prefix", func(t *testing.T) {
		_, err := NewSimTask(
			"covid.models.SEIR/baseline@abababababababab",
			"sha256:"+testBundleDigest,
			ps, 1, nil,
		)
		assert.NoError(t, err)
	})

	t.Run("local bundle exact match", func(t *testing.T) {
		_, err := NewSimTask(
			"covid.models.SEIR/baseline@abababababab",
			"local://abababababab",
			ps, 1, nil,
		)
		assert.NoError(t, err)
	})

	t.Run("local bundle mismatch", func(t *testing.T) {
		_, err := NewSimTask(
			"covid.models.SEIR/baseline@deadbeefcafe",
			"local://abababababab",
			ps, 1, nil,
		)
		require.Error(t, err)
		assert.True(t, IsProvenanceError(err))
	})

	t.Run("digest-free entrypoint never cross-checked", func(t *testing.T) {
		_, err := NewSimTask(
			"covid.models.SEIR/baseline",
			"sha256:"+testBundleDigest,
			ps, 1, nil,
		)
		assert.NoError(t, err)
	})
}

func TestSimTaskOutputsSorted(t *testing.T) {
	task, err := TaskFromComponents(
		"covid.models.SEIR", "baseline",
		"sha256:"+testBundleDigest,
		Params{"R0": Float(2.5)},
		42,
		[]string{"prevalence", "infections"},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"infections", "prevalence"}, task.Outputs())
}

func TestSimTaskAccessorsCopy(t *testing.T) {
	task := validTask(t)

	outs := task.Outputs()
	outs[0] = "tampered"
	assert.Equal(t, []string{"infections"}, task.Outputs())

	task2, err := task.WithConfig(Params{"timestep": Float(0.5)})
	require.NoError(t, err)
	cfg := task2.Config()
	cfg["timestep"] = Float(99)
	assert.Equal(t, Float(0.5), task2.Config()["timestep"])

	task3, err := task.WithEnv(map[string]string{"OMP_NUM_THREADS": "4"})
	require.NoError(t, err)
	env := task3.Env()
	env["OMP_NUM_THREADS"] = "tampered"
	assert.Equal(t, "4", task3.Env()["OMP_NUM_THREADS"])
}

func TestSimTaskWithConfigChangesSimRoot(t *testing.T) {
	task := validTask(t)

	withCfg, err := task.WithConfig(Params{"timestep": Float(0.5)})
	require.NoError(t, err)

	assert.NotEqual(t, task.SimRoot(), withCfg.SimRoot(), "config participates in SimRoot")
	assert.NotEqual(t, task.TaskID(), withCfg.TaskID())
}

func TestSimTaskWithEnvChangesSimRoot(t *testing.T) {
	task := validTask(t)

	withEnv, err := task.WithEnv(map[string]string{"OMP_NUM_THREADS": "4"})
	require.NoError(t, err)

	assert.NotEqual(t, task.SimRoot(), withEnv.SimRoot(), "env participates in SimRoot")
}

func TestSimTaskWithConfigRejectsNonEncodable(t *testing.T) {
	task := validTask(t)

	_, err := task.WithConfig(Params{"bad": Float(math.Inf(1))})
	require.Error(t, err)
	assert.True(t, IsStructuralError(err))
}

func TestSimTaskWithEnvRejectsEmptyKey(t *testing.T) {
	task := validTask(t)

	_, err := task.WithEnv(map[string]string{"": "x"})
	require.Error(t, err)
	assert.True(t, IsStructuralError(err))
}

func TestSimTaskEqualIgnoresLegacyDigest(t *testing.T) {
	ps, err := NewParameterSet(Params{"R0": Float(2.5)})
	require.NoError(t, err)

	plain, err := NewSimTask("covid.models.SEIR/baseline", "sha256:"+testBundleDigest, ps, 42, []string{"infections"})
	require.NoError(t, err)
	tagged, err := NewSimTask("covid.models.SEIR/baseline@abababababab", "sha256:"+testBundleDigest, ps, 42, []string{"infections"})
	require.NoError(t, err)

	// The fragment is a transport hint: identity, provenance, and equality
	// are all computed from the canonical form.
	assert.Equal(t, plain.TaskID(), tagged.TaskID())
	assert.Equal(t, plain.SimRoot(), tagged.SimRoot())
	assert.True(t, plain.Equal(tagged))
	assert.NotEqual(t, plain.Entrypoint().String(), tagged.Entrypoint().String())
}

func TestSimTaskIdentitySensitivity(t *testing.T) {
	base := validTask(t)

	seedChanged, err := TaskFromComponents("covid.models.SEIR", "baseline",
		"sha256:"+testBundleDigest, Params{"R0": Float(2.5)}, 43, []string{"infections"})
	require.NoError(t, err)
	assert.NotEqual(t, base.TaskID(), seedChanged.TaskID(), "seed contributes to identity")

	paramChanged, err := TaskFromComponents("covid.models.SEIR", "baseline",
		"sha256:"+testBundleDigest, Params{"R0": Float(2.6)}, 42, []string{"infections"})
	require.NoError(t, err)
	assert.NotEqual(t, base.TaskID(), paramChanged.TaskID(), "params contribute to identity")

	outputsChanged, err := TaskFromComponents("covid.models.SEIR", "baseline",
		"sha256:"+testBundleDigest, Params{"R0": Float(2.5)}, 42, nil)
	require.NoError(t, err)
	assert.NotEqual(t, base.TaskID(), outputsChanged.TaskID(), "requested outputs contribute to identity")
	assert.Equal(t, base.SimRoot(), outputsChanged.SimRoot(), "requested outputs never touch provenance")

	scenarioChanged, err := TaskFromComponents("covid.models.SEIR", "lockdown",
		"sha256:"+testBundleDigest, Params{"R0": Float(2.5)}, 42, []string{"infections"})
	require.NoError(t, err)
	assert.NotEqual(t, base.TaskID(), scenarioChanged.TaskID(), "scenario contributes to identity")
}

func TestSimTaskWireGolden(t *testing.T) {
	task, err := TaskFromComponents(
		"covid.models.SEIR", "baseline",
		"sha256:"+testBundleDigest,
		Params{"R0": Float(2.5), "city": String("boston")},
		42,
		[]string{"infections"},
	)
	require.NoError(t, err)

	data, err := json.Marshal(task)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "sim_task_wire", data)
}

func TestSimTaskJSONRoundTrip(t *testing.T) {
	task := validTask(t)
	task, err := task.WithConfig(Params{"timestep": Float(0.5)})
	require.NoError(t, err)
	task, err = task.WithEnv(map[string]string{"OMP_NUM_THREADS": "4"})
	require.NoError(t, err)

	data, err := json.Marshal(task)
	require.NoError(t, err)

	var decoded SimTask
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, task.TaskID(), decoded.TaskID())
	assert.Equal(t, task.SimRoot(), decoded.SimRoot())
	assert.Equal(t, task.Seed(), decoded.Seed())
	assert.Equal(t, task.Config(), decoded.Config())
	assert.Equal(t, task.Env(), decoded.Env())
}

func TestSimTaskJSONRoundTripMaxSeed(t *testing.T) {
	task, err := TaskFromComponents(
		"covid.models.SEIR", "baseline",
		"sha256:"+testBundleDigest,
		Params{"R0": Float(2.5)},
		18446744073709551615,
		nil,
	)
	require.NoError(t, err)

	data, err := json.Marshal(task)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"seed":18446744073709551615`)

	var decoded SimTask
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, uint64(18446744073709551615), decoded.Seed())
}

func TestSimTaskUnmarshalSeedRangeFirst(t *testing.T) {
	// The seed is checked before the bundle reference: a document broken in
	// both ways reports the seed range error.
	doc := `{
		"entrypoint": "covid.models.SEIR/baseline",
		"bundle_ref": "garbage",
		"params": {"R0": 2.5},
		"seed": -1
	}`

	var task SimTask
	err := json.Unmarshal([]byte(doc), &task)
	require.Error(t, err)
	assert.True(t, IsRangeError(err), "expected range error, got: %v", err)
}

func TestSimTaskUnmarshalSeedOverflow(t *testing.T) {
	doc := `{
		"entrypoint": "covid.models.SEIR/baseline",
		"bundle_ref": "sha256:` + testBundleDigest + `",
		"params": {"R0": 2.5},
		"seed": 18446744073709551616
	}`

	var task SimTask
	err := json.Unmarshal([]byte(doc), &task)
	require.Error(t, err)
	assert.True(t, IsRangeError(err))
}

func TestSimTaskUnmarshalBundleMismatch(t *testing.T) {
	doc := `{
		"entrypoint": "covid.models.SEIR/baseline@deadbeefcafe",
		"bundle_ref": "sha256:` + testBundleDigest + `",
		"params": {"R0": 2.5},
		"seed": 1
	}`

	var task SimTask
	err := json.Unmarshal([]byte(doc), &task)
	require.Error(t, err)
	assert.True(t, IsProvenanceError(err))
}
