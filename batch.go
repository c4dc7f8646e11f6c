package contracts

import (
	"fmt"
	"sort"
)

// SimBatch groups tasks that were sampled together (one sweep, one
// ask-round). Batch identity for caching purposes is the set of task
// identifiers alone: re-labeling a batch or renaming the sampling method
// never invalidates cached results.
type SimBatch struct {
	batchID        string
	tasks          []SimTask
	samplingMethod string
	metadata       map[string]string
}

// NewSimBatch validates and builds a SimBatch.
func NewSimBatch(batchID string, tasks []SimTask, samplingMethod string, metadata map[string]string) (SimBatch, error) {
	if batchID == "" {
		return SimBatch{}, NewStructuralError("batch_id", "batch_id must be non-empty")
	}
	if samplingMethod == "" {
		return SimBatch{}, NewStructuralError("sampling_method", "sampling_method must be non-empty")
	}
	if len(tasks) == 0 {
		return SimBatch{}, NewStructuralError("tasks", "batch must contain at least one task")
	}

	frozen := make([]SimTask, len(tasks))
	copy(frozen, tasks)
	var meta map[string]string
	if metadata != nil {
		meta = make(map[string]string, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
	}
	return SimBatch{
		batchID:        batchID,
		tasks:          frozen,
		samplingMethod: samplingMethod,
		metadata:       meta,
	}, nil
}

// BatchID returns the batch label.
func (b SimBatch) BatchID() string { return b.batchID }

// SamplingMethod returns how the batch's tasks were sampled (grid, sobol,
// ask round, ...).
func (b SimBatch) SamplingMethod() string { return b.samplingMethod }

// Tasks returns a copy of the batch's tasks in submission order.
func (b SimBatch) Tasks() []SimTask {
	out := make([]SimTask, len(b.tasks))
	copy(out, b.tasks)
	return out
}

// Metadata returns a copy of the free-form batch metadata.
func (b SimBatch) Metadata() map[string]string {
	if b.metadata == nil {
		return nil
	}
	out := make(map[string]string, len(b.metadata))
	for k, v := range b.metadata {
		out[k] = v
	}
	return out
}

// TaskCount returns the number of tasks in the batch.
func (b SimBatch) TaskCount() int { return len(b.tasks) }

// BatchHash returns the content hash of the batch's task identity.
// Deterministic, order-insensitive, and independent of the batch label,
// sampling method, and metadata: two batches with the same tasks hash
// identically.
func (b SimBatch) BatchHash() string {
	ids := make([]string, len(b.tasks))
	for i, t := range b.tasks {
		ids[i] = t.TaskID()
	}
	sort.Strings(ids)
	canonical, err := marshalCanonicalJSON(map[string]any{"tasks": ids})
	if err != nil {
		panic(err)
	}
	return hashWithDomain(DomainBatch, canonical)
}

// SimJob is a prioritized collection of batches against one bundle,
// submitted as a unit to the infrastructure side.
type SimJob struct {
	jobID                string
	bundleRef            string
	batches              []SimBatch
	priority             int
	resourceRequirements map[string]string
}

// Job priorities are clamped to a sane band; anything outside it is a
// caller bug, not a scheduling hint.
const (
	MinJobPriority = -1000
	MaxJobPriority = 1000
)

// NewSimJob validates and builds a SimJob. Every task in every batch must
// reference the job's bundle: a job is one bundle's worth of work.
func NewSimJob(jobID, bundleRef string, batches []SimBatch, priority int, resourceRequirements map[string]string) (SimJob, error) {
	if jobID == "" {
		return SimJob{}, NewStructuralError("job_id", "job_id must be non-empty")
	}
	if err := ValidateBundleRef(bundleRef); err != nil {
		return SimJob{}, err
	}
	if len(batches) == 0 {
		return SimJob{}, NewStructuralError("batches", "job must contain at least one batch")
	}
	if priority < MinJobPriority || priority > MaxJobPriority {
		return SimJob{}, NewRangeError("priority",
			fmt.Sprintf("priority %d out of reasonable range [%d, %d]", priority, MinJobPriority, MaxJobPriority))
	}
	for _, batch := range batches {
		for _, task := range batch.tasks {
			if task.BundleRef() != bundleRef {
				return SimJob{}, NewProvenanceError(
					fmt.Sprintf("batch %q contains a task for bundle %q, job is for %q",
						batch.batchID, task.BundleRef(), bundleRef),
					"", bundleRef)
			}
		}
	}

	frozen := make([]SimBatch, len(batches))
	copy(frozen, batches)
	var reqs map[string]string
	if resourceRequirements != nil {
		reqs = make(map[string]string, len(resourceRequirements))
		for k, v := range resourceRequirements {
			reqs[k] = v
		}
	}
	return SimJob{
		jobID:                jobID,
		bundleRef:            bundleRef,
		batches:              frozen,
		priority:             priority,
		resourceRequirements: reqs,
	}, nil
}

// JobID returns the job label.
func (j SimJob) JobID() string { return j.jobID }

// BundleRef returns the bundle every batch in the job runs against.
func (j SimJob) BundleRef() string { return j.bundleRef }

// Priority returns the scheduling priority.
func (j SimJob) Priority() int { return j.priority }

// Batches returns a copy of the job's batches in submission order.
func (j SimJob) Batches() []SimBatch {
	out := make([]SimBatch, len(j.batches))
	copy(out, j.batches)
	return out
}

// ResourceRequirements returns a copy of the scheduling hints.
func (j SimJob) ResourceRequirements() map[string]string {
	if j.resourceRequirements == nil {
		return nil
	}
	out := make(map[string]string, len(j.resourceRequirements))
	for k, v := range j.resourceRequirements {
		out[k] = v
	}
	return out
}

// TotalTaskCount returns the number of tasks across all batches.
func (j SimJob) TotalTaskCount() int {
	n := 0
	for _, b := range j.batches {
		n += len(b.tasks)
	}
	return n
}

// AllTasks returns every task across all batches, batch order preserved.
func (j SimJob) AllTasks() []SimTask {
	out := make([]SimTask, 0, j.TotalTaskCount())
	for _, b := range j.batches {
		out = append(out, b.tasks...)
	}
	return out
}

// JobHash returns the content hash of the job's work: the bundle plus the
// sorted batch hashes. Labels, priority, and resource hints do not
// contribute.
func (j SimJob) JobHash() string {
	hashes := make([]string, len(j.batches))
	for i, b := range j.batches {
		hashes[i] = b.BatchHash()
	}
	sort.Strings(hashes)
	canonical, err := marshalCanonicalJSON(map[string]any{
		"bundle_ref": j.bundleRef,
		"batches":    hashes,
	})
	if err != nil {
		panic(err)
	}
	return hashWithDomain(DomainJob, canonical)
}

// BlobKey returns the storage key a serialized job lives under.
func (j SimJob) BlobKey() string {
	return fmt.Sprintf("jobs/simulation/%s.json", j.jobID)
}
