package pipeline

// State is the processing state of one item. Items move forward only;
// terminal states are persisted, the two skip states, and failed.
type State string

const (
	StateQueued                  State = "queued"
	StateMetadataFetched         State = "metadata_fetched"
	StateTranscriptResolved      State = "transcript_resolved"
	StateClassified              State = "classified"
	StatePrompted                State = "prompted"
	StateDistilled               State = "distilled"
	StateValidated               State = "validated"
	StatePersisted               State = "persisted"
	StateSkippedNoTranscript     State = "skipped_no_transcript"
	StateSkippedAlreadyProcessed State = "skipped_already_processed"
	StateFailed                  State = "failed"
)

// Terminal reports whether a state ends processing for the item.
func (s State) Terminal() bool {
	switch s {
	case StatePersisted, StateSkippedNoTranscript, StateSkippedAlreadyProcessed, StateFailed:
		return true
	}
	return false
}

// Succeeded reports whether the item produced a persisted summary.
func (s State) Succeeded() bool {
	return s == StatePersisted
}

// Stage names the pipeline stage a failure is attributed to in the
// failure ledger.
type Stage string

const (
	StageExtract    Stage = "extract"
	StageTranscript Stage = "transcript"
	StageDistill    Stage = "distill"
	StageValidate   Stage = "validate"
	StagePersist    Stage = "persist"
)

// Skip reasons recorded on batch results.
const (
	SkipReasonNoTranscript     = "no_transcript"
	SkipReasonAlreadyProcessed = "already_processed"
	SkipReasonBudget           = "budget_exhausted"
	SkipReasonCanceled         = "canceled"
)
