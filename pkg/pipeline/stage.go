package pipeline

// Stage names the steps of the per-meter state machine. A meter moves
// forward through the raw path, optionally through the cost branch, and
// commits its bookmark last; FAILED is reachable from any stage before
// COMMIT_STATE and leaves the bookmark untouched.
type Stage string

const (
	StagePlanned         Stage = "PLANNED"
	StageFetching        Stage = "FETCHING"
	StageValidating      Stage = "VALIDATING"
	StageWritingRaw      Stage = "WRITING_RAW"
	StageResolvingTariff Stage = "RESOLVING_TARIFF"
	StageJoiningRates    Stage = "JOINING_RATES"
	StageWritingCost     Stage = "WRITING_COST"
	StageCommitState     Stage = "COMMIT_STATE"
	StageDone            Stage = "DONE"
)
