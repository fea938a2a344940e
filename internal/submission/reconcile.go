package submission

// Outcome is the action a reconciliation demands on local state.
type Outcome int

const (
	// OutcomeUnchanged means local belief already matches the server.
	OutcomeUnchanged Outcome = iota

	// OutcomeClearLocal means local claims a submission the server has no
	// record of; local state must be cleared and the player prompted to
	// resubmit.
	OutcomeClearLocal

	// OutcomeAdoptRemote means the server recorded a submission local state
	// missed; adopt it silently.
	OutcomeAdoptRemote
)

// Reconcile merges the local submitted flag against the server's authoritative
// record for the same question. The server always wins.
func Reconcile(local, remote bool) Outcome {
	switch {
	case local && !remote:
		return OutcomeClearLocal
	case !local && remote:
		return OutcomeAdoptRemote
	default:
		return OutcomeUnchanged
	}
}
