package scenario

// scenarioState carries mutable bookkeeping across the steps of one run.
type scenarioState struct {
	// sessions maps script aliases (the `as` argument) to session ids.
	sessions map[string]uint64
	// lastSessionID is the most recently started session, used when a
	// complete or abandon step omits an explicit session reference.
	lastSessionID uint64
	checkpoints   []string
}
