package model

// ReadJobAdded walks from n to the root, incrementing every ancestor
// Dir's pendingReadJobs counter by one. Called when a ReadJob for n is
// enqueued, so the invariant "pendingReadJobs = Σ over subtree of
// isBusy()" is maintained without a full recursive recount.
func (n *Node) ReadJobAdded() {
	for d := n; d != nil; d = d.Parent {
		if d.Dir == nil {
			continue
		}
		d.Dir.PendingReadJobs++
	}
}

// ReadJobFinished is the inverse of ReadJobAdded: walks to the root
// decrementing pendingReadJobs. Called once a job has finished (whether
// it succeeded, errored, or was aborted).
func (n *Node) ReadJobFinished() {
	for d := n; d != nil; d = d.Parent {
		if d.Dir == nil {
			continue
		}
		d.Dir.PendingReadJobs--
	}
}

// ReadJobAborted marks n and every ancestor Dir as Aborted. Used by
// ReadJobQueue.Abort to mark every Dir with an in-flight job before the
// jobs themselves are discarded.
func (n *Node) ReadJobAborted() {
	for d := n; d != nil; d = d.Parent {
		if d.Dir == nil {
			continue
		}
		d.SetReadState(StateAborted)
	}
}
