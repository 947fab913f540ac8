package tasks

// Diff compares two parses of the same file. Tasks only present in newTasks
// are reported as added, tasks whose completion flipped as changed. Tasks
// missing from newTasks are dropped silently. Diff never mutates its inputs
// and Diff(x, x) is always empty.
func Diff(oldTasks, newTasks []Task, projectID string) []TaskChange {
	prev := make(map[string]Task, len(oldTasks))
	for _, t := range oldTasks {
		prev[t.ID] = t
	}

	var changes []TaskChange
	seen := make(map[string]bool, len(newTasks))
	for _, t := range newTasks {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true

		old, ok := prev[t.ID]
		switch {
		case !ok:
			changes = append(changes, TaskChange{Task: t, ProjectID: projectID, Kind: ChangeAdded})
		case old.IsCompleted != t.IsCompleted:
			changes = append(changes, TaskChange{Task: t, ProjectID: projectID, Kind: ChangeChanged})
		}
	}
	return changes
}
