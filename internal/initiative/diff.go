package initiative

type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeUpdated ChangeKind = "updated"
)

// Change describes how one initiative differs between two snapshots.
type Change struct {
	Identity string     `json:"identity"`
	Kind     ChangeKind `json:"kind"`
	Fields   []string   `json:"fields,omitempty"`
	After    Initiative `json:"after"`
}

// Diff compares snapshots by identity. Added and updated entries follow the
// order of after; removed entries follow the order of before.
func Diff(before, after []Initiative) []Change {
	prev := make(map[string]Initiative, len(before))
	for _, it := range before {
		prev[it.Identity()] = it
	}
	next := make(map[string]bool, len(after))

	var changes []Change
	for _, it := range after {
		id := it.Identity()
		next[id] = true
		old, ok := prev[id]
		if !ok {
			changes = append(changes, Change{Identity: id, Kind: ChangeAdded, After: it})
			continue
		}
		if fields := changedFields(old, it); len(fields) > 0 {
			changes = append(changes, Change{Identity: id, Kind: ChangeUpdated, Fields: fields, After: it})
		}
	}
	for _, it := range before {
		if !next[it.Identity()] {
			changes = append(changes, Change{Identity: it.Identity(), Kind: ChangeRemoved, After: it})
		}
	}
	return changes
}

func changedFields(a, b Initiative) []string {
	var fields []string
	if a.Name != b.Name {
		fields = append(fields, "name")
	}
	if a.Owner != b.Owner {
		fields = append(fields, "owner")
	}
	if a.Status != b.Status {
		fields = append(fields, "status")
	}
	if a.Progress != b.Progress {
		fields = append(fields, "progress_percentage")
	}
	if a.DueDate != b.DueDate {
		fields = append(fields, "due_date")
	}
	if a.Description != b.Description {
		fields = append(fields, "description")
	}
	if a.RelatedOKR != b.RelatedOKR {
		fields = append(fields, "related_okr")
	}
	if a.Blockers != b.Blockers {
		fields = append(fields, "blockers")
	}
	return fields
}
