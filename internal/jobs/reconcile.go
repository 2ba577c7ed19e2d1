package jobs

import (
	"maps"

	"studio/internal/domain"
)

const genericFailure = "generation failed"

// Apply folds one polled status into the previous snapshot. It only touches
// fields the status carries; everything else is kept as it was.
func Apply(prev domain.Snapshot, st domain.JobStatus) domain.Snapshot {
	next := prev
	next.State = st.State
	if st.Progress > 0 && st.Progress >= prev.Progress {
		next.Progress = st.Progress
	}
	if st.PostID != "" {
		next.PostID = st.PostID
	}
	next.Items = MergeByID(prev.Items, st.Items)
	next.Messages = MergeByID(prev.Messages, st.Messages)

	switch st.State {
	case domain.JobStateSucceeded:
		next.Generating = false
		next.Progress = 100
		next.Error = ""
		if st.ResultURL != "" {
			next.ResultURL = st.ResultURL
		}
	case domain.JobStateFailed:
		next.Generating = false
		next.Error = st.ErrorMessage
		if next.Error == "" {
			next.Error = genericFailure
		}
	default:
		next.Generating = true
	}
	return next
}

// MergeByID returns the union of existing and incoming, deduplicated by ID in
// first-seen order. An incoming item with a known ID updates the fields it
// sets on the existing entry instead of being appended again. Items without
// an ID cannot be matched and are always appended.
func MergeByID(existing, incoming []domain.Item) []domain.Item {
	if len(existing) == 0 && len(incoming) == 0 {
		return nil
	}
	out := make([]domain.Item, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))
	add := func(it domain.Item) {
		if it.ID == "" {
			out = append(out, cloneItem(it))
			return
		}
		if pos, ok := index[it.ID]; ok {
			out[pos] = mergeItem(out[pos], it)
			return
		}
		index[it.ID] = len(out)
		out = append(out, cloneItem(it))
	}
	for _, it := range existing {
		add(it)
	}
	for _, it := range incoming {
		add(it)
	}
	return out
}

func mergeItem(dst, src domain.Item) domain.Item {
	if src.Type != "" {
		dst.Type = src.Type
	}
	if src.Text != "" {
		dst.Text = src.Text
	}
	if src.URL != "" {
		dst.URL = src.URL
	}
	if len(src.Extra) > 0 {
		merged := make(map[string]any, len(dst.Extra)+len(src.Extra))
		maps.Copy(merged, dst.Extra)
		maps.Copy(merged, src.Extra)
		dst.Extra = merged
	}
	return dst
}

func cloneItem(it domain.Item) domain.Item {
	if it.Extra != nil {
		it.Extra = maps.Clone(it.Extra)
	}
	return it
}
