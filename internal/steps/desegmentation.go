package steps

import (
	"context"

	"l10nkit/internal/pipeline"
	"l10nkit/internal/resource"
)

// Desegmentation joins the segments of each unit back into one fragment.
type Desegmentation struct {
	pipeline.BaseStep
}

// NewDesegmentation creates the step.
func NewDesegmentation() *Desegmentation {
	s := &Desegmentation{}
	s.StepName = "desegmentation"
	s.Handlers.TextUnit = func(_ context.Context, e resource.Event) (resource.Event, error) {
		Join(e.TextUnit())
		return e, nil
	}
	return s
}

// Join reassembles the source and targets of tu. Codes are renumbered
// from 1 in first-appearance order over the whole source; a code split
// from its partner by segmentation gets the partner's id again. Target
// codes take the id of the source code they were mapped from.
func Join(tu *resource.TextUnit) {
	if !tu.Source.IsSegmented() {
		return
	}
	groupOf := make(map[string]int)
	ids := make(map[int]map[int]int)
	next := 1
	for _, seg := range tu.Source.Segments() {
		groupOf[seg.ID] = seg.Group
		if ids[seg.Group] == nil {
			ids[seg.Group] = make(map[int]int)
		}
		next = seg.Content.RenumberShared(ids[seg.Group], next)
	}
	joined := tu.Source.Unsegmented()
	joined.BalanceMarkers()
	tu.Source.SetContent(joined)

	for _, loc := range tu.TargetLocales() {
		tc := tu.Target(loc)
		if !tc.IsSegmented() {
			continue
		}
		for _, seg := range tc.Segments() {
			g, ok := groupOf[seg.ID]
			if !ok {
				g = seg.Group
			}
			for _, c := range seg.Content.Codes() {
				if id, ok := ids[g][c.ID]; ok {
					c.ID = id
				} else {
					c.ID = next
					next++
				}
			}
		}
		joined := tc.Unsegmented()
		joined.BalanceMarkers()
		tc.SetContent(joined)
	}
}
