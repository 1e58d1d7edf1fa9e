package till

import (
	"fmt"
	"time"

	"shiftpos/internal/model"
)

// BreakTracker enforces at most one open break on a shift's break slice.
type BreakTracker struct {
	breaks *[]model.BreakPeriod
}

func NewBreakTracker(breaks *[]model.BreakPeriod) BreakTracker {
	return BreakTracker{breaks: breaks}
}

// Start opens a new break.
func (t BreakTracker) Start(kind model.BreakType, note string, at time.Time) (model.BreakPeriod, error) {
	if !kind.Valid() {
		return model.BreakPeriod{}, fmt.Errorf("%w: %q", ErrInvalidBreakType, kind)
	}
	if t.ActiveBreak() != nil {
		return model.BreakPeriod{}, ErrBreakAlreadyActive
	}
	b := model.BreakPeriod{Type: kind, Note: note, StartTime: at}
	*t.breaks = append(*t.breaks, b)
	return b, nil
}

// End closes the most recent open break.
func (t BreakTracker) End(at time.Time) (model.BreakPeriod, error) {
	idx := t.activeIndex()
	if idx < 0 {
		return model.BreakPeriod{}, ErrNoActiveBreak
	}
	end := at
	(*t.breaks)[idx].EndTime = &end
	return (*t.breaks)[idx], nil
}

// ActiveBreak returns a copy of the open break, or nil. Callers check it
// when a cashier session is (re)established to offer "end break and
// resume"; a break is never ended automatically.
func (t BreakTracker) ActiveBreak() *model.BreakPeriod {
	idx := t.activeIndex()
	if idx < 0 {
		return nil
	}
	b := (*t.breaks)[idx]
	return &b
}

func (t BreakTracker) activeIndex() int {
	if t.breaks == nil {
		return -1
	}
	for i := len(*t.breaks) - 1; i >= 0; i-- {
		if (*t.breaks)[i].Active() {
			return i
		}
	}
	return -1
}
