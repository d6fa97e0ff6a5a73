package settings

import (
	"strconv"

	"ligopivot/fault"
)

// Cursor remembers which range the operator selected for removal. The
// selection list shows a placeholder entry first, so positions are 1-based.
type Cursor struct {
	index int
	set   bool
}

// Select records the 1-based position pos.
func (c *Cursor) Select(pos int) {
	c.index = pos - 1
	c.set = true
}

// Selected returns the 1-based position, or 0 when nothing is selected.
func (c *Cursor) Selected() int {
	if !c.set {
		return 0
	}
	return c.index + 1
}

// RemoveSelected removes the selected range from s. On failure neither the
// cursor nor the ranges change; on success the selection is cleared.
func (c *Cursor) RemoveSelected(s *Settings) (string, error) {
	if !c.set {
		return "", fault.Validation("range", "", "no CIDR selected")
	}

	removed, err := s.RemoveRange(c.index + 1)
	if err != nil {
		return "", fault.Validation("range", strconv.Itoa(c.index+1), "selected CIDR not saved")
	}

	*c = Cursor{}
	return removed, nil
}
