package layout

// collapsedMargins accumulates adjoining vertical margins. The result is
// the largest positive margin plus the most negative one, so two positive
// margins collapse to their maximum.
type collapsedMargins struct {
	pos float64
	neg float64
}

func marginOf(v float64) collapsedMargins {
	return collapsedMargins{}.add(v)
}

// add adjoins one more margin.
func (m collapsedMargins) add(v float64) collapsedMargins {
	if v > m.pos {
		m.pos = v
	}
	if v < m.neg {
		m.neg = v
	}
	return m
}

// join adjoins another collapsed set.
func (m collapsedMargins) join(o collapsedMargins) collapsedMargins {
	return m.add(o.pos).add(o.neg)
}

func (m collapsedMargins) value() float64 { return m.pos + m.neg }

// collapseMargins returns the collapsed value of two adjoining vertical
// margins: both positive gives the max, both negative the most negative,
// mixed the sum.
func collapseMargins(m1, m2 float64) float64 {
	return marginOf(m1).add(m2).value()
}

// blockMargins are the vertical margins of a block as its parent sees
// them, including margins of children that collapse through its edges.
type blockMargins struct {
	top, bottom collapsedMargins
}
