package layout

// ConstraintSpace packages the constraints for laying out a subtree. It is
// a value: derive modified copies with the With methods instead of
// mutating.
type ConstraintSpace struct {
	// AvailableWidth is the content width of the containing block.
	AvailableWidth float64
	// PercentHeight is the height percentages resolve against, or -1 when
	// the containing block's height depends on its content.
	PercentHeight float64
}

// NewConstraintSpace creates a constraint space with the given available
// size. A negative height makes percentage heights behave as auto.
func NewConstraintSpace(width, height float64) ConstraintSpace {
	if height < 0 {
		height = -1
	}
	return ConstraintSpace{AvailableWidth: width, PercentHeight: height}
}

// WithAvailableWidth returns a copy with a different available width.
func (cs ConstraintSpace) WithAvailableWidth(width float64) ConstraintSpace {
	cs.AvailableWidth = width
	return cs
}

// WithPercentHeight returns a copy with a different percentage base for
// heights; pass -1 for indefinite.
func (cs ConstraintSpace) WithPercentHeight(height float64) ConstraintSpace {
	if height < 0 {
		height = -1
	}
	cs.PercentHeight = height
	return cs
}

// HasDefiniteHeight reports whether percentage heights resolve.
func (cs ConstraintSpace) HasDefiniteHeight() bool { return cs.PercentHeight >= 0 }
