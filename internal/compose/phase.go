package compose

import "fmt"

// Phase identifies one of the three ordered stages of chapter composition.
type Phase string

const (
	// PhasePlotOutline structures the plot and captures a working summary.
	PhasePlotOutline Phase = "plot_outline"

	// PhaseChapterDetail writes and grows the chapter draft.
	PhaseChapterDetail Phase = "chapter_detail"

	// PhaseFinalEdit reviews and polishes the draft. Terminal: no forward
	// transition exists.
	PhaseFinalEdit Phase = "final_edit"
)

// TotalSteps is the fixed number of phases a chapter moves through.
const TotalSteps = 3

// Ordering returns the phases in workflow order.
func Ordering() []Phase {
	return []Phase{PhasePlotOutline, PhaseChapterDetail, PhaseFinalEdit}
}

// ParsePhase converts a wire identifier into a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPhase, s)
	}
	return p, nil
}

// Valid reports whether p is one of the three known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhasePlotOutline, PhaseChapterDetail, PhaseFinalEdit:
		return true
	}
	return false
}

// Ordinal returns p's zero-based position in the fixed ordering, or -1 for an
// unknown phase.
func (p Phase) Ordinal() int {
	for i, candidate := range Ordering() {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Next returns the successor phase. ok is false for the terminal phase and
// for unknown phases.
func (p Phase) Next() (Phase, bool) {
	ord := p.Ordinal()
	if ord < 0 || ord >= TotalSteps-1 {
		return "", false
	}
	return Ordering()[ord+1], true
}

// Previous returns the predecessor phase. ok is false for the first phase and
// for unknown phases.
func (p Phase) Previous() (Phase, bool) {
	ord := p.Ordinal()
	if ord <= 0 {
		return "", false
	}
	return Ordering()[ord-1], true
}

// DisplayName returns the label shown for the phase.
func (p Phase) DisplayName() string {
	switch p {
	case PhasePlotOutline:
		return "Draft"
	case PhaseChapterDetail:
		return "Refined"
	case PhaseFinalEdit:
		return "Approved"
	}
	return string(p)
}

// Description returns a fixed sentence naming the phase's purpose.
func (p Phase) Description() string {
	switch p {
	case PhasePlotOutline:
		return "Structure the plot outline and capture a working summary before drafting begins."
	case PhaseChapterDetail:
		return "Write and refine the chapter content until the draft is substantial enough to edit."
	case PhaseFinalEdit:
		return "Review the draft, resolve editorial suggestions, and finalize the chapter."
	}
	return ""
}
