package conversation

import "errors"

var (
	// ErrNoHistory indicates there is no earlier position to return to.
	ErrNoHistory = errors.New("no navigation history")

	// ErrNoForward indicates there is no later position to move to.
	ErrNoForward = errors.New("no forward history")
)

// Navigation tracks the user's position inside a tree. BranchHistory always
// ends with CurrentBranchID; ForwardHistory holds positions abandoned by
// navigating back, most recent last.
type Navigation struct {
	CurrentBranchID    string   `json:"currentBranchId"`
	AvailableBranches  []string `json:"availableBranches"`
	BranchHistory      []string `json:"branchHistory"`
	ForwardHistory     []string `json:"forwardHistory,omitempty"`
	CanNavigateBack    bool     `json:"canNavigateBack"`
	CanNavigateForward bool     `json:"canNavigateForward"`
}

// NewNavigation positions the user at the tree's root branch.
func NewNavigation(t *Tree) Navigation {
	nav := Navigation{
		CurrentBranchID: t.RootBranchID,
		BranchHistory:   []string{t.RootBranchID},
	}
	nav.refresh(t)
	return nav
}

// Navigate moves to the given branch, clearing any forward history.
func (n Navigation) Navigate(t *Tree, toBranchID string) (Navigation, error) {
	if _, ok := t.Branch(toBranchID); !ok {
		return n, ErrBranchNotFound
	}
	out := n.Clone()
	if toBranchID == out.CurrentBranchID {
		out.refresh(t)
		return out, nil
	}
	out.BranchHistory = append(out.BranchHistory, toBranchID)
	out.CurrentBranchID = toBranchID
	out.ForwardHistory = nil
	out.refresh(t)
	return out, nil
}

// Back returns to the previously visited branch.
func (n Navigation) Back(t *Tree) (Navigation, error) {
	if len(n.BranchHistory) < 2 {
		return n, ErrNoHistory
	}
	out := n.Clone()
	last := len(out.BranchHistory) - 1
	out.ForwardHistory = append(out.ForwardHistory, out.BranchHistory[last])
	out.BranchHistory = out.BranchHistory[:last]
	out.CurrentBranchID = out.BranchHistory[len(out.BranchHistory)-1]
	out.refresh(t)
	return out, nil
}

// Forward re-enters the branch most recently left via Back.
func (n Navigation) Forward(t *Tree) (Navigation, error) {
	if len(n.ForwardHistory) == 0 {
		return n, ErrNoForward
	}
	out := n.Clone()
	last := len(out.ForwardHistory) - 1
	next := out.ForwardHistory[last]
	out.ForwardHistory = out.ForwardHistory[:last]
	if len(out.ForwardHistory) == 0 {
		out.ForwardHistory = nil
	}
	out.BranchHistory = append(out.BranchHistory, next)
	out.CurrentBranchID = next
	out.refresh(t)
	return out, nil
}

// Clone returns a copy sharing no memory with the receiver.
func (n Navigation) Clone() Navigation {
	out := n
	out.AvailableBranches = append([]string(nil), n.AvailableBranches...)
	out.BranchHistory = append([]string(nil), n.BranchHistory...)
	out.ForwardHistory = append([]string(nil), n.ForwardHistory...)
	return out
}

// refresh recomputes the derived fields from the tree and stacks.
func (n *Navigation) refresh(t *Tree) {
	n.AvailableBranches = t.BranchIDs()
	n.CanNavigateBack = len(n.BranchHistory) > 1
	n.CanNavigateForward = len(n.ForwardHistory) > 0
}
