package conversation

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrBranchNotFound indicates the referenced branch does not exist in the tree.
	ErrBranchNotFound = errors.New("branch not found")
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleCharacter Role = "character"
	RoleEditor    Role = "editor"
)

// Message is a single utterance within a branch.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Author    string    `json:"author,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage creates a message with a fresh identifier and timestamp.
func NewMessage(role Role, author, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Author:    author,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Branch is an ordered run of messages. ParentID is empty for the root branch.
type Branch struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// Tree holds every branch of a phase's dialogue, keyed by branch ID.
type Tree struct {
	RootBranchID string             `json:"rootBranchId"`
	Branches     map[string]*Branch `json:"branches"`
}

// NewTree creates a tree containing a single empty root branch.
func NewTree() *Tree {
	root := &Branch{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Messages:  []Message{},
	}
	return &Tree{
		RootBranchID: root.ID,
		Branches:     map[string]*Branch{root.ID: root},
	}
}

// Branch returns the branch with the given ID.
func (t *Tree) Branch(id string) (*Branch, bool) {
	b, ok := t.Branches[id]
	return b, ok
}

// Append adds a message to the end of the given branch.
func (t *Tree) Append(branchID string, msg Message) error {
	b, ok := t.Branches[branchID]
	if !ok {
		return ErrBranchNotFound
	}
	b.Messages = append(b.Messages, msg)
	return nil
}

// Fork creates a new empty branch diverging from the given branch.
func (t *Tree) Fork(fromID string) (*Branch, error) {
	if _, ok := t.Branches[fromID]; !ok {
		return nil, ErrBranchNotFound
	}
	b := &Branch{
		ID:        uuid.New().String(),
		ParentID:  fromID,
		CreatedAt: time.Now(),
		Messages:  []Message{},
	}
	t.Branches[b.ID] = b
	return b, nil
}

// BranchIDs returns all branch IDs ordered by creation time, then ID, so
// listings are stable across calls.
func (t *Tree) BranchIDs() []string {
	ids := make([]string, 0, len(t.Branches))
	for id := range t.Branches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		bi, bj := t.Branches[ids[i]], t.Branches[ids[j]]
		if !bi.CreatedAt.Equal(bj.CreatedAt) {
			return bi.CreatedAt.Before(bj.CreatedAt)
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Clone returns a deep copy sharing no memory with the receiver.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	out := &Tree{
		RootBranchID: t.RootBranchID,
		Branches:     make(map[string]*Branch, len(t.Branches)),
	}
	for id, b := range t.Branches {
		nb := &Branch{
			ID:        b.ID,
			ParentID:  b.ParentID,
			CreatedAt: b.CreatedAt,
			Messages:  make([]Message, len(b.Messages)),
		}
		copy(nb.Messages, b.Messages)
		out.Branches[id] = nb
	}
	return out
}
