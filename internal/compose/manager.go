package compose

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager is the keyed registry of live controllers: at most one Controller
// per story chapter. It owns the open/resume/discard lifecycle and applies
// external state-file changes detected by the store watcher.
type Manager struct {
	store  StateStore
	logger *zap.Logger

	mu          sync.RWMutex
	controllers map[controllerKey]*Controller
}

type controllerKey struct {
	storyID string
	chapter int
}

// NewManager creates an empty manager.
func NewManager(store StateStore, logger *zap.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:       store,
		logger:      logger,
		controllers: make(map[controllerKey]*Controller),
	}, nil
}

// Open returns the live controller for the story chapter, resuming persisted
// state when present and initializing a fresh workflow otherwise. Repeated
// opens return the same controller.
func (m *Manager) Open(ctx context.Context, storyID string, chapter int) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := controllerKey{storyID: storyID, chapter: chapter}
	if ctrl, ok := m.controllers[key]; ok {
		return ctrl, nil
	}

	ctrl, err := NewController(storyID, chapter, m.store, m.logger)
	if err != nil {
		return nil, err
	}

	state, err := m.store.LoadState(ctx, storyID, chapter)
	switch {
	case err == nil:
		if err := ctrl.Load(state); err != nil {
			return nil, err
		}
		m.logger.Info("compose workflow resumed",
			zap.String("story_id", storyID),
			zap.Int("chapter", chapter),
			zap.String("phase", string(state.CurrentPhase)),
		)
	case errors.Is(err, ErrStateNotFound):
		if _, err := ctrl.Initialize(ctx); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to load compose state: %w", err)
	}

	m.controllers[key] = ctrl
	return ctrl, nil
}

// Get returns the live controller if one is open. No I/O.
func (m *Manager) Get(storyID string, chapter int) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctrl, ok := m.controllers[controllerKey{storyID: storyID, chapter: chapter}]
	return ctrl, ok
}

// Peek returns the current snapshot without opening a workflow: the live
// controller's state when one is open, otherwise the persisted copy. Returns
// ErrStateNotFound when neither exists.
func (m *Manager) Peek(ctx context.Context, storyID string, chapter int) (*ChapterComposeState, error) {
	if ctrl, ok := m.Get(storyID, chapter); ok {
		if state := ctrl.CurrentState(); state != nil {
			return state, nil
		}
	}
	return m.store.LoadState(ctx, storyID, chapter)
}

// Discard drops the live controller and deletes the persisted compose state.
// Used when a chapter is finalized and its workflow is destroyed.
func (m *Manager) Discard(ctx context.Context, storyID string, chapter int) error {
	m.mu.Lock()
	delete(m.controllers, controllerKey{storyID: storyID, chapter: chapter})
	m.mu.Unlock()

	if err := m.store.DeleteState(ctx, storyID, chapter); err != nil {
		return fmt.Errorf("failed to delete compose state: %w", err)
	}
	m.logger.Info("compose workflow discarded",
		zap.String("story_id", storyID),
		zap.Int("chapter", chapter),
	)
	return nil
}

// HandleExternalChange reloads a live controller's snapshot from disk when
// the persisted copy was changed by someone else. The controller's own writes
// are recognized by version and modification time and skipped.
func (m *Manager) HandleExternalChange(ctx context.Context, storyID string, chapter int) error {
	ctrl, ok := m.Get(storyID, chapter)
	if !ok {
		return nil
	}

	disk, err := m.store.LoadState(ctx, storyID, chapter)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read changed compose state: %w", err)
	}

	cur := ctrl.CurrentState()
	if cur != nil &&
		cur.Metadata.Version == disk.Metadata.Version &&
		cur.Metadata.LastModified.Equal(disk.Metadata.LastModified) {
		return nil
	}

	m.logger.Info("compose state changed externally, reloading",
		zap.String("story_id", storyID),
		zap.Int("chapter", chapter),
		zap.Int64("disk_version", disk.Metadata.Version),
	)
	return ctrl.Load(disk)
}

// Close drops all live controllers. Persisted state is untouched.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controllers = make(map[controllerKey]*Controller)
}
