package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// FileStore persists every agent's log in a single JSON document keyed by
// agent ID. One goroutine owns both the document and its in-memory copy;
// every operation is a message to that goroutine, so writes never
// interleave. Each mutation rewrites the document through a temp file and
// rename before it is acknowledged.
type FileStore struct {
	path   string
	logger *slog.Logger

	reqs chan fileOp
	quit chan struct{}
	done chan struct{}

	closeOnce sync.Once
}

// fileOp runs on the owner goroutine. It returns whether the document
// changed and must be persisted.
type fileOp struct {
	apply func(logs map[string][]Record) (dirty bool, undo func(), err error)
	reply chan error
}

// Compile-time interface checks.
var (
	_ Store     = (*FileStore)(nil)
	_ Compactor = (*FileStore)(nil)
)

// OpenFileStore loads the document at path, creating its directory if
// needed, and starts the owner goroutine. A missing file is an empty store;
// a corrupt one is an error.
func OpenFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("memory: create directory %s: %w", dir, err)
		}
	}

	logs, err := loadDocument(path)
	if err != nil {
		return nil, err
	}

	s := &FileStore{
		path:   path,
		logger: logger,
		reqs:   make(chan fileOp),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run(logs)

	logger.Debug("memory: file store opened", "path", path, "agents", len(logs))
	return s, nil
}

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) run(logs map[string][]Record) {
	defer close(s.done)
	for {
		select {
		case op := <-s.reqs:
			op.reply <- s.handle(logs, op)
		case <-s.quit:
			return
		}
	}
}

func (s *FileStore) handle(logs map[string][]Record, op fileOp) error {
	dirty, undo, err := op.apply(logs)
	if err != nil || !dirty {
		return err
	}
	if err := writeDocument(s.path, logs); err != nil {
		if undo != nil {
			undo()
		}
		s.logger.Error("memory: persist failed", "path", s.path, "error", err)
		return err
	}
	return nil
}

// do sends op to the owner goroutine and waits for its reply.
func (s *FileStore) do(ctx context.Context, apply func(map[string][]Record) (bool, func(), error)) error {
	op := fileOp{apply: apply, reply: make(chan error, 1)}

	select {
	case s.reqs <- op:
	case <-s.done:
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-op.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Save appends rec to the agent's log and persists the document.
func (s *FileStore) Save(ctx context.Context, agentID string, rec Record) error {
	if agentID == "" {
		return ErrEmptyAgentID
	}
	return s.do(ctx, func(logs map[string][]Record) (bool, func(), error) {
		prev, existed := logs[agentID]
		logs[agentID] = append(slices.Clip(prev), stampAfter(prev, rec))
		undo := func() {
			if existed {
				logs[agentID] = prev
			} else {
				delete(logs, agentID)
			}
		}
		return true, undo, nil
	})
}

// Get returns the newest limit records for an agent, oldest first.
func (s *FileStore) Get(ctx context.Context, agentID string, limit int) ([]Record, error) {
	var out []Record
	err := s.do(ctx, func(logs map[string][]Record) (bool, func(), error) {
		out = tail(logs[agentID], limit)
		return false, nil, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Agents returns every agent with stored records.
func (s *FileStore) Agents(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.do(ctx, func(logs map[string][]Record) (bool, func(), error) {
		ids = make([]string, 0, len(logs))
		for id := range logs {
			ids = append(ids, id)
		}
		return false, nil, nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

// Compact keeps the newest maxPerAgent records of every agent and rewrites
// the document when anything was dropped.
func (s *FileStore) Compact(ctx context.Context, maxPerAgent int) (int, error) {
	var dropped int
	err := s.do(ctx, func(logs map[string][]Record) (bool, func(), error) {
		snapshot := make(map[string][]Record, len(logs))
		for id, recs := range logs {
			snapshot[id] = recs
		}
		dropped = trim(logs, maxPerAgent)
		undo := func() {
			for id, recs := range snapshot {
				logs[id] = recs
			}
		}
		return dropped > 0, undo, nil
	})
	if err != nil {
		return 0, err
	}
	return dropped, nil
}

// Close stops the owner goroutine. Pending operations finish first.
// Close is idempotent.
func (s *FileStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	<-s.done
	return nil
}

func loadDocument(path string) (map[string][]Record, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string][]Record), nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: read %s: %w", path, err)
	}

	logs := make(map[string][]Record)
	if len(raw) == 0 {
		return logs, nil
	}
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, fmt.Errorf("memory: decode %s: %w", path, err)
	}
	return logs, nil
}

// writeDocument replaces path atomically: readers see either the old or
// the new document, never a partial write.
func writeDocument(path string, logs map[string][]Record) error {
	raw, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("memory: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("memory: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("memory: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("memory: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("memory: replace %s: %w", path, err)
	}
	return nil
}
