package out

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tether/internal/modules/activity/domain"
	activityout "tether/internal/modules/activity/port/out"
)

const defaultTailLimit = 200

// FileActivityStore keeps the activity log as JSON lines.
type FileActivityStore struct {
	path string
	mu   sync.Mutex
}

func NewFileActivityStore(home string) activityout.Store {
	return &FileActivityStore{path: filepath.Join(home, "activity.log")}
}

func (s *FileActivityStore) Append(_ context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode activity event: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create activity dir: %w", err)
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open activity log: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write activity log: %w", err)
	}
	return nil
}

// Tail returns the last query.Limit matching events, oldest first.
func (s *FileActivityStore) Tail(_ context.Context, query domain.Query) ([]domain.Event, error) {
	if query.Limit <= 0 {
		query.Limit = defaultTailLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Event{}, nil
		}
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	defer file.Close()

	buffer := make([]domain.Event, 0, query.Limit)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		event := domain.Event{}
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if !query.Matches(event) {
			continue
		}
		if len(buffer) < query.Limit {
			buffer = append(buffer, event)
			continue
		}
		copy(buffer, buffer[1:])
		buffer[len(buffer)-1] = event
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan activity log: %w", err)
	}
	return buffer, nil
}
