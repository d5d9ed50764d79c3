package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"tether/internal/modules/remote/domain"
	remoteout "tether/internal/modules/remote/port/out"
	"tether/internal/platform/clock"
	apperrors "tether/internal/platform/errors"
	"tether/internal/platform/logging"
)

// DocumentService is the remote document store. Writes are serialized so
// the base-version check and the write happen as one step.
type DocumentService struct {
	clock  clock.Clock
	repo   remoteout.Repository
	logger hclog.Logger

	mu   sync.Mutex
	last time.Time
}

func NewDocumentService(clk clock.Clock, repo remoteout.Repository, logger hclog.Logger) *DocumentService {
	return &DocumentService{clock: clk, repo: repo, logger: logging.OrNull(logger).Named("remote")}
}

func (s *DocumentService) Get(ctx context.Context, key domain.Key) (domain.Document, error) {
	if err := key.Validate(); err != nil {
		return domain.Document{}, err
	}
	return s.repo.Get(ctx, key)
}

// Put stores doc with a fresh lastModified. Unless force is set, an existing
// document must still carry base, and base zero means the document must not
// exist yet.
func (s *DocumentService) Put(ctx context.Context, doc domain.Document, base time.Time, force bool) (time.Time, error) {
	if err := doc.Key.Validate(); err != nil {
		return time.Time{}, err
	}
	if !json.Valid(doc.Data) {
		return time.Time{}, apperrors.Invalid("%s: data is not valid json", doc.Key.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.repo.Get(ctx, doc.Key)
	found := err == nil
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return time.Time{}, err
	}
	if found && !force && !existing.LastModified.Equal(base) {
		s.logger.Debug("stale write rejected", "document", doc.Key.String(), "base", base, "current", existing.LastModified)
		return time.Time{}, fmt.Errorf("%s: %w", doc.Key.String(), domain.ErrStaleWrite)
	}
	doc.LastModified = domain.Stamp(s.clock.Now(), s.last, existing.LastModified)
	if err := s.repo.Put(ctx, doc); err != nil {
		return time.Time{}, err
	}
	s.last = doc.LastModified
	return doc.LastModified, nil
}

func (s *DocumentService) Delete(ctx context.Context, key domain.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Delete(ctx, key)
}

func (s *DocumentService) ChangedSince(ctx context.Context, ownerID, collection string, since time.Time) ([]domain.Document, error) {
	if ownerID == "" || collection == "" {
		return nil, apperrors.Invalid("owner and collection are required")
	}
	return s.repo.List(ctx, ownerID, collection, since)
}

// OpenSessions lists the owner's sessions that have not ended. Documents
// that do not decode are skipped.
func (s *DocumentService) OpenSessions(ctx context.Context, ownerID string) ([]domain.PublicSession, error) {
	if ownerID == "" {
		return nil, apperrors.Invalid("owner id is required")
	}
	docs, err := s.repo.List(ctx, ownerID, domain.CollectionSessions, time.Time{})
	if err != nil {
		return nil, err
	}
	out := make([]domain.PublicSession, 0)
	for _, doc := range docs {
		session, open, err := domain.OpenSession(doc)
		if err != nil {
			s.logger.Warn("skipping undecodable session", "document", doc.Key.String(), "error", err)
			continue
		}
		if open {
			out = append(out, session)
		}
	}
	return out, nil
}
