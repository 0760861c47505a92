package app

import (
	"fmt"
	"log/slog"

	"github.com/SudharsunRavi/etracker-drive/internal/storage"
)

// Service exposes the full operation surface consumed by callers: record
// CRUD, snapshot export/import, and summaries. It owns the single store
// handle for the process; ImportSnapshot swaps it for a fresh one after the
// underlying file is replaced.
type Service struct {
	store  *storage.Store
	logger *slog.Logger
}

func New(store *storage.Store, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("app: store is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}, nil
}

func (s *Service) Store() *storage.Store {
	return s.store
}

func (s *Service) Close() error {
	if s == nil || s.store == nil {
		return nil
	}
	return s.store.Close()
}
