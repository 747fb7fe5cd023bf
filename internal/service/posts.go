package service

import (
	"context"
	"fmt"
	"sync"

	"post_drafter/internal/domain"
)

// PostService serves the results store to readers. Every call reloads the
// document so drafts written by a concurrent run become visible.
type PostService struct {
	mu    sync.Mutex
	store *PostStore
}

func NewPostService(docs DocumentStore) *PostService {
	return &PostService{store: NewPostStore(docs)}
}

func (s *PostService) ListPosts(ctx context.Context, platform string) ([]domain.PostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Load(ctx); err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	return s.store.All(platform), nil
}

func (s *PostService) MarkViewed(ctx context.Context, id string) (domain.PostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Load(ctx); err != nil {
		return domain.PostRecord{}, fmt.Errorf("load posts: %w", err)
	}
	return s.store.MarkViewed(ctx, id)
}
