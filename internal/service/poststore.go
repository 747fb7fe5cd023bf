package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"post_drafter/internal/domain"
)

// PostStore is the results store: generated posts keyed by task id.
type PostStore struct {
	docs  DocumentStore
	now   func() time.Time
	posts map[string]domain.PostRecord
}

func NewPostStore(docs DocumentStore) *PostStore {
	return &PostStore{
		docs:  docs,
		now:   time.Now,
		posts: make(map[string]domain.PostRecord),
	}
}

func (s *PostStore) Load(ctx context.Context) error {
	data, found, err := s.docs.Get(ctx, KeyPosts)
	if err != nil {
		return fmt.Errorf("read posts: %w", err)
	}

	posts := make(map[string]domain.PostRecord)
	if found {
		if err := json.Unmarshal(data, &posts); err != nil {
			return fmt.Errorf("%w: decode posts: %v", domain.ErrCorruptState, err)
		}
		if posts == nil {
			posts = make(map[string]domain.PostRecord)
		}
	}

	for id, post := range posts {
		if post.ID != id {
			return fmt.Errorf("%w: post keyed %q carries id %q", domain.ErrCorruptState, id, post.ID)
		}
	}

	s.posts = posts
	return nil
}

func (s *PostStore) Save(ctx context.Context) error {
	data, err := json.Marshal(s.posts)
	if err != nil {
		return fmt.Errorf("marshal posts: %w", err)
	}
	if err := s.docs.Put(ctx, KeyPosts, data); err != nil {
		return fmt.Errorf("write posts: %w", err)
	}
	return nil
}

// Upsert adds or replaces the post under its id, keeping an existing viewed marker.
func (s *PostStore) Upsert(post domain.PostRecord) {
	if old, ok := s.posts[post.ID]; ok {
		if post.Viewed == nil {
			post.Viewed = old.Viewed
		}
		if post.CreatedAt.IsZero() {
			post.CreatedAt = old.CreatedAt
		}
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = s.now().UTC()
	}
	s.posts[post.ID] = post
}

func (s *PostStore) Get(id string) (domain.PostRecord, bool) {
	post, ok := s.posts[id]
	return post, ok
}

// All returns posts sorted by id, optionally restricted to one platform.
func (s *PostStore) All(platform string) []domain.PostRecord {
	out := make([]domain.PostRecord, 0, len(s.posts))
	for _, post := range s.posts {
		if platform != "" && post.Platform != platform {
			continue
		}
		out = append(out, post)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// MarkViewed records the first time a post was read and persists.
func (s *PostStore) MarkViewed(ctx context.Context, id string) (domain.PostRecord, error) {
	post, ok := s.posts[id]
	if !ok {
		return domain.PostRecord{}, fmt.Errorf("post %q: %w", id, domain.ErrNotFound)
	}
	if post.Viewed == nil {
		viewed := s.now().UTC()
		post.Viewed = &viewed
		s.posts[id] = post
		if err := s.Save(ctx); err != nil {
			return domain.PostRecord{}, err
		}
	}
	return post, nil
}

func (s *PostStore) Len() int {
	return len(s.posts)
}
