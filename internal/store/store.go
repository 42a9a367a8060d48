// Package store keeps the user directory and every annotation in memory and
// writes both documents back to a repository after each change.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lewtec/sinalizador/internal/domain"
)

// Store is the single writer for users and annotations. Every operation holds
// the same lock for its whole validate, mutate and persist cycle.
type Store struct {
	mu          sync.Mutex
	repo        domain.DatasetRepository
	users       domain.UserDirectory
	annotations domain.AnnotationSet
	now         func() time.Time
}

// Option customizes a Store at Open time
type Option func(*Store)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open loads both datasets from repo. Datasets that were never saved start
// empty.
func Open(ctx context.Context, repo domain.DatasetRepository, opts ...Option) (*Store, error) {
	s := &Store{
		repo:        repo,
		users:       domain.UserDirectory{},
		annotations: domain.AnnotationSet{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := load(ctx, repo, domain.DatasetUsers, &s.users); err != nil {
		return nil, err
	}
	if err := load(ctx, repo, domain.DatasetAnnotations, &s.annotations); err != nil {
		return nil, err
	}
	if s.users == nil {
		s.users = domain.UserDirectory{}
	}
	if s.annotations == nil {
		s.annotations = domain.AnnotationSet{}
	}
	if dropped := s.annotations.DropEmptyFlags(); dropped > 0 {
		log.Printf("store: ignored %d flags without boxes", dropped)
	}
	log.Printf("store: loaded %d users and annotations for %d users", len(s.users), len(s.annotations))
	return s, nil
}

func load(ctx context.Context, repo domain.DatasetRepository, name string, target any) error {
	doc, err := repo.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("while loading dataset %q: %w", name, err)
	}
	if doc == nil {
		return nil
	}
	if err := json.Unmarshal(doc, target); err != nil {
		return fmt.Errorf("while decoding dataset %q: %w", name, err)
	}
	return nil
}

// Export writes the current state to another repository, in the same format
// the store itself persists.
func (s *Store) Export(ctx context.Context, target domain.DatasetRepository) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistTo(ctx, target)
}

// persist writes both documents. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) error {
	return s.persistTo(ctx, s.repo)
}

func (s *Store) persistTo(ctx context.Context, repo domain.DatasetRepository) error {
	datasets := []struct {
		name  string
		value any
	}{
		{domain.DatasetUsers, s.users},
		{domain.DatasetAnnotations, s.annotations},
	}
	for _, dataset := range datasets {
		doc, err := json.MarshalIndent(dataset.value, "", "  ")
		if err != nil {
			return fmt.Errorf("while encoding dataset %q: %w", dataset.name, err)
		}
		if err := repo.Save(ctx, dataset.name, doc); err != nil {
			return fmt.Errorf("while saving dataset %q: %w", dataset.name, err)
		}
	}
	log.Printf("store: saved datasets")
	return nil
}

func (s *Store) timestamp() string {
	return domain.Timestamp(s.now())
}

// image returns the stored annotation for (email, image) without creating it
func (s *Store) image(email, image string) *domain.ImageAnnotation {
	images, ok := s.annotations[email]
	if !ok {
		return nil
	}
	return images[image]
}

// ensureImage returns the stored annotation for (email, image), creating the
// user and image levels when missing. Siblings are left alone.
func (s *Store) ensureImage(email, image string) *domain.ImageAnnotation {
	images, ok := s.annotations[email]
	if !ok || images == nil {
		images = domain.UserAnnotations{}
		s.annotations[email] = images
	}
	entry, ok := images[image]
	if !ok || entry == nil {
		created := domain.NewImageAnnotation()
		entry = &created
		images[image] = entry
	}
	if entry.Flags == nil {
		entry.Flags = map[string]*domain.FlagAnnotation{}
	}
	return entry
}

func (s *Store) flag(email, image, flag string) *domain.FlagAnnotation {
	entry := s.image(email, image)
	if entry == nil {
		return nil
	}
	return entry.Flags[flag]
}

// SaveAnnotation either appends a box to flag or, for an UpdateTextBox
// payload, rewrites the referring expression of an existing one.
func (s *Store) SaveAnnotation(ctx context.Context, email, image, flag string, payload domain.BoxPayload) (string, error) {
	if email == "" || image == "" || flag == "" || payload == nil {
		return "", domain.NewError(domain.ErrMissingField, "Missing required data")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timestamp()

	if update, ok := payload.(domain.UpdateTextBox); ok {
		existing := s.flag(email, image, flag)
		if existing == nil || update.Index < 0 || update.Index >= len(existing.Boxes) {
			return "", domain.NewError(domain.ErrInvalidIndex, "Invalid bounding box index for update")
		}
		existing.Boxes[update.Index] = domain.ApplyTextUpdate(existing.Boxes[update.Index], update.Text)
		existing.Timestamp = now
		s.image(email, image).LastUpdated = now
		if err := s.persist(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("Bounding box updated for %s!", flag), nil
	}

	box, ok := domain.NormalizeForInsert(payload)
	if !ok {
		return "", domain.NewError(domain.ErrMissingField, "Unsupported bounding box")
	}
	entry := s.ensureImage(email, image)
	target, ok := entry.Flags[flag]
	if !ok || target == nil {
		target = &domain.FlagAnnotation{Boxes: []domain.Box{}}
		entry.Flags[flag] = target
	}
	target.Boxes = append(target.Boxes, box)
	target.Timestamp = now
	entry.LastUpdated = now

	if user, ok := s.users[email]; ok && user != nil {
		imageName, flagName := image, flag
		user.LastAnnotatedImage = &imageName
		user.LastSelectedFlag = &flagName
	}

	if err := s.persist(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("Bounding box added for %s!", flag), nil
}

// UpdateReferringExpression sets the text of the box at index. Unlike
// SaveAnnotation it reports an absent flag separately from a bad index and
// never moves the user's cursors.
func (s *Store) UpdateReferringExpression(ctx context.Context, email, image, flag string, index int, text string) (string, error) {
	if email == "" || image == "" || flag == "" {
		return "", domain.NewError(domain.ErrMissingField, "Missing required data")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.flag(email, image, flag)
	if existing == nil {
		return "", domain.NewError(domain.ErrFlagNotFound, fmt.Sprintf("Flag %s not found", flag))
	}
	if index < 0 || index >= len(existing.Boxes) {
		return "", domain.NewError(domain.ErrInvalidIndex, fmt.Sprintf("Invalid bounding box index %d", index))
	}

	now := s.timestamp()
	existing.Boxes[index] = domain.ApplyTextUpdate(existing.Boxes[index], text)
	existing.Timestamp = now
	s.image(email, image).LastUpdated = now

	if err := s.persist(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("Referring expression updated for %s!", flag), nil
}

// RemoveAnnotation deletes the box at *index, or the whole flag when index is
// nil. A flag left without boxes is deleted too.
func (s *Store) RemoveAnnotation(ctx context.Context, email, image, flag string, index *int) (string, error) {
	if email == "" || image == "" || flag == "" {
		return "", domain.NewError(domain.ErrMissingField, "Missing required data")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.image(email, image)
	var existing *domain.FlagAnnotation
	if entry != nil {
		existing = entry.Flags[flag]
	}
	if existing == nil {
		return "", domain.NewError(domain.ErrNotFound, fmt.Sprintf("No annotation found for %s!", flag))
	}

	if index != nil {
		i := *index
		if i < 0 || i >= len(existing.Boxes) {
			return "", domain.NewError(domain.ErrInvalidIndex, fmt.Sprintf("Invalid bounding box index for %s", flag))
		}
		existing.Boxes = append(existing.Boxes[:i:i], existing.Boxes[i+1:]...)
		if len(existing.Boxes) == 0 {
			delete(entry.Flags, flag)
		}
	} else {
		delete(entry.Flags, flag)
	}
	entry.LastUpdated = s.timestamp()

	if err := s.persist(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("Annotation removed for %s!", flag), nil
}

// GetImageAnnotations returns a copy of what email recorded for image, or the
// empty annotation when there is nothing.
func (s *Store) GetImageAnnotations(email, image string) domain.ImageAnnotation {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.image(email, image)
	if entry == nil {
		return domain.NewImageAnnotation()
	}
	return entry.Clone()
}

// Annotations returns a deep copy of every user's annotations
func (s *Store) Annotations() domain.AnnotationSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.annotations.Clone()
}
