package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/lewtec/sinalizador/internal/domain"
)

// Register creates a user with no cursors and an empty annotation set
func (s *Store) Register(ctx context.Context, name, email string) (string, error) {
	if name == "" || email == "" {
		return "", domain.NewError(domain.ErrMissingField, "Name and email are required!")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[email]; ok {
		return "", domain.NewError(domain.ErrDuplicateUser, fmt.Sprintf("User with email %s already exists!", email))
	}

	s.users[email] = &domain.UserRecord{
		Name:             name,
		Email:            email,
		RegistrationDate: s.timestamp(),
	}
	if _, ok := s.annotations[email]; !ok {
		s.annotations[email] = domain.UserAnnotations{}
	}

	if err := s.persist(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("User %s registered successfully!", name), nil
}

// Login looks email up. It never changes anything.
func (s *Store) Login(email string) (string, domain.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[email]
	if !ok || user == nil {
		return "", domain.UserRecord{}, domain.NewError(domain.ErrUserNotFound, "User not found. Please register first.")
	}
	return fmt.Sprintf("Welcome back, %s!", user.Name), user.Clone(), nil
}

// UpdateLastSelectedFlag moves the flag cursor of email. It reports false for
// an unknown user; the error is only set when saving fails.
func (s *Store) UpdateLastSelectedFlag(ctx context.Context, email, flag string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[email]
	if !ok || user == nil {
		return false, nil
	}
	selected := flag
	user.LastSelectedFlag = &selected
	if err := s.persist(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// User returns a copy of the record for email
func (s *Store) User(email string) (domain.UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[email]
	if !ok || user == nil {
		return domain.UserRecord{}, false
	}
	return user.Clone(), true
}

// Users returns copies of every record sorted by email
func (s *Store) Users() []domain.UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := make([]domain.UserRecord, 0, len(s.users))
	for _, user := range s.users {
		if user == nil {
			continue
		}
		ret = append(ret, user.Clone())
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Email < ret[j].Email
	})
	return ret
}
