package core

import (
	"context"
	"slices"
	"strings"

	"landledger/pkg/domain"
)

// CreateUser registers a user. Emails are unique regardless of case.
func (s *Service) CreateUser(ctx context.Context, user domain.User) (domain.User, domain.Result, error) {
	var created domain.User
	res, err := s.run(ctx, "create_user", func(tx domain.Transaction) (string, error) {
		if err := user.Validate(); err != nil {
			return "", err
		}
		var err error
		created, err = tx.CreateUser(user)
		return created.ID, err
	})
	return created, res, err
}

// UpdateUser applies mutator to a user.
func (s *Service) UpdateUser(ctx context.Context, id string, mutator func(*domain.User) error) (domain.User, domain.Result, error) {
	var updated domain.User
	res, err := s.run(ctx, "update_user", func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateUser(id, validated(mutator))
		return id, err
	})
	return updated, res, err
}

// DeleteUser removes a user.
func (s *Service) DeleteUser(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_user", func(tx domain.Transaction) (string, error) {
		return id, tx.DeleteUser(id)
	})
}

// AssignUserProject grants a user visibility of a project. Assigning twice
// is a no-op.
func (s *Service) AssignUserProject(ctx context.Context, userID, projectID string) (domain.User, domain.Result, error) {
	var updated domain.User
	res, err := s.run(ctx, "assign_user_project", func(tx domain.Transaction) (string, error) {
		if _, ok := tx.Snapshot().FindProject(projectID); !ok {
			return userID, notFound(domain.EntityProject, projectID)
		}
		var err error
		updated, err = tx.UpdateUser(userID, func(u *domain.User) error {
			if !slices.Contains(u.ProjectIDs, projectID) {
				u.ProjectIDs = append(u.ProjectIDs, projectID)
			}
			return nil
		})
		return userID, err
	})
	return updated, res, err
}

// UnassignUserProject revokes a user's visibility of a project.
func (s *Service) UnassignUserProject(ctx context.Context, userID, projectID string) (domain.User, domain.Result, error) {
	var updated domain.User
	res, err := s.run(ctx, "unassign_user_project", func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateUser(userID, func(u *domain.User) error {
			u.ProjectIDs = slices.DeleteFunc(u.ProjectIDs, func(id string) bool { return id == projectID })
			return nil
		})
		return userID, err
	})
	return updated, res, err
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (domain.User, error) {
	var user domain.User
	err := s.read(ctx, "get_user", func(v domain.TransactionView) error {
		var ok bool
		if user, ok = v.FindUser(id); !ok {
			return notFound(domain.EntityUser, id)
		}
		return nil
	})
	return user, err
}

// ListUsers returns all users in creation order.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	err := s.read(ctx, "list_users", func(v domain.TransactionView) error {
		out = v.ListUsers()
		return nil
	})
	return out, err
}

// UserByEmail looks a user up by email, ignoring case.
func (s *Service) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	var user domain.User
	email = strings.TrimSpace(email)
	err := s.read(ctx, "user_by_email", func(v domain.TransactionView) error {
		for _, u := range v.ListUsers() {
			if strings.EqualFold(u.Email, email) {
				user = u
				return nil
			}
		}
		return notFound(domain.EntityUser, email)
	})
	return user, err
}
