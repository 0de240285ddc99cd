package core

import (
	"context"
	"time"

	"landledger/pkg/domain"
)

// AddNote attaches a note to a survey number.
func (s *Service) AddNote(ctx context.Context, note domain.Note) (domain.Note, domain.Result, error) {
	var created domain.Note
	res, err := s.run(ctx, "add_note", func(tx domain.Transaction) (string, error) {
		if err := note.Validate(); err != nil {
			return "", err
		}
		var err error
		created, err = tx.CreateNote(note)
		return created.ID, err
	})
	return created, res, err
}

// UpdateNote applies mutator to a note.
func (s *Service) UpdateNote(ctx context.Context, id string, mutator func(*domain.Note) error) (domain.Note, domain.Result, error) {
	var updated domain.Note
	res, err := s.run(ctx, "update_note", func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateNote(id, validated(mutator))
		return id, err
	})
	return updated, res, err
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_note", func(tx domain.Transaction) (string, error) {
		return id, tx.DeleteNote(id)
	})
}

// ListNotes returns notes of a survey number in creation order. An empty
// survey number lists the whole project.
func (s *Service) ListNotes(ctx context.Context, projectID, surveyNumber string) ([]domain.Note, error) {
	var out []domain.Note
	err := s.read(ctx, "list_notes", func(v domain.TransactionView) error {
		out = v.ListNotes(projectID, surveyNumber)
		return nil
	})
	return out, err
}

// AddTask attaches a task to a survey number.
func (s *Service) AddTask(ctx context.Context, task domain.Task) (domain.Task, domain.Result, error) {
	var created domain.Task
	res, err := s.run(ctx, "add_task", func(tx domain.Transaction) (string, error) {
		if err := task.Validate(); err != nil {
			return "", err
		}
		var err error
		created, err = tx.CreateTask(task)
		return created.ID, err
	})
	return created, res, err
}

// UpdateTask applies mutator to a task.
func (s *Service) UpdateTask(ctx context.Context, id string, mutator func(*domain.Task) error) (domain.Task, domain.Result, error) {
	var updated domain.Task
	res, err := s.run(ctx, "update_task", func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateTask(id, validated(mutator))
		return id, err
	})
	return updated, res, err
}

// CompleteTask marks a task done.
func (s *Service) CompleteTask(ctx context.Context, id string) (domain.Task, domain.Result, error) {
	var updated domain.Task
	res, err := s.run(ctx, "complete_task", func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateTask(id, func(t *domain.Task) error {
			t.Completed = true
			return nil
		})
		return id, err
	})
	return updated, res, err
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_task", func(tx domain.Transaction) (string, error) {
		return id, tx.DeleteTask(id)
	})
}

// ListTasks returns tasks of a survey number in creation order.
func (s *Service) ListTasks(ctx context.Context, projectID, surveyNumber string) ([]domain.Task, error) {
	var out []domain.Task
	err := s.read(ctx, "list_tasks", func(v domain.TransactionView) error {
		out = v.ListTasks(projectID, surveyNumber)
		return nil
	})
	return out, err
}

// DueReminders returns open tasks with a reminder due at or before at. An
// empty projectID covers every project.
func (s *Service) DueReminders(ctx context.Context, projectID string, at time.Time) ([]domain.Task, error) {
	var out []domain.Task
	err := s.read(ctx, "due_reminders", func(v domain.TransactionView) error {
		for _, t := range v.ListTasks(projectID, "") {
			if reminderDue(t, at) {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

// AddLegalNote attaches a lawyer's note to a survey number.
func (s *Service) AddLegalNote(ctx context.Context, note domain.LegalNote) (domain.LegalNote, domain.Result, error) {
	var created domain.LegalNote
	res, err := s.run(ctx, "add_legal_note", func(tx domain.Transaction) (string, error) {
		if err := note.Validate(); err != nil {
			return "", err
		}
		var err error
		created, err = tx.CreateLegalNote(note)
		return created.ID, err
	})
	return created, res, err
}

// UpdateLegalNote applies mutator to a legal note.
func (s *Service) UpdateLegalNote(ctx context.Context, id string, mutator func(*domain.LegalNote) error) (domain.LegalNote, domain.Result, error) {
	var updated domain.LegalNote
	res, err := s.run(ctx, "update_legal_note", func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateLegalNote(id, validated(mutator))
		return id, err
	})
	return updated, res, err
}

// DeleteLegalNote removes a legal note.
func (s *Service) DeleteLegalNote(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_legal_note", func(tx domain.Transaction) (string, error) {
		return id, tx.DeleteLegalNote(id)
	})
}

// ListLegalNotes returns legal notes of a survey number in creation order.
func (s *Service) ListLegalNotes(ctx context.Context, projectID, surveyNumber string) ([]domain.LegalNote, error) {
	var out []domain.LegalNote
	err := s.read(ctx, "list_legal_notes", func(v domain.TransactionView) error {
		out = v.ListLegalNotes(projectID, surveyNumber)
		return nil
	})
	return out, err
}
