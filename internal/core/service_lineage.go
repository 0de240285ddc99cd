package core

import (
	"context"
	"slices"

	"landledger/internal/infra/persistence/keyspace"
	"landledger/pkg/domain"
)

// LineageNode is a person with its heirs nested in display order.
type LineageNode = keyspace.LineageNode

// AddFamilyHead creates a person without a parent in the project.
func (s *Service) AddFamilyHead(ctx context.Context, projectID string, person domain.Person) (domain.Person, domain.Result, error) {
	var created domain.Person
	res, err := s.run(ctx, "add_family_head", func(tx domain.Transaction) (string, error) {
		person.ProjectID = projectID
		person.ParentID = nil
		if err := person.Validate(); err != nil {
			return "", err
		}
		var err error
		created, err = tx.CreatePerson(person)
		return created.ID, err
	})
	return created, res, err
}

// AddHeir creates a person under parentID, appended after the parent's
// existing heirs.
func (s *Service) AddHeir(ctx context.Context, parentID string, person domain.Person) (domain.Person, domain.Result, error) {
	var created domain.Person
	res, err := s.run(ctx, "add_heir", func(tx domain.Transaction) (string, error) {
		parent, ok := tx.Snapshot().FindPerson(parentID)
		if !ok {
			return "", notFound(domain.EntityPerson, parentID)
		}
		person.ProjectID = parent.ProjectID
		pid := parentID
		person.ParentID = &pid
		if err := person.Validate(); err != nil {
			return "", err
		}
		var err error
		created, err = tx.CreatePerson(person)
		return created.ID, err
	})
	return created, res, err
}

// UpdatePerson applies mutator to a person. Changing ParentID moves the
// person (with its subtree) under the new parent.
func (s *Service) UpdatePerson(ctx context.Context, id string, mutator func(*domain.Person) error) (domain.Person, domain.Result, error) {
	var updated domain.Person
	res, err := s.run(ctx, "update_person", func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdatePerson(id, validated(mutator))
		return id, err
	})
	return updated, res, err
}

// RemovePerson deletes the person and its whole subtree, detaching it from
// its parent.
func (s *Service) RemovePerson(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "remove_person", func(tx domain.Transaction) (string, error) {
		return id, tx.DeletePerson(id)
	})
}

// AddLandRecord appends a land record to a person.
func (s *Service) AddLandRecord(ctx context.Context, personID string, record domain.SurveyRecord) (domain.SurveyRecord, domain.Result, error) {
	var created domain.SurveyRecord
	res, err := s.run(ctx, "add_land_record", func(tx domain.Transaction) (string, error) {
		if err := record.Validate(); err != nil {
			return personID, err
		}
		updated, err := tx.UpdatePerson(personID, func(p *domain.Person) error {
			p.LandRecords = append(p.LandRecords, record)
			return nil
		})
		if err != nil {
			return personID, err
		}
		created = updated.LandRecords[len(updated.LandRecords)-1]
		return personID, nil
	})
	return created, res, err
}

// UpdateLandRecord applies mutator to one of a person's land records.
func (s *Service) UpdateLandRecord(ctx context.Context, personID, recordID string, mutator func(*domain.SurveyRecord) error) (domain.SurveyRecord, domain.Result, error) {
	var updated domain.SurveyRecord
	res, err := s.run(ctx, "update_land_record", func(tx domain.Transaction) (string, error) {
		_, err := tx.UpdatePerson(personID, func(p *domain.Person) error {
			idx := landRecordIndex(p.LandRecords, recordID)
			if idx < 0 {
				return notFound(domain.EntityPerson, personID+"/land_records/"+recordID)
			}
			rec := p.LandRecords[idx]
			if err := mutator(&rec); err != nil {
				return err
			}
			rec.ID = recordID
			if err := rec.Validate(); err != nil {
				return err
			}
			p.LandRecords[idx] = rec
			updated = rec
			return nil
		})
		return personID, err
	})
	return updated, res, err
}

// RemoveLandRecord deletes one land record from a person.
func (s *Service) RemoveLandRecord(ctx context.Context, personID, recordID string) (domain.Result, error) {
	return s.run(ctx, "remove_land_record", func(tx domain.Transaction) (string, error) {
		_, err := tx.UpdatePerson(personID, func(p *domain.Person) error {
			idx := landRecordIndex(p.LandRecords, recordID)
			if idx < 0 {
				return notFound(domain.EntityPerson, personID+"/land_records/"+recordID)
			}
			p.LandRecords = slices.Delete(p.LandRecords, idx, idx+1)
			return nil
		})
		return personID, err
	})
}

func landRecordIndex(records []domain.SurveyRecord, id string) int {
	return slices.IndexFunc(records, func(r domain.SurveyRecord) bool { return r.ID == id })
}

// GetPerson returns a person by id.
func (s *Service) GetPerson(ctx context.Context, id string) (domain.Person, error) {
	var person domain.Person
	err := s.read(ctx, "get_person", func(v domain.TransactionView) error {
		var ok bool
		if person, ok = v.FindPerson(id); !ok {
			return notFound(domain.EntityPerson, id)
		}
		return nil
	})
	return person, err
}

// FamilyHeads returns the project's family heads in creation order.
func (s *Service) FamilyHeads(ctx context.Context, projectID string) ([]domain.Person, error) {
	var heads []domain.Person
	err := s.read(ctx, "family_heads", func(v domain.TransactionView) error {
		if _, ok := v.FindProject(projectID); !ok {
			return notFound(domain.EntityProject, projectID)
		}
		for _, p := range v.ListPersons(projectID) {
			if p.IsFamilyHead() {
				heads = append(heads, p)
			}
		}
		return nil
	})
	return heads, err
}

// Lineage returns the project's lineage forest: family heads in creation
// order, heirs nested in their parent's heir order.
func (s *Service) Lineage(ctx context.Context, projectID string) ([]LineageNode, error) {
	var forest []LineageNode
	err := s.read(ctx, "lineage", func(v domain.TransactionView) error {
		if _, ok := v.FindProject(projectID); !ok {
			return notFound(domain.EntityProject, projectID)
		}
		persons := make(map[string]domain.Person)
		for _, p := range v.ListPersons(projectID) {
			persons[p.ID] = p
		}
		forest = keyspace.LineageTrees(persons)[projectID]
		return nil
	})
	return forest, err
}
