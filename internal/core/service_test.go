package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"landledger/pkg/domain"
)

func TestCreateProjectRequiresName(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.CreateProject(context.Background(), domain.Project{Location: "Hosur"})
	var verr domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
	projects, err := svc.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(projects) != 0 {
		t.Fatalf("expected nothing stored, got %d", len(projects))
	}
}

func TestProjectLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	project := mustProject(t, svc, "Ring Road")

	updated, _, err := svc.UpdateProject(ctx, project.ID, func(p *domain.Project) error {
		p.Location = "Krishnagiri"
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Location != "Krishnagiri" || updated.Name != "Ring Road" {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if _, _, err := svc.UpdateProject(ctx, project.ID, func(p *domain.Project) error {
		p.Name = ""
		return nil
	}); err == nil {
		t.Fatalf("expected validation error clearing the name")
	}

	got, err := svc.GetProject(ctx, project.ID)
	if err != nil || got.Location != "Krishnagiri" {
		t.Fatalf("get: %+v %v", got, err)
	}

	if _, err := svc.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = svc.GetProject(ctx, project.ID)
	var nf ErrNotFound
	if !errors.As(err, &nf) || nf.Entity != domain.EntityProject {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	project := mustProject(t, svc, "Cascade")
	head := mustHead(t, svc, project.ID, "Muniyappa")
	mustHeir(t, svc, head.ID, "Lakshmi")
	if _, _, err := svc.AddNote(ctx, domain.Note{ProjectID: project.ID, SurveyNumber: "12/3", Body: "fence"}); err != nil {
		t.Fatalf("note: %v", err)
	}
	if _, _, err := svc.RecordTransaction(ctx, domain.TransactionRecord{ProjectID: project.ID, Owner: "Muniyappa", Amount: decimal.NewFromInt(5000)}); err != nil {
		t.Fatalf("transaction: %v", err)
	}
	user, _, err := svc.CreateUser(ctx, domain.User{Name: "Ravi", Email: "ravi@example.com", Role: domain.RoleClient, ProjectIDs: []string{project.ID}})
	if err != nil {
		t.Fatalf("user: %v", err)
	}

	if _, err := svc.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, err := svc.GetPerson(ctx, head.ID); err == nil {
		t.Fatalf("expected persons removed with the project")
	}
	notes, _ := svc.ListNotes(ctx, project.ID, "")
	txs, _ := svc.ListTransactions(ctx, project.ID)
	if len(notes) != 0 || len(txs) != 0 {
		t.Fatalf("expected project records removed, notes=%d transactions=%d", len(notes), len(txs))
	}
	reloaded, err := svc.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(reloaded.ProjectIDs) != 0 {
		t.Fatalf("expected assignment dropped, got %v", reloaded.ProjectIDs)
	}
}

func TestLineageTreeOperations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	project := mustProject(t, svc, "Lineage")
	head := mustHead(t, svc, project.ID, "Venkatappa")
	son := mustHeir(t, svc, head.ID, "Krishna")
	daughter := mustHeir(t, svc, head.ID, "Gowramma")
	grandson := mustHeir(t, svc, son.ID, "Naveen")
	other := mustHead(t, svc, project.ID, "Chikkanna")

	forest, err := svc.Lineage(ctx, project.ID)
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if len(forest) != 2 || forest[0].ID != head.ID || forest[1].ID != other.ID {
		t.Fatalf("unexpected family heads %+v", forest)
	}
	heirs := forest[0].Heirs
	if len(heirs) != 2 || heirs[0].ID != son.ID || heirs[1].ID != daughter.ID {
		t.Fatalf("expected heirs in insertion order, got %+v", heirs)
	}
	if len(heirs[0].Heirs) != 1 || heirs[0].Heirs[0].ID != grandson.ID {
		t.Fatalf("expected grandson nested under son")
	}

	heads, err := svc.FamilyHeads(ctx, project.ID)
	if err != nil || len(heads) != 2 {
		t.Fatalf("family heads: %v %v", heads, err)
	}

	if _, err := svc.RemovePerson(ctx, son.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := svc.GetPerson(ctx, grandson.ID); err == nil {
		t.Fatalf("expected grandson removed with subtree")
	}
	parent, err := svc.GetPerson(ctx, head.ID)
	if err != nil {
		t.Fatalf("get head: %v", err)
	}
	if len(parent.HeirIDs) != 1 || parent.HeirIDs[0] != daughter.ID {
		t.Fatalf("expected son detached, heirs=%v", parent.HeirIDs)
	}
	if _, err := svc.GetPerson(ctx, other.ID); err != nil {
		t.Fatalf("expected unrelated head kept: %v", err)
	}
}

func TestAddHeirUnknownParent(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.AddHeir(context.Background(), "missing", domain.Person{Name: "Orphan"})
	var nf ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFamilyHeadRequiresExistingProject(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.AddFamilyHead(context.Background(), "ghost", domain.Person{Name: "Nobody"})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected project scope violation, got %v", err)
	}
	if violation.Result.Violations[0].Rule != "project_scope" {
		t.Fatalf("unexpected rule %+v", violation.Result.Violations)
	}
}

func TestMovingPersonUnderOwnHeirIsBlocked(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	project := mustProject(t, svc, "Cycle")
	head := mustHead(t, svc, project.ID, "Root")
	child := mustHeir(t, svc, head.ID, "Child")

	_, _, err := svc.UpdatePerson(ctx, head.ID, func(p *domain.Person) error {
		p.ParentID = strPtr(child.ID)
		return nil
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected lineage violation, got %v", err)
	}
	got, _ := svc.GetPerson(ctx, head.ID)
	if !got.IsFamilyHead() {
		t.Fatalf("expected head unchanged after blocked move")
	}
}

func TestLandRecordOperations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	project := mustProject(t, svc, "Land")
	head := mustHead(t, svc, project.ID, "Owner")

	if _, _, err := svc.AddLandRecord(ctx, head.ID, domain.SurveyRecord{SurveyNumber: "45/2", Acres: "-1"}); err == nil {
		t.Fatalf("expected negative acres rejected")
	}
	rec, _, err := svc.AddLandRecord(ctx, head.ID, domain.SurveyRecord{SurveyNumber: "45/2", Acres: "1", Cents: "25", Classification: domain.LandDry})
	if err != nil {
		t.Fatalf("add land record: %v", err)
	}
	if rec.ID == "" {
		t.Fatalf("expected land record id assigned")
	}
	updated, _, err := svc.UpdateLandRecord(ctx, head.ID, rec.ID, func(r *domain.SurveyRecord) error {
		r.Cents = "50"
		return nil
	})
	if err != nil {
		t.Fatalf("update land record: %v", err)
	}
	extent, err := updated.Extent()
	if err != nil || !extent.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("unexpected extent %s (%v)", extent, err)
	}
	if _, _, err := svc.UpdateLandRecord(ctx, head.ID, "nope", func(*domain.SurveyRecord) error { return nil }); err == nil {
		t.Fatalf("expected missing land record error")
	}
	if _, err := svc.RemoveLandRecord(ctx, head.ID, rec.ID); err != nil {
		t.Fatalf("remove land record: %v", err)
	}
	person, _ := svc.GetPerson(ctx, head.ID)
	if len(person.LandRecords) != 0 {
		t.Fatalf("expected land record removed, got %+v", person.LandRecords)
	}
}

func TestSurveyOverlapWarns(t *testing.T) {
	ctx := context.Background()
	log := &captureLogger{}
	svc := newTestService(t, WithLogger(log))
	project := mustProject(t, svc, "Overlap")
	a := mustHead(t, svc, project.ID, "A")
	b := mustHead(t, svc, project.ID, "B")
	if _, _, err := svc.AddLandRecord(ctx, a.ID, domain.SurveyRecord{SurveyNumber: "7"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, res, err := svc.AddLandRecord(ctx, b.ID, domain.SurveyRecord{SurveyNumber: "7"})
	if err != nil {
		t.Fatalf("warning must not block: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Rule != "survey_overlap" || res.Violations[0].Severity != domain.SeverityWarn {
		t.Fatalf("expected overlap warning, got %+v", res.Violations)
	}
	if !log.has("w:rule warning") {
		t.Fatalf("expected warning logged, got %v", log.calls)
	}
}

func TestAcquisitionStatusStages(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	project := mustProject(t, svc, "Acquisition")

	status, _, err := svc.SetAcquisitionStatus(ctx, project.ID, "101", nil)
	if err != nil {
		t.Fatalf("create status: %v", err)
	}
	if status.Stage() != domain.StageFinancials || status.Legal.QueryStatus != domain.QueryOpen {
		t.Fatalf("expected defaults, got %+v", status)
	}
	meeting := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	next, _, err := svc.SetAcquisitionStatus(ctx, project.ID, "101", func(s *domain.AcquisitionStatus) error {
		s.Financials = domain.Financials{AdvancePayment: domain.AdvancePaid, AgreementStatus: domain.AgreementSigned}
		s.Operations.MeetingDate = &meeting
		s.Operations.DocumentCollection = domain.DocumentsCollected
		s.SurveyNumber = "changed"
		return nil
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if next.ID != status.ID || next.SurveyNumber != "101" {
		t.Fatalf("expected same record keyed by survey, got %+v", next)
	}
	if next.Stage() != domain.StageLegal {
		t.Fatalf("expected legal stage, got %s", next.Stage())
	}
	if _, _, err := svc.SetAcquisitionStatus(ctx, project.ID, "102", func(s *domain.AcquisitionStatus) error {
		s.Legal.QueryStatus = "lost"
		return nil
	}); err == nil {
		t.Fatalf("expected enum validation error")
	}

	counts, err := svc.StageCounts(ctx, project.ID)
	if err != nil {
		t.Fatalf("stage counts: %v", err)
	}
	if counts[domain.StageLegal] != 1 || counts[domain.StageFinancials] != 0 || len(counts) != len(domain.AcquisitionStages) {
		t.Fatalf("unexpected counts %v", counts)
	}
	got, err := svc.GetAcquisitionStatus(ctx, project.ID, "101")
	if err != nil || got.ID != status.ID {
		t.Fatalf("get status: %+v %v", got, err)
	}
}

func TestLedgerIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	project := mustProject(t, svc, "Ledger")
	if _, _, err := svc.RecordTransaction(ctx, domain.TransactionRecord{ProjectID: project.ID, Owner: "X", Amount: decimal.Zero}); err == nil {
		t.Fatalf("expected non-positive amount rejected")
	}
	rec, _, err := svc.RecordTransaction(ctx, domain.TransactionRecord{ProjectID: project.ID, Owner: "X", Mode: domain.ModeCheque, Year: 2023, Amount: decimal.RequireFromString("1250.50")})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	_, err = svc.Store().RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateTransactionRecord(rec.ID, func(r *domain.TransactionRecord) error {
			r.Amount = decimal.NewFromInt(1)
			return nil
		})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) || violation.Result.Violations[0].Rule != "ledger_immutability" {
		t.Fatalf("expected immutability violation, got %v", err)
	}
	_, err = svc.Store().RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteTransactionRecord(rec.ID)
	})
	if !errors.As(err, &violation) {
		t.Fatalf("expected delete blocked, got %v", err)
	}

	fin, _, err := svc.RecordFinancialTransaction(ctx, domain.FinancialTransaction{ProjectID: project.ID, SurveyNumber: "9", Payee: "Y", Amount: decimal.NewFromInt(900)})
	if err != nil {
		t.Fatalf("record financial: %v", err)
	}
	if fin.PaidOn.IsZero() {
		t.Fatalf("expected paid-on defaulted")
	}
	list, err := svc.ListFinancialTransactions(ctx, project.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("list financial: %v %v", list, err)
	}
}

func TestTasksAndReminders(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, WithClock(stubClock{t: now}))
	project := mustProject(t, svc, "Tasks")
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	due, _, err := svc.AddTask(ctx, domain.Task{ProjectID: project.ID, SurveyNumber: "1", Title: "call owner", Reminder: true, DueAt: &past})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	if _, _, err := svc.AddTask(ctx, domain.Task{ProjectID: project.ID, SurveyNumber: "2", Title: "later", Reminder: true, DueAt: &future}); err != nil {
		t.Fatalf("add task: %v", err)
	}
	if _, _, err := svc.AddTask(ctx, domain.Task{ProjectID: project.ID, SurveyNumber: "1", Title: "quiet", DueAt: &past}); err != nil {
		t.Fatalf("add task: %v", err)
	}
	if _, _, err := svc.AddTask(ctx, domain.Task{ProjectID: project.ID, SurveyNumber: "1"}); err == nil {
		t.Fatalf("expected title required")
	}
	if due.CreatedAt != now {
		t.Fatalf("expected store timestamps from service clock, got %v", due.CreatedAt)
	}

	reminders, err := svc.DueReminders(ctx, project.ID, now)
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if len(reminders) != 1 || reminders[0].ID != due.ID {
		t.Fatalf("expected one due reminder, got %+v", reminders)
	}
	summary, err := svc.ProjectSummary(ctx, project.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.OpenTasks != 3 || summary.DueReminders != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	done, _, err := svc.CompleteTask(ctx, due.ID)
	if err != nil || !done.Completed {
		t.Fatalf("complete: %+v %v", done, err)
	}
	reminders, _ = svc.DueReminders(ctx, project.ID, now)
	if len(reminders) != 0 {
		t.Fatalf("expected completed task dropped from reminders")
	}
	tasks, _ := svc.ListTasks(ctx, project.ID, "1")
	if len(tasks) != 2 {
		t.Fatalf("expected tasks filtered by survey, got %d", len(tasks))
	}
	if _, err := svc.DeleteTask(ctx, due.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
}

func TestNotesAndLegalNotes(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	project := mustProject(t, svc, "Notes")
	note, _, err := svc.AddNote(ctx, domain.Note{ProjectID: project.ID, SurveyNumber: "3", Body: "visited"})
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if _, _, err := svc.UpdateNote(ctx, note.ID, func(n *domain.Note) error {
		n.Body = "visited twice"
		n.ProjectID = "elsewhere"
		return nil
	}); err != nil {
		t.Fatalf("update note: %v", err)
	}
	notes, _ := svc.ListNotes(ctx, project.ID, "3")
	if len(notes) != 1 || notes[0].Body != "visited twice" || notes[0].ProjectID != project.ID {
		t.Fatalf("unexpected notes %+v", notes)
	}
	if _, err := svc.DeleteNote(ctx, note.ID); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	if _, err := svc.DeleteNote(ctx, note.ID); err == nil {
		t.Fatalf("expected second delete to fail")
	}

	legal, _, err := svc.AddLegalNote(ctx, domain.LegalNote{ProjectID: project.ID, SurveyNumber: "3", Author: "Adv. Rao", Body: "encumbrance pending"})
	if err != nil {
		t.Fatalf("add legal note: %v", err)
	}
	if _, _, err := svc.UpdateLegalNote(ctx, legal.ID, func(n *domain.LegalNote) error {
		n.Body = ""
		return nil
	}); err == nil {
		t.Fatalf("expected body required")
	}
	legalNotes, _ := svc.ListLegalNotes(ctx, project.ID, "3")
	if len(legalNotes) != 1 || legalNotes[0].Body != "encumbrance pending" {
		t.Fatalf("unexpected legal notes %+v", legalNotes)
	}
	if _, err := svc.DeleteLegalNote(ctx, legal.ID); err != nil {
		t.Fatalf("delete legal note: %v", err)
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	project := mustProject(t, svc, "Users")
	user, _, err := svc.CreateUser(ctx, domain.User{Name: "Asha", Email: "Asha@Example.com", Role: domain.RoleLawyer})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Status != domain.UserActive {
		t.Fatalf("expected active default, got %s", user.Status)
	}
	if _, _, err := svc.CreateUser(ctx, domain.User{Name: "Dup", Email: "asha@example.com", Role: domain.RoleClient}); err == nil {
		t.Fatalf("expected duplicate email rejected")
	}
	if _, _, err := svc.CreateUser(ctx, domain.User{Name: "Bad", Email: "not-an-email", Role: domain.RoleClient}); err == nil {
		t.Fatalf("expected invalid email rejected")
	}
	if _, _, err := svc.CreateUser(ctx, domain.User{Name: "Bad", Email: "b@example.com", Role: "emperor"}); err == nil {
		t.Fatalf("expected unknown role rejected")
	}

	assigned, _, err := svc.AssignUserProject(ctx, user.ID, project.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	assigned, _, _ = svc.AssignUserProject(ctx, user.ID, project.ID)
	if len(assigned.ProjectIDs) != 1 {
		t.Fatalf("expected single assignment, got %v", assigned.ProjectIDs)
	}
	if _, _, err := svc.AssignUserProject(ctx, user.ID, "ghost"); err == nil {
		t.Fatalf("expected unknown project rejected")
	}
	found, err := svc.UserByEmail(ctx, " ASHA@example.com ")
	if err != nil || found.ID != user.ID {
		t.Fatalf("user by email: %+v %v", found, err)
	}
	unassigned, _, err := svc.UnassignUserProject(ctx, user.ID, project.ID)
	if err != nil || len(unassigned.ProjectIDs) != 0 {
		t.Fatalf("unassign: %+v %v", unassigned, err)
	}
	if _, _, err := svc.UpdateUser(ctx, user.ID, func(u *domain.User) error {
		u.Status = domain.UserInactive
		return nil
	}); err != nil {
		t.Fatalf("update user: %v", err)
	}
	if _, err := svc.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	users, _ := svc.ListUsers(ctx)
	if len(users) != 0 {
		t.Fatalf("expected no users left")
	}
}

func TestProjectSummaryTotals(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	project := mustProject(t, svc, "Summary")
	head, _, err := svc.AddFamilyHead(ctx, project.ID, domain.Person{Name: "H", LandRecords: []domain.SurveyRecord{
		{SurveyNumber: "1", Acres: "1", Cents: "50"},
		{SurveyNumber: "2", Acres: "2"},
	}})
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	mustHeir(t, svc, head.ID, "Heir")
	if _, _, err := svc.SetAcquisitionStatus(ctx, project.ID, "1", nil); err != nil {
		t.Fatalf("status: %v", err)
	}
	if _, _, err := svc.RecordTransaction(ctx, domain.TransactionRecord{ProjectID: project.ID, Owner: "H", Amount: decimal.NewFromInt(100)}); err != nil {
		t.Fatalf("tx: %v", err)
	}
	if _, _, err := svc.RecordTransaction(ctx, domain.TransactionRecord{ProjectID: project.ID, Owner: "H", Amount: decimal.RequireFromString("0.5")}); err != nil {
		t.Fatalf("tx: %v", err)
	}

	sum, err := svc.ProjectSummary(ctx, project.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Persons != 2 || sum.FamilyHeads != 1 || sum.LandRecords != 2 || sum.SurveyNumbers != 2 {
		t.Fatalf("unexpected counts %+v", sum)
	}
	if !sum.TotalExtent.Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("unexpected extent %s", sum.TotalExtent)
	}
	if !sum.TransactionTotal.Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("unexpected transaction total %s", sum.TransactionTotal)
	}
	if sum.Stages[domain.StageFinancials] != 1 {
		t.Fatalf("unexpected stages %v", sum.Stages)
	}
	if _, err := svc.ProjectSummary(ctx, "missing"); err == nil {
		t.Fatalf("expected missing project error")
	}
}
