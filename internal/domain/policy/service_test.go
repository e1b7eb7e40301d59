package policy

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carepass/carepass/internal/domain/patient"
	"github.com/carepass/carepass/internal/platform/mirror"
	"github.com/carepass/carepass/internal/platform/phi"
	"github.com/carepass/carepass/internal/platform/qr"
	"github.com/carepass/carepass/pkg/pagination"
)

type mockRepo struct {
	policies   map[string]*Policy
	qrRecords  []*QRRecord
	nfcRecords []*NFCRecord

	failQRRecord bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{policies: make(map[string]*Policy)}
}

func (m *mockRepo) CreatePolicy(_ context.Context, p *Policy) error {
	if _, ok := m.policies[p.PolicyNumber]; ok {
		return ErrDuplicatePolicy
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.policies[p.PolicyNumber] = p
	return nil
}

func (m *mockRepo) ListByProvider(_ context.Context, providerID uuid.UUID, _ pagination.Params) ([]PolicyView, error) {
	var out []PolicyView
	for _, p := range m.policies {
		if p.ProviderID == providerID {
			out = append(out, PolicyView{Policy: *p})
		}
	}
	return out, nil
}

func (m *mockRepo) CreateQRRecord(_ context.Context, rec *QRRecord) error {
	if m.failQRRecord {
		return fmt.Errorf("qr record insert failed")
	}
	m.qrRecords = append(m.qrRecords, rec)
	return nil
}

func (m *mockRepo) CreateNFCRecord(_ context.Context, rec *NFCRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	m.nfcRecords = append(m.nfcRecords, rec)
	return nil
}

type mockDirectory struct {
	patients map[uuid.UUID]*patient.Patient
	created  int
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{patients: make(map[uuid.UUID]*patient.Patient)}
}

func (m *mockDirectory) Resolve(_ context.Context, identifier string) (*patient.Patient, error) {
	for _, p := range m.patients {
		if p.ID.String() == identifier || (p.Email != nil && *p.Email == identifier) {
			return p, nil
		}
	}
	for _, r := range identifier {
		if r == '@' {
			email := identifier
			p := &patient.Patient{
				ID:       uuid.New(),
				Email:    &email,
				FullName: patient.PlaceholderName,
				DOB:      patient.PlaceholderDOB,
			}
			m.patients[p.ID] = p
			m.created++
			return p, nil
		}
	}
	return nil, patient.ErrNotFound
}

func (m *mockDirectory) SetQRCode(_ context.Context, id uuid.UUID, path string) error {
	p, ok := m.patients[id]
	if !ok {
		return patient.ErrNotFound
	}
	p.QRCode = &path
	return nil
}

func (m *mockDirectory) SetNFCBinding(_ context.Context, id uuid.UUID, tagID, payload string) error {
	p, ok := m.patients[id]
	if !ok {
		return patient.ErrNotFound
	}
	p.NFCID = &tagID
	p.GeneratedNFCID = &payload
	return nil
}

type mockSeeder struct {
	counts map[uuid.UUID]int
	seeded []uuid.UUID
}

func newMockSeeder() *mockSeeder {
	return &mockSeeder{counts: make(map[uuid.UUID]int)}
}

func (m *mockSeeder) CountForPatient(_ context.Context, patientID uuid.UUID) (int, error) {
	return m.counts[patientID], nil
}

func (m *mockSeeder) SeedBaseline(_ context.Context, patientID uuid.UUID, _ string, _ uuid.UUID) error {
	m.seeded = append(m.seeded, patientID)
	m.counts[patientID]++
	return nil
}

type passRunner struct{}

func (passRunner) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type captureNotifier struct {
	policies []mirror.PolicyEvent
}

func (c *captureNotifier) PolicyProvisioned(_ context.Context, ev mirror.PolicyEvent) {
	c.policies = append(c.policies, ev)
}

func (c *captureNotifier) RecordWritten(context.Context, mirror.RecordEvent) {}

type fixture struct {
	repo     *mockRepo
	dir      *mockDirectory
	seeder   *mockSeeder
	images   *qr.MemStore
	notifier *captureNotifier
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("key: %v", err)
	}
	cipher, err := phi.NewEncryptor(key)
	if err != nil {
		t.Fatalf("encryptor: %v", err)
	}

	f := &fixture{
		repo:     newMockRepo(),
		dir:      newMockDirectory(),
		seeder:   newMockSeeder(),
		images:   qr.NewMemStore(),
		notifier: &captureNotifier{},
	}
	f.svc = NewService(f.repo, passRunner{}, f.dir, f.seeder, cipher, f.images, f.notifier, zerolog.Nop())
	return f
}

func validInput(identifier string) ProvisionInput {
	return ProvisionInput{
		PatientIdentifier: identifier,
		ProviderID:        uuid.New(),
		PolicyNumber:      "POL-1001",
		CoverageAmount:    500000,
		ValidUntil:        "2027-12-31",
	}
}

func TestProvision_ExistingPatient(t *testing.T) {
	f := newFixture(t)
	email := "covered@test.com"
	existing := &patient.Patient{ID: uuid.New(), Email: &email, FullName: "Covered", DOB: "1980-01-01"}
	f.dir.patients[existing.ID] = existing
	f.seeder.counts[existing.ID] = 3

	pol, err := f.svc.Provision(context.Background(), validInput(email))
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if pol.PatientID != existing.ID {
		t.Errorf("policy bound to %s, want %s", pol.PatientID, existing.ID)
	}
	if pol.Status != StatusActive {
		t.Errorf("status %q, want %q", pol.Status, StatusActive)
	}
	if len(f.seeder.seeded) != 0 {
		t.Error("patient with history must not get a baseline record")
	}
	if f.images.Len() != 1 {
		t.Errorf("expected 1 qr image, got %d", f.images.Len())
	}
	if existing.QRCode == nil {
		t.Error("patient qr code not set")
	}
	if existing.NFCID == nil {
		t.Fatal("patient nfc tag not bound")
	}
	if ok, _ := regexp.MatchString(`^[0-9A-F]{8}$`, *existing.NFCID); !ok {
		t.Errorf("tag id %q is not 4 bytes of uppercase hex", *existing.NFCID)
	}
	if len(f.notifier.policies) != 1 {
		t.Fatalf("expected 1 mirror event, got %d", len(f.notifier.policies))
	}
	if f.notifier.policies[0].PolicyID != pol.ID.String() {
		t.Errorf("mirror event policy id %q", f.notifier.policies[0].PolicyID)
	}
}

func TestProvision_NewPatientGetsBaseline(t *testing.T) {
	f := newFixture(t)

	pol, err := f.svc.Provision(context.Background(), validInput("fresh@test.com"))
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if f.dir.created != 1 {
		t.Errorf("expected 1 auto-registered patient, got %d", f.dir.created)
	}
	if len(f.seeder.seeded) != 1 || f.seeder.seeded[0] != pol.PatientID {
		t.Errorf("baseline not seeded for new patient: %v", f.seeder.seeded)
	}
}

func TestProvision_DuplicatePolicyNumber(t *testing.T) {
	f := newFixture(t)
	email := "covered@test.com"
	existing := &patient.Patient{ID: uuid.New(), Email: &email, FullName: "Covered", DOB: "1980-01-01"}
	f.dir.patients[existing.ID] = existing
	f.repo.policies["POL-1001"] = &Policy{ID: uuid.New(), PolicyNumber: "POL-1001"}

	_, err := f.svc.Provision(context.Background(), validInput(email))
	if !errors.Is(err, ErrDuplicatePolicy) {
		t.Fatalf("expected ErrDuplicatePolicy, got %v", err)
	}
	if f.images.Len() != 0 {
		t.Error("no image should survive a failed provision")
	}
	if len(f.notifier.policies) != 0 {
		t.Error("failed provision must not reach the mirror")
	}
}

func TestProvision_PatientNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Provision(context.Background(), validInput(uuid.NewString()))
	if !errors.Is(err, patient.ErrNotFound) {
		t.Fatalf("expected patient.ErrNotFound, got %v", err)
	}
}

func TestProvision_ImageWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.images.FailWrite = true

	_, err := f.svc.Provision(context.Background(), validInput("fresh@test.com"))
	if err == nil {
		t.Fatal("expected image write failure")
	}
	if f.images.Len() != 0 {
		t.Errorf("expected no stored images, got %d", f.images.Len())
	}
	if len(f.notifier.policies) != 0 {
		t.Error("failed provision must not reach the mirror")
	}
}

func TestProvision_FailureAfterImageWriteRemovesImage(t *testing.T) {
	f := newFixture(t)
	f.repo.failQRRecord = true

	_, err := f.svc.Provision(context.Background(), validInput("fresh@test.com"))
	if err == nil {
		t.Fatal("expected qr record insert failure")
	}
	if f.images.Len() != 0 {
		t.Errorf("orphaned image after rollback: %d stored", f.images.Len())
	}
}

func TestProvision_InvalidInput(t *testing.T) {
	f := newFixture(t)

	cases := map[string]ProvisionInput{
		"missing identifier": {ProviderID: uuid.New(), PolicyNumber: "P", CoverageAmount: 1, ValidUntil: "2027-01-01"},
		"missing provider":   {PatientIdentifier: "a@b.c", PolicyNumber: "P", CoverageAmount: 1, ValidUntil: "2027-01-01"},
		"missing number":     {PatientIdentifier: "a@b.c", ProviderID: uuid.New(), CoverageAmount: 1, ValidUntil: "2027-01-01"},
		"zero coverage":      {PatientIdentifier: "a@b.c", ProviderID: uuid.New(), PolicyNumber: "P", ValidUntil: "2027-01-01"},
		"missing validity":   {PatientIdentifier: "a@b.c", ProviderID: uuid.New(), PolicyNumber: "P", CoverageAmount: 1},
	}
	for name, in := range cases {
		if _, err := f.svc.Provision(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
	if f.images.Len() != 0 || len(f.repo.policies) != 0 {
		t.Error("rejected input must write nothing")
	}
}

func TestNewTagID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		tag, err := newTagID()
		if err != nil {
			t.Fatalf("tag id: %v", err)
		}
		if ok, _ := regexp.MatchString(`^[0-9A-F]{8}$`, tag); !ok {
			t.Fatalf("tag %q is not 4 bytes of uppercase hex", tag)
		}
		seen[tag] = true
	}
	if len(seen) < 2 {
		t.Error("tag ids should vary")
	}
}
