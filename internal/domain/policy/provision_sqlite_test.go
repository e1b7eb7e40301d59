package policy

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carepass/carepass/internal/domain/patient"
	"github.com/carepass/carepass/internal/domain/record"
	"github.com/carepass/carepass/internal/platform/db"
	"github.com/carepass/carepass/internal/platform/mirror"
	"github.com/carepass/carepass/internal/platform/phi"
	"github.com/carepass/carepass/internal/platform/qr"
)

// Full provisioning flow against a real database: the rollback guarantees
// only show up with actual transactions.

type sqliteFixture struct {
	sdb    *sql.DB
	images *qr.MemStore
	svc    *Service
	insID  uuid.UUID
}

func newSQLiteFixture(t *testing.T) *sqliteFixture {
	t.Helper()
	ctx := context.Background()

	sdb, err := db.Open(ctx, filepath.Join(t.TempDir(), "policy_test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { sdb.Close() })

	migrator := db.NewMigrator(sdb, filepath.Join("..", "..", "..", "migrations"))
	if _, err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	insID := uuid.New()
	if _, err := sdb.ExecContext(ctx, `
		INSERT INTO insurance_companies (id, name, license_number, email, password_hash)
		VALUES (?, 'Test Insurance', 'INS-T1', 'test@ins.com', 'x')`, insID.String()); err != nil {
		t.Fatalf("insert insurer: %v", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("key: %v", err)
	}
	cipher, err := phi.NewEncryptor(key)
	if err != nil {
		t.Fatalf("encryptor: %v", err)
	}

	logger := zerolog.Nop()
	images := qr.NewMemStore()
	runner := db.Runner{DB: sdb}
	patients := patient.NewService(patient.NewRepo(sdb), cipher)
	records := record.NewService(record.NewRepo(sdb), runner, mirror.Noop{}, logger)
	svc := NewService(NewRepo(sdb), runner, patients, records, cipher, images, mirror.Noop{}, logger)

	return &sqliteFixture{sdb: sdb, images: images, svc: svc, insID: insID}
}

func (f *sqliteFixture) provision(identifier, policyNumber string) (*Policy, error) {
	return f.svc.Provision(context.Background(), ProvisionInput{
		PatientIdentifier: identifier,
		ProviderID:        f.insID,
		PolicyNumber:      policyNumber,
		CoverageAmount:    250000,
		ValidUntil:        "2027-06-30",
	})
}

func (f *sqliteFixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := f.sdb.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestProvision_SQLite_FullFlow(t *testing.T) {
	f := newSQLiteFixture(t)

	pol, err := f.provision("alice@test.com", "POL-2001")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	if n := f.count(t, "patients"); n != 1 {
		t.Errorf("patients: %d, want 1", n)
	}
	if n := f.count(t, "policies"); n != 1 {
		t.Errorf("policies: %d, want 1", n)
	}
	if n := f.count(t, "medical_records"); n != 1 {
		t.Errorf("baseline records: %d, want 1", n)
	}
	if n := f.count(t, "pending_medical_data_requests"); n != 1 {
		t.Errorf("pending requests: %d, want 1", n)
	}
	if n := f.count(t, "qr_records"); n != 1 {
		t.Errorf("qr records: %d, want 1", n)
	}
	if n := f.count(t, "nfc_records"); n != 1 {
		t.Errorf("nfc records: %d, want 1", n)
	}
	if f.images.Len() != 1 {
		t.Errorf("qr images: %d, want 1", f.images.Len())
	}

	var qrCode, nfcID sql.NullString
	err = f.sdb.QueryRow(`SELECT qr_code, nfc_id FROM patients WHERE id = ?`,
		pol.PatientID.String()).Scan(&qrCode, &nfcID)
	if err != nil {
		t.Fatalf("read patient: %v", err)
	}
	if !qrCode.Valid || qrCode.String == "" {
		t.Error("patient qr_code not set")
	}
	if !nfcID.Valid || nfcID.String == "" {
		t.Error("patient nfc_id not set")
	}
}

func TestProvision_SQLite_DuplicateRollsBackEverything(t *testing.T) {
	f := newSQLiteFixture(t)

	if _, err := f.provision("alice@test.com", "POL-2001"); err != nil {
		t.Fatalf("first provision: %v", err)
	}

	// Same policy number for a patient that does not exist yet: the
	// auto-registered patient must vanish with the rollback.
	_, err := f.provision("bob@test.com", "POL-2001")
	if !errors.Is(err, ErrDuplicatePolicy) {
		t.Fatalf("expected ErrDuplicatePolicy, got %v", err)
	}

	if n := f.count(t, "patients"); n != 1 {
		t.Errorf("patients after rollback: %d, want 1", n)
	}
	if n := f.count(t, "policies"); n != 1 {
		t.Errorf("policies after rollback: %d, want 1", n)
	}
	if f.images.Len() != 1 {
		t.Errorf("qr images after rollback: %d, want 1", f.images.Len())
	}
}

func TestProvision_SQLite_SecondPolicySkipsBaseline(t *testing.T) {
	f := newSQLiteFixture(t)

	first, err := f.provision("alice@test.com", "POL-2001")
	if err != nil {
		t.Fatalf("first provision: %v", err)
	}
	second, err := f.provision("alice@test.com", "POL-2002")
	if err != nil {
		t.Fatalf("second provision: %v", err)
	}
	if first.PatientID != second.PatientID {
		t.Errorf("same email resolved to different patients")
	}

	if n := f.count(t, "patients"); n != 1 {
		t.Errorf("patients: %d, want 1", n)
	}
	if n := f.count(t, "medical_records"); n != 1 {
		t.Errorf("baseline must not repeat: %d records", n)
	}
	if n := f.count(t, "qr_records"); n != 2 {
		t.Errorf("qr records are append-only: %d, want 2", n)
	}
}
