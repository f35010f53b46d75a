package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"paradise.network/internal/account"
	"paradise.network/internal/audit"
	"paradise.network/internal/commission"
	"paradise.network/internal/ledger"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestGetAccountNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select a.id, a.mobile").WithArgs("PN-NOPE").WillReturnError(sql.ErrNoRows)

	if _, err := s.Accounts().Get(context.Background(), "PN-NOPE"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetAccountWithChildren(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Now().UTC()
	mock.ExpectQuery("select a.id, a.mobile").WithArgs("PN-ROOT").WillReturnRows(
		sqlmock.NewRows([]string{"id", "mobile", "name", "sponsor_id", "referral_code", "status", "password_hash", "created_at"}).
			AddRow("PN-ROOT", "1000000000", "Platform Root", nil, "PN-ROOT0001", "active", "", created))
	mock.ExpectQuery("select id from accounts where sponsor_id").WithArgs("PN-ROOT").WillReturnRows(
		sqlmock.NewRows([]string{"id"}).AddRow("PN-M001").AddRow("PN-M002"))
	mock.ExpectQuery("select member_id, note from crm_notes").WithArgs("PN-ROOT").WillReturnRows(
		sqlmock.NewRows([]string{"member_id", "note"}).AddRow("PN-M001", "New"))

	acc, err := s.Accounts().Get(context.Background(), "PN-ROOT")
	if err != nil {
		t.Fatal(err)
	}
	if acc.SponsorID != "" || !acc.IsRoot() {
		t.Fatalf("root sponsor = %q", acc.SponsorID)
	}
	if len(acc.Children) != 2 {
		t.Fatalf("children = %v", acc.Children)
	}
	if acc.CRMNotes["PN-M001"] != "New" {
		t.Fatalf("crm notes = %v", acc.CRMNotes)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAdmitCapacityExceededRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("select status from accounts where id").WithArgs("PN-ROOT").WillReturnRows(
		sqlmock.NewRows([]string{"status"}).AddRow("active"))
	mock.ExpectQuery("select count").WithArgs("PN-ROOT").WillReturnRows(
		sqlmock.NewRows([]string{"count"}).AddRow(account.MaxDirect))
	mock.ExpectRollback()

	m := &account.Account{ID: "PN-M001", MobileNumber: "7015550500", ReferralCode: "PN-CODE0001", Status: account.StatusActive}
	if err := s.Accounts().Admit(context.Background(), m, "PN-ROOT"); !errors.Is(err, account.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAdmitBlockedSponsorRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("select status from accounts where id").WithArgs("PN-SPON").WillReturnRows(
		sqlmock.NewRows([]string{"status"}).AddRow("blocked"))
	mock.ExpectRollback()

	m := &account.Account{ID: "PN-M001", MobileNumber: "7015550500", ReferralCode: "PN-CODE0001", Status: account.StatusActive}
	if err := s.Accounts().Admit(context.Background(), m, "PN-SPON"); !errors.Is(err, account.ErrSponsorInactive) {
		t.Fatalf("expected ErrSponsorInactive, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAdmitInsertsUnderLock(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("select status from accounts where id").WithArgs("PN-ROOT").WillReturnRows(
		sqlmock.NewRows([]string{"status"}).AddRow("active"))
	mock.ExpectQuery("select count").WithArgs("PN-ROOT").WillReturnRows(
		sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec("insert into accounts").
		WithArgs("PN-M001", "7015550500", "Member", "PN-ROOT", "PN-CODE0001", "active", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m := &account.Account{ID: "PN-M001", MobileNumber: "7015550500", Name: "Member", ReferralCode: "PN-CODE0001", Status: account.StatusActive}
	if err := s.Accounts().Admit(context.Background(), m, "PN-ROOT"); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateStatusTerminal(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("select status from transaction_ledger").WithArgs("TX-1").WillReturnRows(
		sqlmock.NewRows([]string{"status"}).AddRow("completed"))
	mock.ExpectRollback()

	if _, err := s.Ledger().UpdateStatus(context.Background(), "TX-1", ledger.StatusCancelled); !errors.Is(err, ledger.ErrFinalStatus) {
		t.Fatalf("expected ErrFinalStatus, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFindByIdempotencyKeyMiss(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select .* from transaction_ledger where idempotency_key").
		WithArgs("order-1").WillReturnError(sql.ErrNoRows)

	_, ok, err := s.Ledger().FindByIdempotencyKey(context.Background(), "order-1")
	if err != nil || ok {
		t.Fatalf("miss returned ok=%v err=%v", ok, err)
	}
	// An empty key short-circuits without touching the database.
	if _, ok, err := s.Ledger().FindByIdempotencyKey(context.Background(), ""); err != nil || ok {
		t.Fatalf("empty key returned ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetEntryUnmarshalsPayout(t *testing.T) {
	s, mock := newMockStore(t)
	payout, err := json.Marshal(commission.Distribution{
		Seller:   commission.Share{AccountID: "PN-M001", Amount: 700},
		Platform: commission.Share{Amount: 200},
		Uplines:  map[int]commission.Share{1: {AccountID: "PN-ROOT", Amount: 100}},
	})
	if err != nil {
		t.Fatal(err)
	}
	mock.ExpectQuery("select .* from transaction_ledger where id").WithArgs("TX-1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "seller_id", "gross", "industry", "project", "payout", "status", "idempotency_key", "sequence", "created_at"}).
			AddRow("TX-1", "PN-M001", 1000, "DEFAULT", "", payout, "pending", "", 7, time.Now().UTC()))

	entry, err := s.Ledger().Get(context.Background(), "TX-1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Payout.Total() != 1000 {
		t.Fatalf("payout total = %d", entry.Payout.Total())
	}
	if entry.Payout.Uplines[1].AccountID != "PN-ROOT" {
		t.Fatalf("upline = %+v", entry.Payout.Uplines[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestTrailAppendAndList(t *testing.T) {
	s, mock := newMockStore(t)
	occurred := time.Now().UTC()
	mock.ExpectExec("insert into audit_log").
		WithArgs("AUD-1", occurred, "PN-ADMIN", "admin.account.block", "", "PN-M001", "req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select id, occurred_at").WillReturnRows(
		sqlmock.NewRows([]string{"id", "occurred_at", "actor_id", "event", "description", "target_id", "request_id"}).
			AddRow("AUD-1", occurred, "PN-ADMIN", "admin.account.block", "", "PN-M001", "req-1"))

	rec := audit.Record{ID: "AUD-1", OccurredAt: occurred, ActorID: "PN-ADMIN", Event: "admin.account.block", TargetID: "PN-M001", RequestID: "req-1"}
	if err := s.Trail().Append(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	got, err := s.Trail().List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Event != "admin.account.block" {
		t.Fatalf("trail = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadRules(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select id, industry").WillReturnRows(
		sqlmock.NewRows([]string{"id", "industry", "project", "seller_bp", "platform_bp", "upline1_bp", "upline2_bp", "upline3_bp", "upline4_bp"}).
			AddRow("RULE-DEFAULT", "DEFAULT", "", 7000, 1000, 1000, 500, 300, 200))

	rules, err := s.LoadRules(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 {
		t.Fatalf("%d rules", len(rules))
	}
	if err := rules[0].Validate(); err != nil {
		t.Fatalf("loaded rule invalid: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
