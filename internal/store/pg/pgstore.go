// Package pg persists accounts, the transaction ledger, commission rules
// and the audit trail in PostgreSQL. Tree invariants are enforced inside
// transactions with the sponsor row locked, mirroring the in-memory
// stores' guarantees.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"paradise.network/internal/account"
	"paradise.network/internal/audit"
	"paradise.network/internal/commission"
	"paradise.network/internal/ledger"
)

// Store owns the connection pool and hands out the per-domain stores.
type Store struct {
	db       *sql.DB
	accounts *AccountStore
	entries  *LedgerStore
	trail    *TrailStore
}

// Open connects with tuned pool defaults; adjust under load tests.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing handle (tests use sqlmock through this).
func NewWithDB(db *sql.DB) *Store {
	return &Store{
		db:       db,
		accounts: &AccountStore{db: db},
		entries:  &LedgerStore{db: db},
		trail:    &TrailStore{db: db},
	}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Accounts returns the account store view.
func (s *Store) Accounts() *AccountStore { return s.accounts }

// Ledger returns the ledger store view.
func (s *Store) Ledger() *LedgerStore { return s.entries }

// Trail returns the audit trail view.
func (s *Store) Trail() *TrailStore { return s.trail }

// --- accounts ---

type AccountStore struct {
	db *sql.DB
}

var _ account.Store = (*AccountStore)(nil)

func (s *AccountStore) Create(ctx context.Context, a *account.Account) error {
	if a.ID == "" || a.MobileNumber == "" || a.ReferralCode == "" {
		return errors.New("account id, mobile number and referral code are required")
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	var sponsor any
	if a.SponsorID != "" {
		sponsor = a.SponsorID
	}
	_, err := s.db.ExecContext(ctx, `
		insert into accounts(id, mobile, name, sponsor_id, referral_code, status, password_hash, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, a.ID, a.MobileNumber, a.Name, sponsor, a.ReferralCode, string(a.Status), a.PasswordHash, created)
	if isUniqueViolation(err) {
		return account.ErrAlreadyExists
	}
	return err
}

func (s *AccountStore) Get(ctx context.Context, id string) (account.Account, error) {
	return s.getBy(ctx, `where a.id = $1`, id)
}

func (s *AccountStore) GetByMobile(ctx context.Context, mobile string) (account.Account, error) {
	return s.getBy(ctx, `where a.mobile = $1`, mobile)
}

func (s *AccountStore) GetByReferralCode(ctx context.Context, code string) (account.Account, error) {
	return s.getBy(ctx, `where a.referral_code = $1`, code)
}

func (s *AccountStore) getBy(ctx context.Context, where string, arg any) (account.Account, error) {
	var (
		acc     account.Account
		sponsor sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select a.id, a.mobile, a.name, a.sponsor_id, a.referral_code, a.status, a.password_hash, a.created_at
		from accounts a `+where, arg).Scan(
		&acc.ID, &acc.MobileNumber, &acc.Name, &sponsor, &acc.ReferralCode, &acc.Status, &acc.PasswordHash, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, account.ErrNotFound
	}
	if err != nil {
		return account.Account{}, err
	}
	acc.SponsorID = sponsor.String

	rows, err := s.db.QueryContext(ctx, `
		select id from accounts where sponsor_id = $1 order by created_at, id
	`, acc.ID)
	if err != nil {
		return account.Account{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			return account.Account{}, err
		}
		acc.Children = append(acc.Children, child)
	}
	if err := rows.Err(); err != nil {
		return account.Account{}, err
	}

	notes, err := s.db.QueryContext(ctx, `
		select member_id, note from crm_notes where sponsor_id = $1
	`, acc.ID)
	if err != nil {
		return account.Account{}, err
	}
	defer notes.Close()
	for notes.Next() {
		var member, note string
		if err := notes.Scan(&member, &note); err != nil {
			return account.Account{}, err
		}
		if acc.CRMNotes == nil {
			acc.CRMNotes = make(map[string]string)
		}
		acc.CRMNotes[member] = note
	}
	return acc, notes.Err()
}

func (s *AccountStore) List(ctx context.Context) ([]account.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, mobile, name, coalesce(sponsor_id,''), referral_code, status, created_at
		from accounts order by created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []account.Account
	for rows.Next() {
		var acc account.Account
		if err := rows.Scan(&acc.ID, &acc.MobileNumber, &acc.Name, &acc.SponsorID, &acc.ReferralCode, &acc.Status, &acc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// lockSponsor locks the sponsor row, verifies it may take a child and
// returns its current fan-out.
func lockSponsor(ctx context.Context, tx *sql.Tx, sponsorID string) (int, error) {
	var status string
	err := tx.QueryRowContext(ctx, `select status from accounts where id = $1 for update`, sponsorID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, account.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if account.Status(status) != account.StatusActive {
		return 0, account.ErrSponsorInactive
	}
	var n int
	if err := tx.QueryRowContext(ctx, `select count(*) from accounts where sponsor_id = $1`, sponsorID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *AccountStore) Admit(ctx context.Context, a *account.Account, sponsorID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	n, err := lockSponsor(ctx, tx, sponsorID)
	if err != nil {
		return err
	}
	if n >= account.MaxDirect {
		return account.ErrCapacityExceeded
	}

	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		insert into accounts(id, mobile, name, sponsor_id, referral_code, status, password_hash, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, a.ID, a.MobileNumber, a.Name, sponsorID, a.ReferralCode, string(a.Status), a.PasswordHash, created)
	if isUniqueViolation(err) {
		return account.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *AccountStore) AttachChild(ctx context.Context, sponsorID, childID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	n, err := lockSponsor(ctx, tx, sponsorID)
	if err != nil {
		return err
	}
	if n >= account.MaxDirect {
		return account.ErrCapacityExceeded
	}
	var current sql.NullString
	err = tx.QueryRowContext(ctx, `select sponsor_id from accounts where id = $1`, childID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return account.ErrNotFound
	}
	if err != nil {
		return err
	}
	if current.String == sponsorID {
		return account.ErrAlreadyUnderSponsor
	}
	if _, err := tx.ExecContext(ctx, `update accounts set sponsor_id = $1 where id = $2`, sponsorID, childID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *AccountStore) Reparent(ctx context.Context, id, newSponsorID string) error {
	if id == newSponsorID {
		return account.ErrSelfReference
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullString
	err = tx.QueryRowContext(ctx, `select sponsor_id from accounts where id = $1 for update`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return account.ErrNotFound
	}
	if err != nil {
		return err
	}
	if current.String == newSponsorID {
		return account.ErrAlreadyUnderSponsor
	}

	// The new sponsor's ancestor chain must not pass through the account
	// being moved, or the edge closes a cycle.
	var cycles int
	err = tx.QueryRowContext(ctx, `
		with recursive ancestors as (
			select id, sponsor_id from accounts where id = $1
			union all
			select a.id, a.sponsor_id from accounts a
			join ancestors anc on a.id = anc.sponsor_id
		)
		select count(*) from ancestors where id = $2
	`, newSponsorID, id).Scan(&cycles)
	if err != nil {
		return err
	}
	if cycles > 0 {
		return account.ErrCycle
	}

	n, err := lockSponsor(ctx, tx, newSponsorID)
	if err != nil {
		return err
	}
	if n >= account.MaxDirect {
		return account.ErrCapacityExceeded
	}
	if _, err := tx.ExecContext(ctx, `update accounts set sponsor_id = $1 where id = $2`, newSponsorID, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *AccountStore) SetStatus(ctx context.Context, id string, st account.Status) error {
	return updateOne(ctx, s.db, `update accounts set status = $1 where id = $2`, string(st), id)
}

func (s *AccountStore) SetPassword(ctx context.Context, id, passwordHash string) error {
	return updateOne(ctx, s.db, `update accounts set password_hash = $1 where id = $2`, passwordHash, id)
}

func (s *AccountStore) SetCRMNote(ctx context.Context, sponsorID, memberID, note string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into crm_notes(sponsor_id, member_id, note)
		values ($1,$2,$3)
		on conflict (sponsor_id, member_id) do update set note = excluded.note
	`, sponsorID, memberID, note)
	return err
}

func updateOne(ctx context.Context, db *sql.DB, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return account.ErrNotFound
	}
	return nil
}

// --- commission rules ---

// LoadRules reads every installed commission rule, for resolver
// construction at startup.
func (s *Store) LoadRules(ctx context.Context) ([]commission.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, industry, coalesce(project,''), seller_bp, platform_bp,
		       upline1_bp, upline2_bp, upline3_bp, upline4_bp
		from commission_rules
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []commission.Rule
	for rows.Next() {
		var r commission.Rule
		if err := rows.Scan(&r.ID, &r.Industry, &r.Project, &r.SellerBP, &r.PlatformBP,
			&r.UplineBP[0], &r.UplineBP[1], &r.UplineBP[2], &r.UplineBP[3]); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveRule upserts a rule by scope.
func (s *Store) SaveRule(ctx context.Context, r commission.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	var project any
	if r.Project != "" {
		project = r.Project
	}
	_, err := s.db.ExecContext(ctx, `
		insert into commission_rules(id, industry, project, seller_bp, platform_bp, upline1_bp, upline2_bp, upline3_bp, upline4_bp)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		on conflict (industry, coalesce(project,'')) do update set
			id = excluded.id, seller_bp = excluded.seller_bp, platform_bp = excluded.platform_bp,
			upline1_bp = excluded.upline1_bp, upline2_bp = excluded.upline2_bp,
			upline3_bp = excluded.upline3_bp, upline4_bp = excluded.upline4_bp
	`, r.ID, r.Industry, project, r.SellerBP, r.PlatformBP,
		r.UplineBP[0], r.UplineBP[1], r.UplineBP[2], r.UplineBP[3])
	return err
}

// --- ledger ---

type LedgerStore struct {
	db *sql.DB
}

var _ ledger.Store = (*LedgerStore)(nil)

func (s *LedgerStore) Append(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	payout, err := json.Marshal(e.Payout)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("marshal payout snapshot: %w", err)
	}
	var idem any
	if e.IdempotencyKey != "" {
		idem = e.IdempotencyKey
	}
	err = s.db.QueryRowContext(ctx, `
		insert into transaction_ledger(id, seller_id, gross, industry, project, payout, status, idempotency_key, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		returning sequence
	`, e.ID, e.SellerID, e.Gross, e.Industry, e.Project, payout, string(e.Status), idem, e.CreatedAt).Scan(&e.Sequence)
	if err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

const entryColumns = `id, seller_id, gross, industry, coalesce(project,''), payout, status, coalesce(idempotency_key,''), sequence, created_at`

func scanEntry(scan func(dest ...any) error) (ledger.Entry, error) {
	var (
		e      ledger.Entry
		payout []byte
	)
	if err := scan(&e.ID, &e.SellerID, &e.Gross, &e.Industry, &e.Project, &payout, &e.Status, &e.IdempotencyKey, &e.Sequence, &e.CreatedAt); err != nil {
		return ledger.Entry{}, err
	}
	if err := json.Unmarshal(payout, &e.Payout); err != nil {
		return ledger.Entry{}, fmt.Errorf("unmarshal payout snapshot: %w", err)
	}
	return e, nil
}

func (s *LedgerStore) Get(ctx context.Context, id string) (ledger.Entry, error) {
	row := s.db.QueryRowContext(ctx, `select `+entryColumns+` from transaction_ledger where id = $1`, id)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	return e, err
}

func (s *LedgerStore) List(ctx context.Context, limit int, afterSeq uint64) ([]ledger.Entry, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+entryColumns+` from transaction_ledger
		where sequence > $1 order by sequence limit $2
	`, afterSeq, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out  []ledger.Entry
		last uint64
	)
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
		last = e.Sequence
	}
	return out, last, rows.Err()
}

func (s *LedgerStore) ListBySeller(ctx context.Context, sellerID string) ([]ledger.Entry, error) {
	return s.listWhere(ctx, `where seller_id = $1`, sellerID)
}

func (s *LedgerStore) ListInvolving(ctx context.Context, accountID string) ([]ledger.Entry, error) {
	// The payout snapshot is authoritative for who earned, so match inside
	// the frozen JSON rather than recomputing from the live graph.
	return s.listWhere(ctx, `
		where seller_id = $1
		   or exists (
			select 1 from jsonb_each(payout->'uplines') u
			where u.value->>'account_id' = $1
		   )`, accountID)
}

func (s *LedgerStore) listWhere(ctx context.Context, where string, arg any) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `select `+entryColumns+` from transaction_ledger `+where+` order by sequence`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *LedgerStore) UpdateStatus(ctx context.Context, id string, st ledger.Status) (ledger.Entry, error) {
	if !st.Valid() {
		return ledger.Entry{}, ledger.ErrInvalidStatus
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `select status from transaction_ledger where id = $1 for update`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Entry{}, err
	}
	if ledger.Status(current).Terminal() {
		return ledger.Entry{}, ledger.ErrFinalStatus
	}
	if _, err := tx.ExecContext(ctx, `update transaction_ledger set status = $1 where id = $2`, string(st), id); err != nil {
		return ledger.Entry{}, err
	}
	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, err
	}
	return s.Get(ctx, id)
}

func (s *LedgerStore) FindByIdempotencyKey(ctx context.Context, key string) (ledger.Entry, bool, error) {
	if key == "" {
		return ledger.Entry{}, false, nil
	}
	row := s.db.QueryRowContext(ctx, `select `+entryColumns+` from transaction_ledger where idempotency_key = $1`, key)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, false, nil
	}
	if err != nil {
		return ledger.Entry{}, false, err
	}
	return e, true, nil
}

// --- audit trail ---

type TrailStore struct {
	db *sql.DB
}

var _ audit.Trail = (*TrailStore)(nil)

func (s *TrailStore) Append(ctx context.Context, rec audit.Record) error {
	occurred := rec.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log(id, occurred_at, actor_id, event, description, target_id, request_id)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, rec.ID, occurred, rec.ActorID, rec.Event, rec.Description, rec.TargetID, rec.RequestID)
	return err
}

func (s *TrailStore) List(ctx context.Context) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, occurred_at, actor_id, event, description, target_id, request_id
		from audit_log order by occurred_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []audit.Record
	for rows.Next() {
		var rec audit.Record
		if err := rows.Scan(&rec.ID, &rec.OccurredAt, &rec.ActorID, &rec.Event, &rec.Description, &rec.TargetID, &rec.RequestID); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// isUniqueViolation matches Postgres error code 23505 without importing the
// driver's error type here.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	type coder interface{ SQLState() string }
	var c coder
	if errors.As(err, &c) {
		return c.SQLState() == "23505"
	}
	return false
}
