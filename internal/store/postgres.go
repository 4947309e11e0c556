package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/labelforge/labelforge/pkg/account"
	"github.com/labelforge/labelforge/pkg/batch"
	"github.com/labelforge/labelforge/pkg/label"
	"github.com/labelforge/labelforge/pkg/ledger"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Postgres persists to PostgreSQL via database/sql. It also implements
// ledger.Ledger: the debit is a single conditional UPDATE, so the
// balance check and the write are one statement and concurrent debits
// cannot both pass a stale check.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool against dsn.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Migrate creates the schema if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			user_role     TEXT NOT NULL DEFAULT 'admin',
			activation    TEXT NOT NULL DEFAULT 'allow',
			balance       NUMERIC(12,2) NOT NULL DEFAULT 0,
			total_spent   NUMERIC(12,2) NOT NULL DEFAULT 0,
			services      JSONB NOT NULL DEFAULT '{}',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id         UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			courier         TEXT NOT NULL,
			service_name    TEXT NOT NULL,
			image           BYTEA,
			tracking_number TEXT NOT NULL DEFAULT '',
			sender          JSONB NOT NULL DEFAULT '{}',
			receiver        JSONB NOT NULL DEFAULT '{}',
			package         JSONB NOT NULL DEFAULT '{}',
			cost            NUMERIC(12,2) NOT NULL DEFAULT 0,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS bulk_orders (
			id                    UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id               UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			courier               TEXT NOT NULL,
			mode                  TEXT NOT NULL,
			items                 JSONB NOT NULL DEFAULT '[]',
			total_charged         NUMERIC(12,2) NOT NULL DEFAULT 0,
			requested_count       INT NOT NULL,
			fulfilled_count       INT NOT NULL,
			skipped_count         INT NOT NULL DEFAULT 0,
			failed_count          INT NOT NULL DEFAULT 0,
			pdf_name              TEXT NOT NULL DEFAULT '',
			result_csv_name       TEXT NOT NULL DEFAULT '',
			auto_confirm_csv_name TEXT NOT NULL DEFAULT '',
			created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders (user_id)`,
		`CREATE INDEX IF NOT EXISTS bulk_orders_user_id_idx ON bulk_orders (user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}

// CreateUser implements Users.
func (p *Postgres) CreateUser(ctx context.Context, u *account.User) (string, error) {
	services, err := json.Marshal(u.Services)
	if err != nil {
		return "", fmt.Errorf("encoding services: %w", err)
	}

	var id string
	err = p.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, user_role, activation, balance, total_spent, services)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		u.Name, u.Email, u.PasswordHash, u.Role, u.Activation,
		u.Balance, u.TotalSpent, services,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("inserting user: %w", err)
	}
	return id, nil
}

const userColumns = `id, name, email, password_hash, user_role, activation, balance, total_spent, services, created_at`

// FindUserByEmail implements Users.
func (p *Postgres) FindUserByEmail(ctx context.Context, email string) (*account.User, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email)
	return scanUser(row)
}

// FindUserByID implements Users.
func (p *Postgres) FindUserByID(ctx context.Context, id string) (*account.User, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*account.User, error) {
	var u account.User
	var services []byte
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.Activation, &u.Balance, &u.TotalSpent, &services, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	if err := json.Unmarshal(services, &u.Services); err != nil {
		return nil, fmt.Errorf("decoding services: %w", err)
	}
	return &u, nil
}

// ListUsers implements Users.
func (p *Postgres) ListUsers(ctx context.Context) ([]account.User, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []account.User
	for rows.Next() {
		var u account.User
		var services []byte
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash,
			&u.Role, &u.Activation, &u.Balance, &u.TotalSpent,
			&services, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		if err := json.Unmarshal(services, &u.Services); err != nil {
			return nil, fmt.Errorf("decoding services: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserRole implements Users.
func (p *Postgres) UpdateUserRole(ctx context.Context, userID, role string) error {
	return p.updateUserField(ctx,
		`UPDATE users SET user_role = $2 WHERE id = $1`, userID, role)
}

// UpdateUserActivation implements Users.
func (p *Postgres) UpdateUserActivation(ctx context.Context, userID, activation string) error {
	return p.updateUserField(ctx,
		`UPDATE users SET activation = $2 WHERE id = $1`, userID, activation)
}

// SetBalance implements Users.
func (p *Postgres) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	return p.updateUserField(ctx,
		`UPDATE users SET balance = $2 WHERE id = $1`, userID, balance)
}

// DeleteUser implements Users. Orders and batches cascade.
func (p *Postgres) DeleteUser(ctx context.Context, userID string) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return oneRowOrNotFound(res)
}

func (p *Postgres) updateUserField(ctx context.Context, query, userID string, value any) error {
	res, err := p.db.ExecContext(ctx, query, userID, value)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return oneRowOrNotFound(res)
}

func oneRowOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateServiceRate implements Users. The read-modify-write runs in a
// transaction with the row locked.
func (p *Postgres) UpdateServiceRate(ctx context.Context, userID, serviceName, costType string, value decimal.Decimal) (map[label.Courier]account.ServiceTable, error) {
	if costType != CostStandard {
		return nil, ErrServiceNotFound
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT services FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locking user row: %w", err)
	}

	var tables map[label.Courier]account.ServiceTable
	if err := json.Unmarshal(raw, &tables); err != nil {
		return nil, fmt.Errorf("decoding services: %w", err)
	}

	updated := false
	for courier, table := range tables {
		if rate, ok := table.Services[serviceName]; ok {
			rate.StandardCost = value
			table.Services[serviceName] = rate
			tables[courier] = table
			updated = true
		}
	}
	if !updated {
		return nil, ErrServiceNotFound
	}

	encoded, err := json.Marshal(tables)
	if err != nil {
		return nil, fmt.Errorf("encoding services: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET services = $2 WHERE id = $1`, userID, encoded); err != nil {
		return nil, fmt.Errorf("updating services: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing rate update: %w", err)
	}
	return tables, nil
}

// AuthorizeAndDebit implements ledger.Ledger with a conditional UPDATE.
func (p *Postgres) AuthorizeAndDebit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := p.db.QueryRowContext(ctx, `
		UPDATE users
		SET balance = balance - $2, total_spent = total_spent + $2
		WHERE id = $1 AND balance >= $2
		RETURNING balance`,
		userID, amount,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the account is missing or the balance fell short;
		// disambiguate with a plain read.
		if balance, err = p.Balance(ctx, userID); err != nil {
			return decimal.Zero, err
		}
		return balance, ledger.ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("debiting balance: %w", err)
	}
	return balance, nil
}

// Credit implements ledger.Ledger.
func (p *Postgres) Credit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := p.db.QueryRowContext(ctx, `
		UPDATE users SET balance = balance + $2 WHERE id = $1
		RETURNING balance`,
		userID, amount,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("crediting balance: %w", err)
	}
	return balance, nil
}

// Balance implements ledger.Ledger.
func (p *Postgres) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := p.db.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading balance: %w", err)
	}
	return balance, nil
}

// SaveOrder implements Orders.
func (p *Postgres) SaveOrder(ctx context.Context, o *Order) (string, error) {
	sender, receiver, pkg, err := encodePayloads(o.Sender, o.Receiver, o.Package)
	if err != nil {
		return "", err
	}

	var id string
	err = p.db.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, courier, service_name, image, tracking_number, sender, receiver, package, cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		o.UserID, o.Courier, o.ServiceName, o.Image, o.TrackingNumber,
		sender, receiver, pkg, o.Cost,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("inserting order: %w", err)
	}
	return id, nil
}

// FindOrdersByUser implements Orders.
func (p *Postgres) FindOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, courier, service_name, image, tracking_number, sender, receiver, package, cost, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		var sender, receiver, pkg []byte
		if err := rows.Scan(&o.ID, &o.UserID, &o.Courier, &o.ServiceName,
			&o.Image, &o.TrackingNumber, &sender, &receiver, &pkg,
			&o.Cost, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		if err := decodePayloads(sender, &o.Sender, receiver, &o.Receiver, pkg, &o.Package); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// SaveBatch implements Batches.
func (p *Postgres) SaveBatch(ctx context.Context, outcome *batch.Outcome) (string, error) {
	items, err := json.Marshal(outcome.Items)
	if err != nil {
		return "", fmt.Errorf("encoding batch items: %w", err)
	}

	var id string
	err = p.db.QueryRowContext(ctx, `
		INSERT INTO bulk_orders (user_id, courier, mode, items, total_charged,
			requested_count, fulfilled_count, skipped_count, failed_count,
			pdf_name, result_csv_name, auto_confirm_csv_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		outcome.UserID, outcome.Courier, outcome.Mode, items, outcome.TotalCharged,
		outcome.RequestedCount, outcome.FulfilledCount, outcome.SkippedCount, outcome.FailedCount,
		outcome.Files.LabelDoc, outcome.Files.ResultManifest, outcome.Files.AutoConfirmManifest,
		outcome.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("inserting batch: %w", err)
	}
	return id, nil
}

// FindBatchesByUser implements Batches.
func (p *Postgres) FindBatchesByUser(ctx context.Context, userID string) ([]batch.Outcome, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, courier, mode, items, total_charged,
			requested_count, fulfilled_count, skipped_count, failed_count,
			pdf_name, result_csv_name, auto_confirm_csv_name, created_at
		FROM bulk_orders WHERE user_id = $1 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var outcomes []batch.Outcome
	for rows.Next() {
		var o batch.Outcome
		var items []byte
		if err := rows.Scan(&o.ID, &o.UserID, &o.Courier, &o.Mode, &items,
			&o.TotalCharged, &o.RequestedCount, &o.FulfilledCount,
			&o.SkippedCount, &o.FailedCount,
			&o.Files.LabelDoc, &o.Files.ResultManifest, &o.Files.AutoConfirmManifest,
			&o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("decoding batch items: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func encodePayloads(sender, receiver, pkg label.Payload) ([]byte, []byte, []byte, error) {
	s, err := json.Marshal(sender)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encoding sender: %w", err)
	}
	r, err := json.Marshal(receiver)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encoding receiver: %w", err)
	}
	k, err := json.Marshal(pkg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encoding package: %w", err)
	}
	return s, r, k, nil
}

func decodePayloads(sender []byte, s *label.Payload, receiver []byte, r *label.Payload, pkg []byte, k *label.Payload) error {
	if err := json.Unmarshal(sender, s); err != nil {
		return fmt.Errorf("decoding sender: %w", err)
	}
	if err := json.Unmarshal(receiver, r); err != nil {
		return fmt.Errorf("decoding receiver: %w", err)
	}
	if err := json.Unmarshal(pkg, k); err != nil {
		return fmt.Errorf("decoding package: %w", err)
	}
	return nil
}

var (
	_ Users         = (*Postgres)(nil)
	_ Orders        = (*Postgres)(nil)
	_ Batches       = (*Postgres)(nil)
	_ ledger.Ledger = (*Postgres)(nil)
)
