// Package postgres is a UserProvider backed by PostgreSQL through pgxpool.
// The conditional second-factor write and backup code consumption are each
// decided by a single guarded UPDATE, so concurrent callers cannot both win.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/skyAuth"
)

// Options tunes the connection pool. Zero values keep the pgxpool defaults.
type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type Store struct{ pool *pgxpool.Pool }

var _ skyAuth.UserProvider = (*Store)(nil)

// Open parses dsn, builds a pool and pings it.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		pcfg.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		pcfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

// Pool exposes the underlying pool for migrations.
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Close closes the pool. It is safe to call more than once.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

const selectUser = `
	SELECT id, identifier, display_name, password_hash, status, locked, roles,
	       token_version, tf_temp_secret, tf_secret, tf_enabled,
	       tf_enabled_at, tf_disabled_at, tf_version
	FROM users`

// CreateUser inserts u with its backup codes and returns the user id. An
// empty UserID is replaced with a random UUID.
func (s *Store) CreateUser(ctx context.Context, u skyAuth.UserRecord) (string, error) {
	u.Identifier = normalize(u.Identifier)
	if u.Identifier == "" {
		return "", ErrEmptyIdentifier
	}
	id := uuid.New()
	if u.UserID != "" {
		parsed, err := uuid.Parse(u.UserID)
		if err != nil {
			return "", fmt.Errorf("user id: %w", err)
		}
		id = parsed
	}
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	sf := u.SecondFactor

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, identifier, display_name, password_hash, status, locked, roles,
		                   token_version, tf_temp_secret, tf_secret, tf_enabled,
		                   tf_enabled_at, tf_disabled_at, tf_version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, id, u.Identifier, u.DisplayName, u.PasswordHash, u.Status.String(), u.Locked, roles,
		int64(u.TokenVersion), sf.TempSecret, sf.Secret, sf.Enabled,
		nullTime(sf.EnabledAt), nullTime(sf.DisabledAt), int64(sf.Version))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", ErrDuplicateIdentifier
		}
		return "", err
	}
	if err := writeBackupCodes(ctx, tx, id, sf.BackupCodes); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (skyAuth.UserRecord, error) {
	return s.getUser(ctx, selectUser+` WHERE identifier = $1`, normalize(identifier))
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (skyAuth.UserRecord, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return skyAuth.UserRecord{}, skyAuth.ErrUserNotFound
	}
	return s.getUser(ctx, selectUser+` WHERE id = $1`, id)
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (skyAuth.UserRecord, error) {
	var (
		u                skyAuth.UserRecord
		id               uuid.UUID
		status           string
		tokenVersion     int64
		tfVersion        int64
		enabledAt, disAt *time.Time
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&id, &u.Identifier, &u.DisplayName, &u.PasswordHash, &status, &u.Locked, &u.Roles,
		&tokenVersion, &u.SecondFactor.TempSecret, &u.SecondFactor.Secret, &u.SecondFactor.Enabled,
		&enabledAt, &disAt, &tfVersion,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return skyAuth.UserRecord{}, skyAuth.ErrUserNotFound
		}
		return skyAuth.UserRecord{}, err
	}

	parsed, ok := skyAuth.ParseAccountStatus(status)
	if !ok {
		return skyAuth.UserRecord{}, fmt.Errorf("user %s: unknown status %q", id, status)
	}
	u.UserID = id.String()
	u.Status = parsed
	u.TokenVersion = uint32(tokenVersion)
	u.SecondFactor.Version = uint32(tfVersion)
	if enabledAt != nil {
		u.SecondFactor.EnabledAt = *enabledAt
	}
	if disAt != nil {
		u.SecondFactor.DisabledAt = *disAt
	}

	codes, err := s.backupCodes(ctx, id)
	if err != nil {
		return skyAuth.UserRecord{}, err
	}
	u.SecondFactor.BackupCodes = codes
	return u, nil
}

func (s *Store) backupCodes(ctx context.Context, id uuid.UUID) ([]skyAuth.BackupCode, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT code_hash, used_at FROM backup_codes WHERE user_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []skyAuth.BackupCode
	for rows.Next() {
		var (
			hash   []byte
			usedAt *time.Time
		)
		if err := rows.Scan(&hash, &usedAt); err != nil {
			return nil, err
		}
		var code skyAuth.BackupCode
		copy(code.Hash[:], hash)
		if usedAt != nil {
			code.Used = true
			code.UsedAt = *usedAt
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

// ConditionalUpdateSecondFactor guards the write on tf_version. The row lock
// taken by the UPDATE is held until commit, so the backup code replacement
// that follows is never interleaved with a competing writer.
func (s *Store) ConditionalUpdateSecondFactor(ctx context.Context, userID string, expectedVersion uint32, next skyAuth.SecondFactor) (bool, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return false, skyAuth.ErrUserNotFound
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET tf_temp_secret = $3, tf_secret = $4, tf_enabled = $5,
		    tf_enabled_at = $6, tf_disabled_at = $7,
		    tf_version = tf_version + 1, updated_at = now()
		WHERE id = $1 AND tf_version = $2
	`, id, int64(expectedVersion), next.TempSecret, next.Secret, next.Enabled,
		nullTime(next.EnabledAt), nullTime(next.DisabledAt))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		if err := s.exists(ctx, tx, id); err != nil {
			return false, err
		}
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM backup_codes WHERE user_id = $1`, id); err != nil {
		return false, err
	}
	if err := writeBackupCodes(ctx, tx, id, next.BackupCodes); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ConsumeBackupCode(ctx context.Context, userID string, codeHash [32]byte, usedAt time.Time) (bool, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return false, skyAuth.ErrUserNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE backup_codes
		SET used_at = $3
		WHERE user_id = $1 AND code_hash = $2 AND used_at IS NULL
	`, id, codeHash[:], usedAt)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if err := s.exists(ctx, s.pool, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	return s.updateOne(ctx, userID, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, newHash)
}

func (s *Store) UpdateAccountStatus(ctx context.Context, userID string, status skyAuth.AccountStatus, locked bool) error {
	return s.updateOne(ctx, userID, `UPDATE users SET status = $2, locked = $3, updated_at = now() WHERE id = $1`, status.String(), locked)
}

func (s *Store) IncrementTokenVersion(ctx context.Context, userID string) (uint32, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return 0, skyAuth.ErrUserNotFound
	}
	var v int64
	err = s.pool.QueryRow(ctx, `
		UPDATE users SET token_version = token_version + 1, updated_at = now()
		WHERE id = $1
		RETURNING token_version
	`, id).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, skyAuth.ErrUserNotFound
		}
		return 0, err
	}
	return uint32(v), nil
}

func (s *Store) updateOne(ctx context.Context, userID, query string, args ...any) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return skyAuth.ErrUserNotFound
	}
	tag, err := s.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return skyAuth.ErrUserNotFound
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) exists(ctx context.Context, q querier, id uuid.UUID) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return skyAuth.ErrUserNotFound
	}
	return err
}

func writeBackupCodes(ctx context.Context, tx pgx.Tx, id uuid.UUID, codes []skyAuth.BackupCode) error {
	if len(codes) == 0 {
		return nil
	}
	var b pgx.Batch
	for i, code := range codes {
		var usedAt *time.Time
		if code.Used {
			t := code.UsedAt
			if t.IsZero() {
				t = time.Now()
			}
			usedAt = &t
		}
		b.Queue(`INSERT INTO backup_codes (user_id, position, code_hash, used_at) VALUES ($1,$2,$3,$4)`,
			id, i, code.Hash[:], usedAt)
	}
	br := tx.SendBatch(ctx, &b)
	for range codes {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
