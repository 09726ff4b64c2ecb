package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"fieldgate.org/internal/ids"
)

const (
	// Issued credentials expire after a fixed interval. Expiry is enforced
	// by the lookup predicate, not by a background sweep.
	defaultTTL = 720 * time.Hour

	tokenBytes = 16
)

const pgErrUniqueViolation = "23505"

// Service issues and resolves session credentials backed by PostgreSQL.
type Service struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithTTL overrides the credential lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(db *sql.DB, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, errors.New("session: database handle is required")
	}
	s := &Service{db: db, ttl: defaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Session is an issued credential bound to a user.
type Session struct {
	UserID     int64     `json:"user_id"`
	Credential string    `json:"credential"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Register creates a user with a bcrypt password hash and issues the first
// credential. Duplicate emails surface as ErrConflict.
func (s *Service) Register(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return Session{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(password) == "" {
		return Session{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, err
	}

	var userID int64
	row := s.db.QueryRowContext(ctx,
		`insert into users (email, password_hash) values ($1, $2) returning id`,
		email, hash,
	)
	if err := row.Scan(&userID); err != nil {
		if isUniqueViolation(err) {
			return Session{}, ErrConflict
		}
		return Session{}, err
	}
	return s.issue(ctx, userID)
}

// Login verifies the password for the given email and issues a fresh
// credential. A user may hold multiple live credentials concurrently.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return Session{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	var (
		userID int64
		hash   string
	)
	row := s.db.QueryRowContext(ctx,
		`select id, password_hash from users where email = $1`, email)
	if err := row.Scan(&userID, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := VerifyPassword(hash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(ctx, userID)
}

// Resolve validates a raw bearer credential and returns the bound user id.
// No side effects; malformed input never reaches the storage layer.
func (s *Service) Resolve(ctx context.Context, raw string) (int64, error) {
	cred, err := ParseCredential(raw)
	if err != nil {
		return 0, err
	}
	var one int
	row := s.db.QueryRowContext(ctx,
		`select 1 from credentials where token = $1 and user_id = $2 and expires_at > $3`,
		cred.Token, cred.UserID, s.now().UTC(),
	)
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAuthInvalid
		}
		return 0, err
	}
	return cred.UserID, nil
}

func (s *Service) issue(ctx context.Context, userID int64) (Session, error) {
	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	expiresAt := s.now().UTC().Add(s.ttl)
	_, err = s.db.ExecContext(ctx,
		`insert into credentials (id, user_id, token, expires_at) values ($1, $2, $3, $4)`,
		ids.New(), userID, token, expiresAt,
	)
	if err != nil {
		return Session{}, err
	}
	return Session{
		UserID:     userID,
		Credential: fmt.Sprintf("%s-%d", token, userID),
		ExpiresAt:  expiresAt,
	}, nil
}

func newToken() (string, error) {
	var b [tokenBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
