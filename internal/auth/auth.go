package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusBanned   Status = "banned"
)

// User is one directory record. Records are created on first login and
// mutated only by admin actions (status, role) and login bookkeeping.
type User struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	LastLogin time.Time `json:"last_login"`
}

// Directory abstracts user record persistence.
// Implementations must be safe for concurrent use.
type Directory interface {
	GetUser(ctx context.Context, id string) (User, bool, error)
	PutUser(ctx context.Context, u User) error
	ListUsers(ctx context.Context) ([]User, error)
}

var (
	// ErrUnauthorized is returned when no identity is presented at all.
	ErrUnauthorized = errors.New("unauthorized: no user id")

	// ErrNotFound is returned when the identity is unknown to the directory.
	ErrNotFound = errors.New("user not found")

	// ErrForbidden is returned when the account is not approved and not admin.
	ErrForbidden = errors.New("access denied: account not approved")
)

type Service struct {
	dir Directory
}

func New(dir Directory) *Service {
	return &Service{dir: dir}
}

// Authorize validates the identity against the directory on every call.
// Results are never cached: status can be revoked between requests.
func (s *Service) Authorize(ctx context.Context, userID string) (User, error) {
	if userID == "" {
		return User{}, ErrUnauthorized
	}
	u, ok, err := s.dir.GetUser(ctx, userID)
	if err != nil {
		return User{}, fmt.Errorf("directory lookup: %w", err)
	}
	if !ok {
		return User{}, ErrNotFound
	}
	if u.Status != StatusApproved && u.Role != RoleAdmin {
		return User{}, ErrForbidden
	}
	return u, nil
}

// Register records a login. A first login creates a pending record;
// later logins only refresh LastLogin.
func (s *Service) Register(ctx context.Context, userID string, now time.Time) (User, error) {
	if userID == "" {
		return User{}, ErrUnauthorized
	}
	u, ok, err := s.dir.GetUser(ctx, userID)
	if err != nil {
		return User{}, fmt.Errorf("directory lookup: %w", err)
	}
	if !ok {
		u = User{ID: userID, Role: RoleUser, Status: StatusPending, CreatedAt: now}
	}
	u.LastLogin = now
	if err := s.dir.PutUser(ctx, u); err != nil {
		return User{}, fmt.Errorf("directory put: %w", err)
	}
	return u, nil
}

func (s *Service) Approve(ctx context.Context, userID string) error {
	return s.setStatus(ctx, userID, StatusApproved)
}

func (s *Service) Ban(ctx context.Context, userID string) error {
	return s.setStatus(ctx, userID, StatusBanned)
}

func (s *Service) setStatus(ctx context.Context, userID string, st Status) error {
	u, ok, err := s.dir.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("directory lookup: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	u.Status = st
	return s.dir.PutUser(ctx, u)
}

func (s *Service) SetRole(ctx context.Context, userID string, role Role) error {
	if role != RoleUser && role != RoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}
	u, ok, err := s.dir.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("directory lookup: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	return s.dir.PutUser(ctx, u)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.dir.ListUsers(ctx)
}

// EnsureAdmin creates or promotes the bootstrap admin from config so a
// fresh deployment is administrable.
func (s *Service) EnsureAdmin(ctx context.Context, userID string, now time.Time) error {
	if userID == "" {
		return nil
	}
	u, ok, err := s.dir.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("directory lookup: %w", err)
	}
	if !ok {
		u = User{ID: userID, CreatedAt: now}
	}
	u.Role = RoleAdmin
	u.Status = StatusApproved
	return s.dir.PutUser(ctx, u)
}
