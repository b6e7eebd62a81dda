package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrUnauthenticated = errors.New("not authenticated")

// session:{token} -> JSON Identity
const keySession = "session:%s"

// Service issues and resolves opaque bearer tokens. A token is a uuid whose
// session lives in Redis with a TTL; resolving never touches Postgres.
type Service struct {
	repo     Repository
	sessions *redis.Client
	ttl      time.Duration
}

func NewService(repo Repository, sessions *redis.Client, ttl time.Duration) *Service {
	return &Service{repo: repo, sessions: sessions, ttl: ttl}
}

func (s *Service) Register(ctx context.Context, name, email, password string) (*User, error) {
	if name == "" || email == "" || password == "" {
		return nil, errors.New("name, email and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies the credentials and opens a session. The returned token is
// the bearer credential for subsequent requests.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrUnauthenticated
	}
	if !CheckPassword(u.PasswordHash, password) {
		return "", nil, ErrUnauthenticated
	}
	token := uuid.NewString()
	b, err := json.Marshal(Identity{UserID: u.ID, Role: u.Role})
	if err != nil {
		return "", nil, err
	}
	if err := s.sessions.Set(ctx, fmt.Sprintf(keySession, token), b, s.ttl).Err(); err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Resolve maps a bearer token back to the identity that opened the session.
func (s *Service) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	raw, err := s.sessions.Get(ctx, fmt.Sprintf(keySession, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Identity{}, ErrUnauthenticated
		}
		return Identity{}, err
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Del(ctx, fmt.Sprintf(keySession, token)).Err()
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}
