// Package auth owns user accounts, password checks and session tokens. It is
// the only writer of session events.
package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tphummel/sitewatch/internal/models"
	"github.com/tphummel/sitewatch/internal/session"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// Store is the subset of db.DB the auth service needs.
type Store interface {
	CreateUser(u *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	CreateSession(s *models.Session) error
	GetSession(id string) (*models.Session, error)
	DeleteSession(id string) error
	GetAgent(id string) (*models.Agent, error)
}

// Publisher receives session transitions.
type Publisher interface {
	Publish(ev session.Event)
}

// Result is returned by operations that issue a user token.
type Result struct {
	Token  string
	Claims *Claims
	User   *models.User
}

// Service implements sign-up, sign-in, refresh, sign-out and verification.
type Service struct {
	store  Store
	tokens *Issuer
	events Publisher
	now    func() time.Time
}

// NewService wires a Service. events may be nil.
func NewService(store Store, tokens *Issuer, events Publisher) *Service {
	return &Service{store: store, tokens: tokens, events: events, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates a new user.
func (s *Service) SignUp(email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	_, err := s.store.GetUserByEmail(email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// SignIn checks credentials and opens a session.
func (s *Service) SignIn(email, password string) (*Result, error) {
	u, err := s.store.GetUserByEmail(normalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !VerifyPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	res, err := s.open(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	res.User = u
	s.publish(session.Event{Kind: session.SignedIn, UserID: u.ID, Email: u.Email, SessionID: res.Claims.ID})
	return res, nil
}

// Refresh rotates the session behind claims: the old token stops working and
// a new one is issued.
func (s *Service) Refresh(claims *Claims) (*Result, error) {
	if err := s.store.DeleteSession(claims.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("delete session: %w", err)
	}
	res, err := s.open(claims.Subject, claims.Email)
	if err != nil {
		return nil, err
	}
	s.publish(session.Event{
		Kind:          session.TokenRefreshed,
		UserID:        claims.Subject,
		Email:         claims.Email,
		SessionID:     claims.ID,
		NextSessionID: res.Claims.ID,
	})
	return res, nil
}

// SignOut ends the session behind claims.
func (s *Service) SignOut(claims *Claims) error {
	if err := s.store.DeleteSession(claims.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidToken
		}
		return fmt.Errorf("delete session: %w", err)
	}
	s.publish(session.Event{Kind: session.SignedOut, UserID: claims.Subject, Email: claims.Email, SessionID: claims.ID})
	return nil
}

// Verify parses token and checks it is still backed by a live session (user
// tokens) or by the agent it was issued to (agent tokens).
func (s *Service) Verify(token string) (*Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	switch claims.Kind {
	case KindUser:
		sess, err := s.store.GetSession(claims.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		if err != nil {
			return nil, fmt.Errorf("lookup session: %w", err)
		}
		if sess.UserID != claims.Subject || !s.now().Before(sess.ExpiresAt) {
			return nil, ErrInvalidToken
		}
	case KindAgent:
		agent, err := s.store.GetAgent(claims.Subject)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		if err != nil {
			return nil, fmt.Errorf("lookup agent: %w", err)
		}
		if agent.TokenID != claims.ID {
			return nil, ErrInvalidToken
		}
	default:
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueAgentToken signs a non-expiring token for agentID. The returned token
// ID must be stored on the agent for Verify to accept the token.
func (s *Service) IssueAgentToken(agentID string) (token, tokenID string, err error) {
	token, claims, err := s.tokens.Issue(KindAgent, agentID, "")
	if err != nil {
		return "", "", fmt.Errorf("issue agent token: %w", err)
	}
	return token, claims.ID, nil
}

func (s *Service) open(userID, email string) (*Result, error) {
	token, claims, err := s.tokens.Issue(KindUser, userID, email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	sess := &models.Session{
		ID:        claims.ID,
		UserID:    userID,
		CreatedAt: claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.store.CreateSession(sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Result{Token: token, Claims: claims}, nil
}

func (s *Service) publish(ev session.Event) {
	if s.events == nil {
		return
	}
	ev.At = s.now().UTC()
	s.events.Publish(ev)
}
