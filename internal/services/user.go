package services

import (
	"context"
	"errors"

	"github.com/campusfind/apiserver/internal/auth"
	"github.com/campusfind/apiserver/internal/store"
	"github.com/campusfind/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// ErrFederatedOnly is returned when a password login targets an account
// that has no password (created via federated sign-in).
var ErrFederatedOnly = errors.New("account has no password; use federated sign-in")

// ErrInvalidCredential is returned when the password hash comparison fails.
var ErrInvalidCredential = errors.New("invalid credentials")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	AttachGoogleIdentity(ctx context.Context, userID int, subject, picture string) error
}

// UserService encapsulates account and authentication use-cases.
type UserService struct {
	repo     UserRepository
	verifier auth.FederatedVerifier
}

func NewUserService(repo UserRepository, verifier auth.FederatedVerifier) *UserService {
	return &UserService{repo: repo, verifier: verifier}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates a password account. Fails with store.ErrDuplicateEmail
// if the email is taken.
func (s *UserService) Register(ctx context.Context, name, email, password string) (types.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		Name:         name,
		Email:        email,
		AuthMethod:   types.AuthMethodPassword,
		PasswordHash: string(hashed),
	})
}

// Login verifies a password against the stored hash. Distinguishes a
// missing account (store.ErrNotFound), a federated-only account
// (ErrFederatedOnly), and a wrong password (ErrInvalidCredential).
func (s *UserService) Login(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return types.User{}, err
	}

	if !user.HasPassword() {
		return types.User{}, ErrFederatedOnly
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredential
	}
	return user, nil
}

// LoginWithGoogle verifies a Google ID token and resolves it to an account:
// an existing account matched by email gains the federated subject, a new
// federated-only account is created otherwise. Fails with
// auth.ErrFederatedVerification on any verification error.
func (s *UserService) LoginWithGoogle(ctx context.Context, providerToken string) (types.User, error) {
	identity, err := s.verifier.VerifyIDToken(ctx, providerToken)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.GetByEmail(ctx, identity.Email)
	if err == nil {
		if user.GoogleSubject == "" {
			if err := s.repo.AttachGoogleIdentity(ctx, user.ID, identity.Subject, identity.Picture); err != nil {
				return types.User{}, err
			}
			user.GoogleSubject = identity.Subject
			if identity.Picture != "" {
				user.Picture = identity.Picture
			}
		}
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		Name:          identity.Name,
		Email:         identity.Email,
		AuthMethod:    types.AuthMethodGoogle,
		GoogleSubject: identity.Subject,
		Picture:       identity.Picture,
	})
}
