package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/khanghh/appsso/internal/common"
	"github.com/khanghh/appsso/model"
	"github.com/khanghh/appsso/params"
)

// FederatedIdentity is what an identity provider vouches for.
type FederatedIdentity struct {
	Subject       string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

type UserService struct {
	userRepo UserRepository
	now      func() time.Time
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

func validateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < params.UserNameMinLength || n > params.UserNameMaxLength {
		return ErrInvalidName
	}
	return nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	return s.userRepo.First(ctx, userID)
}

// FindOrCreateFederated returns the user matching the external subject or the
// normalized email, creating it on first login. Existing users get their
// login time and picture refreshed, and are linked to the subject if they were
// created by an administrator.
func (s *UserService) FindOrCreateFederated(ctx context.Context, identity FederatedIdentity) (*model.User, bool, error) {
	email := NormalizeEmail(identity.Email)
	if email == "" {
		return nil, false, ErrMissingEmail
	}
	now := s.now()

	user, err := s.userRepo.FindByGoogleIDOrEmail(ctx, identity.Subject, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	if user != nil {
		var link *string
		if user.GoogleID == nil {
			link = &identity.Subject
		}
		picture := identity.Picture
		if picture == "" {
			picture = user.Picture
		}
		if err := s.userRepo.TouchLogin(ctx, user.ID, picture, link, now); err != nil {
			return nil, false, err
		}
		if link != nil {
			user.GoogleID = link
		}
		user.Picture = picture
		user.LastLoginAt = &now
		return user, false, nil
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = email
	}
	subject := identity.Subject
	user = &model.User{
		Email:           email,
		Name:            name,
		GoogleID:        &subject,
		Picture:         identity.Picture,
		IsActive:        true,
		IsEmailVerified: identity.EmailVerified,
		LastLoginAt:     &now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if common.IsDuplicateKey(err) {
			return nil, false, ErrEmailTaken
		}
		return nil, false, err
	}
	return user, true, nil
}

// CreateUser registers a user ahead of their first login.
func (s *UserService) CreateUser(ctx context.Context, email string, name string) (*model.User, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	user := &model.User{
		Email:    email,
		Name:     name,
		IsActive: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if common.IsDuplicateKey(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) SetActive(ctx context.Context, userID string, active bool) error {
	n, err := s.userRepo.SetActive(ctx, userID, active)
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports zero affected rows when the flag already has the value
		if _, err := s.userRepo.First(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.userRepo.List(ctx)
}

func NewUserService(userRepo UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
		now:      time.Now,
	}
}
