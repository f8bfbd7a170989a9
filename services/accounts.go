package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/events"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/store"
	"github.com/cppla/chamran/utils"
)

var (
	ErrInvalidName   = apperrors.New(apperrors.KindInvalid, "InvalidName", "Name cannot be empty", nil)
	ErrEmptyPassword = apperrors.New(apperrors.KindAuthorizationFailed, "AuthzFailed", "Password cannot be empty", nil)
)

var validate = validator.New()

// AccountService handles signup, login and profile changes.
type AccountService struct {
	users       store.UserStore
	events      events.Publisher
	logger      *zap.Logger
	adminEmail  string
	maintenance bool
}

func NewAccountService(users store.UserStore, pub events.Publisher, logger *zap.Logger, adminEmail string, maintenance bool) *AccountService {
	return &AccountService{
		users:       users,
		events:      pub,
		logger:      logger,
		adminEmail:  strings.TrimSpace(adminEmail),
		maintenance: maintenance,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return "", apperrors.ErrInvalidEmail
	}
	return email, nil
}

func normalizeName(name string) (string, error) {
	name = utils.SanitizeText(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

func (a *AccountService) isAdminEmail(email string) bool {
	return a.adminEmail != "" && strings.EqualFold(email, a.adminEmail)
}

// hash returns the stored form of password. An empty password stores an empty credential.
func hash(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	h, err := utils.HashPassword(password)
	if err != nil {
		return "", apperrors.Internal("hash password", err)
	}
	return h, nil
}

// Signup creates a member account. The admin email is reserved outside maintenance mode, and
// so are empty passwords.
func (a *AccountService) Signup(ctx context.Context, name, email, password string) (*models.User, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	email, err = normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if !a.maintenance {
		if a.isAdminEmail(email) {
			return nil, apperrors.ErrUserExists
		}
		if password == "" {
			return nil, ErrEmptyPassword
		}
	}
	credential, err := hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Name: name, Email: email, Credential: credential, Role: models.RoleMember}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, err
	}
	a.logger.Info("user signed up", zap.String("user_id", user.ID))
	events.Emit(ctx, a.events, a.logger, events.UserCreated, events.UserEvent{UserID: user.ID, Email: user.Email})
	return user, nil
}

// Login verifies the password of the account registered under email.
func (a *AccountService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := a.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrAuthnFailed
		}
		return nil, err
	}
	if !user.HasCredential() {
		if password == "" && a.maintenance {
			return user, nil
		}
		return nil, apperrors.ErrAuthnFailed
	}
	if !utils.CheckPassword(user.Credential, password) {
		return nil, apperrors.ErrAuthnFailed
	}
	return user, nil
}

// ChangePassword sets the password of userID on behalf of callerID. Members may only change
// their own password; the admin may change anyone's but its own.
func (a *AccountService) ChangePassword(ctx context.Context, callerID string, caller models.Privileged, userID, password string) error {
	if caller == nil || callerID == "" {
		return apperrors.ErrAuthzFailed
	}
	if caller.IsAdmin() {
		if callerID == userID {
			return apperrors.ErrAuthzFailed
		}
	} else if callerID != userID {
		return apperrors.ErrAuthzFailed
	}
	if password == "" && !a.maintenance {
		return ErrEmptyPassword
	}
	credential, err := hash(password)
	if err != nil {
		return err
	}
	_, err = a.users.Update(ctx, userID, models.UserPatch{Credential: models.Some(credential)})
	return err
}

// UpdateUser applies a profile patch and reports whether anything changed.
func (a *AccountService) UpdateUser(ctx context.Context, userID string, patch models.UserPatch) (bool, error) {
	patch.Credential = models.Optional[string]{}
	if patch.Empty() {
		return false, apperrors.ErrEmptyPatch
	}
	if patch.Name.Set {
		name, err := normalizeName(patch.Name.Value)
		if err != nil {
			return false, err
		}
		patch.Name.Value = name
	}
	if patch.Email.Set {
		email, err := normalizeEmail(patch.Email.Value)
		if err != nil {
			return false, err
		}
		if a.isAdminEmail(email) && !a.maintenance {
			return false, apperrors.ErrUserExists
		}
		patch.Email.Value = email
	}
	return a.users.Update(ctx, userID, patch)
}

// ListUsers lists users matching filter.
func (a *AccountService) ListUsers(ctx context.Context, filter store.UserFilter) ([]models.User, error) {
	return a.users.List(ctx, filter)
}

// User returns one user.
func (a *AccountService) User(ctx context.Context, id string) (*models.User, error) {
	return a.users.Get(ctx, id)
}

// EnsureAdmin creates the admin account unless an account with that email exists.
// created is false when the account was already there.
func (a *AccountService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.User, bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, false, err
	}
	existing, err := a.users.GetByEmail(ctx, email)
	if err == nil {
		if !existing.IsAdmin() {
			a.logger.Warn("admin email belongs to a member account", zap.String("user_id", existing.ID))
		}
		return existing, false, nil
	}
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, false, err
	}
	if name, err = normalizeName(name); err != nil {
		return nil, false, err
	}
	credential, err := hash(password)
	if err != nil {
		return nil, false, err
	}
	admin := &models.User{Name: name, Email: email, Credential: credential, Role: models.RoleAdmin}
	if err := a.users.Create(ctx, admin); err != nil {
		return nil, false, err
	}
	a.logger.Info("admin account created", zap.String("user_id", admin.ID))
	return admin, true, nil
}
