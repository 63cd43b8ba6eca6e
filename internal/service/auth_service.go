package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vbonduro/foodguard/internal/foodapi"
)

// User-facing alert texts.
const (
	titleLoginFailed        = "Login Failed"
	titleRegisterFailed     = "Registration Failed"
	titleError              = "Error"
	msgCheckCredentials     = "Please check your credentials."
	msgCheckInput           = "Please check your input."
	msgSomethingWentWrong   = "Something went wrong. Please try again."
	TitleSuccess            = "Success"
	MsgRegistrationComplete = "Registration successful! Please log in."
)

// ErrPasswordMismatch is returned by Register before any network call when
// the password and its confirmation differ.
var ErrPasswordMismatch = &AlertError{Title: titleError, Message: "Passwords do not match."}

// AlertError is a failure that should be shown to the user as an alert.
type AlertError struct {
	Title   string
	Message string
	Err     error
}

func (e *AlertError) Error() string {
	if e.Err != nil {
		return e.Title + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Title + ": " + e.Message
}

func (e *AlertError) Unwrap() error {
	return e.Err
}

// authClient is the subset of foodapi.Client that AuthService requires.
type authClient interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, username, password string) error
}

// sessionWriter is the subset of session.Session that AuthService requires.
type sessionWriter interface {
	SignIn(ctx context.Context, token, email string) error
	SignOut(ctx context.Context) error
}

type AuthService struct {
	client  authClient
	session sessionWriter
	logger  *slog.Logger
}

func NewAuthService(client authClient, session sessionWriter, logger *slog.Logger) *AuthService {
	return &AuthService{client: client, session: session, logger: logger}
}

// Login signs the user in. On any failure no token is stored and the error
// is an *AlertError.
func (s *AuthService) Login(ctx context.Context, email, password string) error {
	token, err := s.client.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn("login failed", "email", email, "error", err)
		return alertFor(err, titleLoginFailed, msgCheckCredentials)
	}

	if err := s.session.SignIn(ctx, token, email); err != nil {
		s.logger.Error("failed to store session token", "error", err)
		return &AlertError{Title: titleError, Message: msgSomethingWentWrong, Err: err}
	}
	s.logger.Info("login succeeded", "email", email)
	return nil
}

type RegisterInput struct {
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
}

// Register creates an account. It does not sign the user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) error {
	if in.Password != in.ConfirmPassword {
		return ErrPasswordMismatch
	}

	if err := s.client.Register(ctx, in.Email, in.Username, in.Password); err != nil {
		s.logger.Warn("registration failed", "email", in.Email, "error", err)
		return alertFor(err, titleRegisterFailed, msgCheckInput)
	}
	s.logger.Info("registration succeeded", "email", in.Email)
	return nil
}

func (s *AuthService) Logout(ctx context.Context) error {
	return s.session.SignOut(ctx)
}

// alertFor maps a client error to an alert. Rejections by the service carry
// its message, or fallback when it sent none; anything else is generic.
func alertFor(err error, title, fallback string) *AlertError {
	var authErr *foodapi.AuthError
	if errors.As(err, &authErr) {
		msg := authErr.Message
		if msg == "" {
			msg = fallback
		}
		return &AlertError{Title: title, Message: msg, Err: err}
	}
	return &AlertError{Title: titleError, Message: msgSomethingWentWrong, Err: err}
}
