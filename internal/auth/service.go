package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/shopfront/client-go/internal/gateway"
	pkgerrors "github.com/shopfront/client-go/pkg/errors"
)

// LoginInput carries the credential pair for the token endpoint.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput carries the signup form. The password is submitted twice so
// mismatches are caught before the request leaves the client.
type RegisterInput struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// TokenPair is the credential pair minted by the backend.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type caller interface {
	DoJSON(ctx context.Context, req gateway.Request, out any) error
}

type sessionStore interface {
	Login(ctx context.Context, accessToken, refreshToken string) error
}

// Service drives the login and registration flows, installing minted
// credentials into the session store.
type Service struct {
	api      caller
	session  sessionStore
	validate *validator.Validate
}

func NewService(api caller, session sessionStore) (*Service, error) {
	if api == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if session == nil {
		return nil, fmt.Errorf("session store required")
	}
	return &Service{api: api, session: session, validate: validator.New()}, nil
}

// Login exchanges the credential pair for tokens and opens the session.
func (s *Service) Login(ctx context.Context, input LoginInput) error {
	if err := s.validate.Struct(input); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "username and password are required")
	}

	var pair TokenPair
	err := s.api.DoJSON(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      "token/",
		Body:      input,
		Operation: "login",
	}, &pair)
	if err != nil {
		return err
	}
	if pair.Access == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "backend returned no access token")
	}

	return s.session.Login(ctx, pair.Access, pair.Refresh)
}

// Register creates the account and then logs in with the new credentials.
// Field problems are caught locally first; backend per-field rejections come
// back as validation errors with the offending field's message.
func (s *Service) Register(ctx context.Context, input RegisterInput) error {
	if err := s.validate.Struct(input); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, registrationMessage(err))
	}

	// The backend keys accounts on username and expects the password twice;
	// the display name fills the username role.
	err := s.api.DoJSON(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "register/",
		Body: map[string]string{
			"username":  input.Name,
			"email":     input.Email,
			"password":  input.Password,
			"password2": input.ConfirmPassword,
		},
		Operation: "register",
	}, nil)
	if err != nil {
		return err
	}

	return s.Login(ctx, LoginInput{Username: input.Name, Password: input.Password})
}

func registrationMessage(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return "registration form is incomplete"
	}
	field := fields[0]
	switch {
	case field.Field() == "ConfirmPassword" && field.Tag() == "eqfield":
		return "passwords do not match"
	case field.Field() == "Password" && field.Tag() == "min":
		return "password must be at least 8 characters"
	case field.Tag() == "email":
		return "email address is not valid"
	default:
		return fmt.Sprintf("%s is required", field.Field())
	}
}
