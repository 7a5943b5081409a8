package auth

import (
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/user/accountd/apperror"
	"github.com/user/accountd/validation"
)

// Handlers serves the /auth routes.
type Handlers struct {
	service *Service
	log     logrus.FieldLogger
}

// NewHandlers creates auth Handlers.
func NewHandlers(service *Service, log logrus.FieldLogger) *Handlers {
	return &Handlers{service: service, log: log}
}

// HandleRegister handles user registration
// @Summary User Registration
// @Description Registers a new account. The password confirmation is checked but never stored.
// @Tags Auth
// @Accept json
// @Produce json
// @Param registerBody body auth.RegisterRequest true "User registration details"
// @Success 201 {object} auth.UserResponse "User created successfully"
// @Failure 400 {object} apperror.ErrorResponse "Bad Request - Invalid input"
// @Failure 409 {object} apperror.ErrorResponse "Conflict - Email already in use"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /auth/register [post]
func (h *Handlers) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := validation.DecodeAndValidate(r, &req); err != nil {
			apperror.WriteError(w, r, h.log, err)
			return
		}

		user, err := h.service.Register(r.Context(), req)
		if err != nil {
			apperror.WriteError(w, r, h.log, err)
			return
		}

		apperror.WriteJSON(w, http.StatusCreated, UserResponse{User: user.Public()})
	}
}

// HandleLogin handles user login
// @Summary User Login
// @Description Verifies credentials and returns a bearer token. rememberMe selects the longer token lifetime.
// @Tags Auth
// @Accept json
// @Produce json
// @Param loginBody body auth.LoginRequest true "User login credentials"
// @Success 200 {object} auth.LoginResponse "Login successful"
// @Failure 400 {object} apperror.ErrorResponse "Bad Request - Invalid input"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized - Invalid credentials"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /auth/login [post]
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := validation.DecodeAndValidate(r, &req); err != nil {
			apperror.WriteError(w, r, h.log, err)
			return
		}

		result, err := h.service.Login(r.Context(), req, ClientMetaFromRequest(r))
		if err != nil {
			apperror.WriteError(w, r, h.log, err)
			return
		}

		apperror.WriteJSON(w, http.StatusOK, LoginResponse{
			AccessToken: result.AccessToken,
			TokenType:   "Bearer",
			ExpiresAt:   result.ExpiresAt,
			User:        result.User.Public(),
		})
	}
}

// ClientMetaFromRequest extracts the caller IP and user agent. With chi's
// RealIP middleware in front, RemoteAddr already reflects proxy headers.
func ClientMetaFromRequest(r *http.Request) ClientMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return ClientMeta{IPAddress: ip, UserAgent: r.UserAgent()}
}
