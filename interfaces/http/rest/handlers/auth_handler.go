package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/domain/core/entities"
	"flowcanvas-backend/pkg/auth"
	"flowcanvas-backend/pkg/common"
	pkgerrors "flowcanvas-backend/pkg/errors"
	"flowcanvas-backend/pkg/observability"
	"flowcanvas-backend/pkg/utils"
)

// AuthHandler handles credential gateway HTTP requests
type AuthHandler struct {
	gateway ports.CredentialGateway
	users   ports.UserRepository
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	gateway ports.CredentialGateway,
	users ports.UserRepository,
	metrics *observability.Collector,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		gateway: gateway,
		users:   users,
		metrics: metrics,
		logger:  logger,
	}
}

// SignUpRequest represents the request body for registration
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=admin editor viewer"`
}

// SignInRequest represents the request body for sign-in
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse represents a successful authentication
type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expiresIn"`
	User      UserResponse `json:"user"`
}

// UserResponse represents a user profile on the wire
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SignUp handles POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := common.ParseJSONBody(r, &req); err != nil {
		common.RespondError(w, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, err)
		return
	}

	role := entities.AccountRole(req.Role)
	session, err := h.gateway.SignUp(r.Context(), req.Email, req.Password, role)
	if err != nil {
		common.RespondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, toSessionResponse(session))
}

// SignIn handles POST /api/v1/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := common.ParseJSONBody(r, &req); err != nil {
		common.RespondError(w, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, err)
		return
	}

	session, err := h.gateway.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.SignIns.WithLabelValues("failure").Inc()
		common.RespondError(w, err)
		return
	}
	h.metrics.SignIns.WithLabelValues("success").Inc()

	common.RespondJSON(w, http.StatusOK, toSessionResponse(session))
}

// SignOut handles POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if err := h.gateway.SignOut(r.Context(), token); err != nil {
		common.RespondError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, pkgerrors.NewUnauthorizedError("not authenticated"))
		return
	}

	profile, err := h.users.GetByID(r.Context(), user.UserID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			// Hosted gateway identities have no local profile row
			common.RespondJSON(w, http.StatusOK, UserResponse{
				ID:    user.UserID,
				Email: user.Email,
			})
			return
		}
		common.RespondError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, UserResponse{
		ID:    profile.ID,
		Email: profile.Email,
		Role:  string(profile.Role),
	})
}

func toSessionResponse(session *ports.Session) SessionResponse {
	return SessionResponse{
		Token:     session.Token,
		ExpiresIn: session.ExpiresIn,
		User: UserResponse{
			ID:    session.User.ID,
			Email: session.User.Email,
			Role:  string(session.User.Role),
		},
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}
