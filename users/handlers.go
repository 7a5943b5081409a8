package users

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/user/accountd/apperror"
	"github.com/user/accountd/auth"
	"github.com/user/accountd/validation"
)

// multipartOverhead is the room allowed for multipart boundaries and headers
// on top of the avatar size ceiling.
const multipartOverhead = 64 << 10

// Handlers serves the /me routes. They must sit behind auth.JWTMiddleware.
type Handlers struct {
	service        *Service
	maxAvatarBytes int64
	log            logrus.FieldLogger
}

// NewHandlers creates users Handlers.
func NewHandlers(service *Service, maxAvatarBytes int64, log logrus.FieldLogger) *Handlers {
	return &Handlers{service: service, maxAvatarBytes: maxAvatarBytes, log: log}
}

func (h *Handlers) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		apperror.WriteError(w, r, h.log, apperror.NewUnauthorizedError("unauthorized", nil))
	}
	return id, ok
}

// HandleGetMe returns the current user's profile
// @Summary Get current user's profile
// @Description Retrieves the profile of the authenticated user.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} auth.UserResponse "Successfully retrieved user profile"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 404 {object} apperror.ErrorResponse "Not Found - User not found"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /me [get]
func (h *Handlers) HandleGetMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.userID(w, r)
		if !ok {
			return
		}

		user, err := h.service.GetProfile(r.Context(), userID)
		if err != nil {
			apperror.WriteError(w, r, h.log, err)
			return
		}
		apperror.WriteJSON(w, http.StatusOK, auth.UserResponse{User: user.Public()})
	}
}

// HandlePatchMe updates the current user's profile
// @Summary Update current user's profile
// @Description Partially updates firstName, lastName and birthDate. Email and password are not editable here.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body users.UpdateProfileRequest true "Fields to update"
// @Success 200 {object} auth.UserResponse "Successfully updated user profile"
// @Failure 400 {object} apperror.ErrorResponse "Bad Request - Invalid or empty patch"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 404 {object} apperror.ErrorResponse "Not Found - User not found"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /me [patch]
func (h *Handlers) HandlePatchMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.userID(w, r)
		if !ok {
			return
		}

		var req UpdateProfileRequest
		if err := validation.DecodeAndValidate(r, &req); err != nil {
			apperror.WriteError(w, r, h.log, err)
			return
		}

		user, err := h.service.UpdateProfile(r.Context(), userID, req)
		if err != nil {
			apperror.WriteError(w, r, h.log, err)
			return
		}
		apperror.WriteJSON(w, http.StatusOK, auth.UserResponse{User: user.Public()})
	}
}

// HandleUploadAvatar replaces the current user's avatar
// @Summary Upload avatar
// @Description Accepts a JPEG, PNG or WebP image in the "file" form field.
// @Tags Users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Avatar image"
// @Success 200 {object} auth.UserResponse "Avatar updated"
// @Failure 400 {object} apperror.ErrorResponse "Bad Request - Missing file"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 413 {object} apperror.ErrorResponse "Payload Too Large"
// @Failure 415 {object} apperror.ErrorResponse "Unsupported Media Type"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /me/avatar [post]
func (h *Handlers) HandleUploadAvatar() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.userID(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, h.maxAvatarBytes+multipartOverhead)
		if err := r.ParseMultipartForm(h.maxAvatarBytes + multipartOverhead); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				apperror.WriteError(w, r, h.log, apperror.NewPayloadTooLargeError("file too large", nil))
				return
			}
			apperror.WriteError(w, r, h.log, apperror.NewBadRequestError("expected a multipart form", err))
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			apperror.WriteError(w, r, h.log, apperror.NewBadRequestError("missing file", nil))
			return
		}
		defer file.Close()

		if header.Size > h.maxAvatarBytes {
			apperror.WriteError(w, r, h.log, apperror.NewPayloadTooLargeError("file too large", nil))
			return
		}

		user, err := h.service.UploadAvatar(r.Context(), userID, file)
		if err != nil {
			apperror.WriteError(w, r, h.log, err)
			return
		}
		apperror.WriteJSON(w, http.StatusOK, auth.UserResponse{User: user.Public()})
	}
}

// HandleAccessHistory lists recent logins
// @Summary Access history
// @Description Returns the most recent successful logins, newest first. limit defaults to 5 and is clamped to [1, 50].
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum number of entries"
// @Success 200 {object} users.AccessHistoryResponse "Recent logins"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /me/access-history [get]
func (h *Handlers) HandleAccessHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.userID(w, r)
		if !ok {
			return
		}

		entries, err := h.service.AccessHistory(r.Context(), userID, r.URL.Query().Get("limit"))
		if err != nil {
			apperror.WriteError(w, r, h.log, err)
			return
		}
		apperror.WriteJSON(w, http.StatusOK, AccessHistoryResponse{Items: entries})
	}
}
