// Package handler exposes the registration workflow over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"signup/internal/registration/form"
	"signup/internal/registration/models"
	dErrors "signup/pkg/domain-errors"
	"signup/pkg/platform/httputil"
	"signup/pkg/requestcontext"
)

const maxBodyBytes = 64 << 10

// Service is the registration workflow the handler drives.
type Service interface {
	RegistrationAllowed() bool
	Form() *form.Form
	ValidateAndRegister(ctx context.Context, req models.RegistrationRequest) (*models.ValidationResult, error)
}

// Handler serves /register.
type Handler struct {
	service Service
	logger  *slog.Logger
	limiter func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithSubmitLimiter wraps POST /register, typically with the per-IP rate
// limiter.
func WithSubmitLimiter(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.limiter = mw
	}
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the registration routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/register", func(r chi.Router) {
		r.Get("/", h.handleDescribe)
		r.Get("/closed", h.handleClosed)
		if h.limiter != nil {
			r.With(h.limiter).Post("/", h.handleRegister)
		} else {
			r.Post("/", h.handleRegister)
		}
	})
}

type registerResponse struct {
	*models.ValidationResult
	UserID      string `json:"user_id,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

type closedResponse struct {
	RegistrationOpen bool `json:"registration_open"`
}

func (h *Handler) handleDescribe(w http.ResponseWriter, r *http.Request) {
	if !h.service.RegistrationAllowed() {
		writeClosed(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.Form().Describe())
}

func (h *Handler) handleClosed(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, closedResponse{RegistrationOpen: h.service.RegistrationAllowed()})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := decodeRegistration(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid registration request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.ValidateAndRegister(ctx, req)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeForbidden) {
			writeClosed(w)
			return
		}
		h.logger.ErrorContext(ctx, "registration failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := registerResponse{ValidationResult: result}
	if result.User != nil {
		resp.UserID = result.User.ID.String()
	}
	if !result.Success {
		httputil.WriteJSON(w, http.StatusBadRequest, resp)
		return
	}
	if result.Session != nil {
		resp.AccessToken = result.Session.AccessToken
	}
	if result.RedirectURL != "" {
		w.Header().Set("Location", result.RedirectURL)
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func writeClosed(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{
		Error:            "registration_closed",
		ErrorDescription: "Registration is currently closed.",
	})
}

// decodeRegistration reads a urlencoded form or a flat JSON object. JSON
// booleans and numbers are accepted and rendered as strings.
func decodeRegistration(w http.ResponseWriter, r *http.Request) (models.RegistrationRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		return decodeJSON(r)
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid form body")
		}
		req := make(models.RegistrationRequest, len(r.PostForm))
		for key, values := range r.PostForm {
			if len(values) > 0 {
				req[key] = values[0]
			}
		}
		return req, nil
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest,
			"content type must be application/json or application/x-www-form-urlencoded")
	}
}

func decodeJSON(r *http.Request) (models.RegistrationRequest, error) {
	var raw map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	req := make(models.RegistrationRequest, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			req[key] = v
		case bool:
			req[key] = strconv.FormatBool(v)
		case json.Number:
			req[key] = v.String()
		default:
			return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("field %q must be a string", key))
		}
	}
	return req, nil
}
