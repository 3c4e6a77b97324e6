package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	authmodels "signup/internal/auth/models"
	"signup/internal/registration/form"
	"signup/internal/registration/handler/mocks"
	"signup/internal/registration/models"
	dErrors "signup/pkg/domain-errors"
	"signup/pkg/testutil"
)

// =============================================================================
// Registration Handler Test Suite
// =============================================================================

type RegistrationHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestRegistrationHandlerSuite(t *testing.T) {
	suite.Run(t, new(RegistrationHandlerSuite))
}

func (s *RegistrationHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func successResult() *models.ValidationResult {
	result := models.NewValidationResult()
	result.Success = true
	result.CleanedData = map[string]any{"username": "jane", "password1": "*************"}
	result.RedirectURL = "/users/7/"
	result.User = &models.User{ID: 7, Username: "jane"}
	result.Session = &authmodels.Session{AccessToken: "token-abc"}
	return result
}

func (s *RegistrationHandlerSuite) TestDescribe() {
	s.Run("open registration returns the form", func() {
		f, err := form.New(form.DefaultSchema())
		s.Require().NoError(err)
		s.service.EXPECT().RegistrationAllowed().Return(true)
		s.service.EXPECT().Form().Return(f)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/register"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		desc := testutil.UnmarshalResponse[form.Description](s.T(), rr)
		s.Equal("username", desc.IdentifierField)
		s.NotEmpty(desc.Fields)
	})

	s.Run("closed registration is forbidden", func() {
		s.service.EXPECT().RegistrationAllowed().Return(false)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/register"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "registration_closed")
	})
}

func (s *RegistrationHandlerSuite) TestClosedPage() {
	s.service.EXPECT().RegistrationAllowed().Return(false)

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/register/closed"))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.JSONEq(`{"registration_open":false}`, rr.Body.String())
}

func (s *RegistrationHandlerSuite) TestRegisterJSON() {
	s.service.EXPECT().
		ValidateAndRegister(gomock.Any(), models.RegistrationRequest{
			"username":  "jane",
			"password1": "correct horse",
			"tos":       "true",
			"age":       "42",
		}).
		Return(successResult(), nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/register", map[string]any{
		"username":  "jane",
		"password1": "correct horse",
		"tos":       true,
		"age":       42,
		"nickname":  nil,
	})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	s.Equal("/users/7/", rr.Header().Get("Location"))
	s.JSONEq(`{
		"success": true,
		"cleaned_data": {"username": "jane", "password1": "*************"},
		"redirect_url": "/users/7/",
		"user_id": "7",
		"access_token": "token-abc"
	}`, rr.Body.String())
}

func (s *RegistrationHandlerSuite) TestRegisterForm() {
	s.service.EXPECT().
		ValidateAndRegister(gomock.Any(), models.RegistrationRequest{"username": "jane", "email": "jane@example.org"}).
		Return(successResult(), nil)

	values := url.Values{"username": {"jane", "ignored"}, "email": {"jane@example.org"}}
	rr := testutil.DoRequest(s.router, testutil.NewFormRequest(s.T(), http.MethodPost, "/register", values))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
}

func (s *RegistrationHandlerSuite) TestRegisterValidationErrors() {
	result := models.NewValidationResult()
	result.CleanedData = map[string]any{"email": "jane@example.org"}
	result.Add(models.FieldError{Field: "username", Kind: models.MissingField, Message: "This field is required."})
	s.service.EXPECT().ValidateAndRegister(gomock.Any(), gomock.Any()).Return(result, nil)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/register",
		map[string]string{"email": "jane@example.org"}))

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	s.JSONEq(`{
		"success": false,
		"errors": {"username": ["This field is required."]},
		"cleaned_data": {"email": "jane@example.org"}
	}`, rr.Body.String())
	s.Empty(rr.Header().Get("Location"))
}

func (s *RegistrationHandlerSuite) TestReauthenticationFailureReportsCreatedUser() {
	result := models.NewValidationResult()
	result.User = &models.User{ID: 9}
	result.Add(models.FieldError{Field: models.UserErrors, Kind: models.AuthenticationFailure, Message: "log in"})
	s.service.EXPECT().ValidateAndRegister(gomock.Any(), gomock.Any()).Return(result, nil)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/register",
		map[string]string{"username": "jane"}))

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	body := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.Equal("9", (*body)["user_id"])
	s.NotContains(rr.Body.String(), "access_token")
}

func (s *RegistrationHandlerSuite) TestRegisterServiceErrors() {
	s.Run("closed", func() {
		s.service.EXPECT().ValidateAndRegister(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "registration is closed"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/register",
			map[string]string{"username": "jane"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "registration_closed")
	})

	s.Run("internal error hides its message", func() {
		s.service.EXPECT().ValidateAndRegister(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "pq: connection refused"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/register",
			map[string]string{"username": "jane"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, string(dErrors.CodeInternal))
		s.NotContains(rr.Body.String(), "connection refused")
	})
}

func (s *RegistrationHandlerSuite) TestRegisterRejectsBadBodies() {
	cases := []struct {
		name string
		req  *http.Request
	}{
		{"malformed json", testutil.NewRequestWithBody(s.T(), http.MethodPost, "/register", `{"username":`)},
		{"nested value", testutil.NewRequestWithBody(s.T(), http.MethodPost, "/register", `{"username":{"a":1}}`)},
		{"json array", testutil.NewRequestWithBody(s.T(), http.MethodPost, "/register", `["jane"]`)},
		{"unsupported content type", func() *http.Request {
			req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/register", "username=jane")
			req.Header.Set("Content-Type", "text/plain")
			return req
		}()},
		{"oversized body", testutil.NewRequestWithBody(s.T(), http.MethodPost, "/register",
			`{"username":"`+strings.Repeat("a", maxBodyBytes)+`"}`)},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rr := testutil.DoRequest(s.router, tc.req)
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
		})
	}
}

func (s *RegistrationHandlerSuite) TestSubmitLimiterWrapsOnlyPost() {
	router := chi.NewRouter()
	var limited int
	limiter := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limited++
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)), WithSubmitLimiter(limiter)).Register(router)

	s.service.EXPECT().RegistrationAllowed().Return(false)
	testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/register/closed"))
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/register", map[string]string{}))

	s.Equal(http.StatusTooManyRequests, rr.Code)
	s.Equal(1, limited)
}

var _ Service = (*mocks.MockService)(nil)
