package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/profilehub/internal/account"
	"github.com/stretchr/testify/assert"
)

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "not found",
			err:        &account.Error{Kind: account.KindNotFound, Message: account.MsgUserNotFound},
			wantStatus: http.StatusNotFound,
			wantBody:   `{"detail":"User not found"}`,
		},
		{
			name:       "unauthorized",
			err:        &account.Error{Kind: account.KindUnauthorized, Message: account.MsgInvalidCredentials},
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"detail":"Invalid email or password"}`,
		},
		{
			name:       "conflict",
			err:        &account.Error{Kind: account.KindConflict, Message: account.MsgEmailRegistered},
			wantStatus: http.StatusConflict,
			wantBody:   `{"detail":"Email already registered"}`,
		},
		{
			name:       "wrapped internal",
			err:        fmt.Errorf("outer: %w", &account.Error{Kind: account.KindInternal, Message: account.MsgInternal, Err: errors.New("boom")}),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"detail":"Internal Server Error"}`,
		},
		{
			name:       "plain error",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"detail":"Internal Server Error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			writeError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestValidationError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/signup", nil)

	validationError(c, errors.New("Key: 'SignupRequest.Email' Error:Field validation for 'Email' failed on the 'email' tag"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "SignupRequest.Email")
}
