package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/profilehub/internal/account"
	"github.com/jon4hz/profilehub/internal/api/models"
	"github.com/jon4hz/profilehub/internal/storage"
	"github.com/samber/lo"
)

const (
	msgSignupSuccessful = "Signup successful!"
	msgLoginSuccessful  = "Login successful"
	msgUploadSuccessful = "Profile picture uploaded successfully"
)

type Handler struct {
	service *account.Service
	files   storage.Store
}

func New(service *account.Service, files storage.Store) *Handler {
	return &Handler{
		service: service,
		files:   files,
	}
}

// Signup registers a new account. A duplicate email is reported in-band with success=false.
func (h *Handler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	err := h.service.Signup(c.Request.Context(), lo.FromPtr(req.Username), req.Email, lo.FromPtr(req.Password))
	if err != nil {
		var accErr *account.Error
		if errors.As(err, &accErr) && accErr.Kind == account.KindConflict {
			c.JSON(http.StatusOK, models.SignupResponse{
				Success: false,
				Message: accErr.Message,
			})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SignupResponse{
		Success: true,
		Message: msgSignupSuccessful,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	email, err := h.service.Login(c.Request.Context(), lo.FromPtr(req.Email), lo.FromPtr(req.Password))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Message: msgLoginSuccessful,
		User:    email,
	})
}

func (h *Handler) Profile(c *gin.Context) {
	var uri models.EmailURI
	if err := c.ShouldBindUri(&uri); err != nil {
		validationError(c, err)
		return
	}

	profile, err := h.service.Profile(c.Request.Context(), uri.Email)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ToProfileResponse(profile))
}

// UploadProfilePic stores the uploaded file and points the user's profile at it.
func (h *Handler) UploadProfilePic(c *gin.Context) {
	var uri models.EmailURI
	if err := c.ShouldBindUri(&uri); err != nil {
		validationError(c, err)
		return
	}

	var req models.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		validationError(c, err)
		return
	}

	file, err := req.File.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	path, err := h.service.UploadProfilePic(c.Request.Context(), uri.Email, req.File.Filename, file)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.UploadResponse{
		Message: msgUploadSuccessful,
		Path:    path,
	})
}

// ServeUpload streams a stored file. Used when the files don't live on the local disk.
func (h *Handler) ServeUpload(c *gin.Context) {
	obj, err := h.files.Open(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Detail: "Not Found"})
			return
		}
		writeError(c, err)
		return
	}
	defer obj.Body.Close() //nolint:errcheck

	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, nil)
}

// Health reports whether the database is reachable.
func (h *Handler) Health(c *gin.Context) {
	if err := h.service.Ping(c.Request.Context()); err != nil {
		log.Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, models.HealthResponse{Status: "unavailable"})
		return
	}
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}

// NotFound answers requests for unknown routes.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{Detail: "Not Found"})
}

// MethodNotAllowed answers requests with an unsupported method.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{Detail: "Method Not Allowed"})
}
