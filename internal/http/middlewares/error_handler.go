package middlewares

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/repo"
)

const maskedMessage = "Something went very wrong!"

type APIError struct {
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// ErrorHandler turns errors recorded on the gin context into the error
// envelope. API paths get JSON; other paths get the error page when one is
// configured.
type ErrorHandler struct {
	log          *slog.Logger
	showInternal bool
	page         string
}

func NewErrorHandler(log *slog.Logger, showInternal bool, page string) *ErrorHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ErrorHandler{log: log, showInternal: showInternal, page: page}
}

func (h *ErrorHandler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		h.Render(c, c.Errors.Last().Err)
	}
}

// Recovery renders panics through the same envelope.
func (h *ErrorHandler) Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.Render(c, fmt.Errorf("panic: %v", recovered))
	})
}

// NotFound answers routes nothing else matched.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		abortWith(c, apperr.New(apperr.RouteNotFound, fmt.Sprintf("Can't find %s on this server", c.Request.URL.RequestURI())))
	}
}

func (h *ErrorHandler) Render(c *gin.Context, err error) {
	e := Resolve(err)
	status := e.Kind.Status()
	reqID := requestIDFrom(c)

	message := e.Message
	if e.Kind == apperr.Internal {
		h.log.ErrorContext(c.Request.Context(), "unhandled error",
			"err", err,
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		if h.showInternal {
			message = err.Error()
		}
	} else if status >= http.StatusInternalServerError {
		h.log.ErrorContext(c.Request.Context(), "request failed", "err", err, "kind", e.Kind, "request_id", reqID)
	}

	if h.page != "" && !strings.HasPrefix(c.Request.URL.Path, "/api") {
		c.HTML(status, h.page, gin.H{
			"title": "Something went wrong!",
			"msg":   message,
		})
		c.Abort()
		return
	}

	statusWord := "fail"
	if status >= http.StatusInternalServerError {
		statusWord = "error"
	}
	c.AbortWithStatusJSON(status, gin.H{
		"status":  statusWord,
		"message": message,
		"error": APIError{
			Code:      string(e.Kind),
			RequestID: reqID,
			Details:   e.Details,
		},
	})
}

// Resolve classifies err. Errors without a kind of their own become Internal
// with the masked message.
func Resolve(err error) *apperr.Error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}

	var dup *repo.DuplicateError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &dup):
		return apperr.WithDetails(apperr.DuplicateField,
			fmt.Sprintf("Duplicate field value: %q. Please use another value!", dup.Value),
			gin.H{"field": dup.Field})
	case errors.Is(err, repo.ErrInvalidID):
		return apperr.New(apperr.BadRequest, "Invalid id")
	case errors.Is(err, repo.ErrNotFound):
		return apperr.New(apperr.NotFoundDocument, "No document found with that ID")
	case errors.As(err, &tooLarge):
		return apperr.New(apperr.PayloadTooLarge, "Request body too large")
	}
	return apperr.Wrap(apperr.Internal, maskedMessage, err)
}

func requestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(CtxRequestID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	// fallback header
	return c.GetHeader(requestIDHeader)
}
