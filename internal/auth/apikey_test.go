package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestOrganizerKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		key        string
		header     string
		value      string
		wantStatus int
	}{
		{"disabled", "", "", "", http.StatusOK},
		{"missing", "s3cret", "", "", http.StatusUnauthorized},
		{"wrong", "s3cret", headerName, "nope", http.StatusForbidden},
		{"header", "s3cret", headerName, "s3cret", http.StatusOK},
		{"bearer", "s3cret", "Authorization", "Bearer s3cret", http.StatusOK},
		{"basic is not bearer", "s3cret", "Authorization", "Basic s3cret", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", OrganizerKeyMiddleware(tt.key), func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
