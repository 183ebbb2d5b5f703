package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func validationRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	ok := func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.POST("/projects", ValidateProject(), ok)
	r.POST("/auth", ValidateCredentials(), ok)

	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestValidateProject(t *testing.T) {
	r := validationRouter()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"name":"X","description":"d","start_date":"2024-01-01","status":"Pending"}`, http.StatusOK},
		{"valid with end date", `{"name":"X","description":"d","start_date":"2024-01-01","end_date":"2024-02-01","status":"Pending"}`, http.StatusOK},
		{"missing name", `{"description":"d","start_date":"2024-01-01","status":"Pending"}`, http.StatusBadRequest},
		{"missing status", `{"name":"X","description":"d","start_date":"2024-01-01"}`, http.StatusBadRequest},
		{"end before start", `{"name":"X","description":"d","start_date":"2024-03-01","end_date":"2024-01-01","status":"Pending"}`, http.StatusBadRequest},
		{"bad start date", `{"name":"X","description":"d","start_date":"not-a-date","status":"Pending"}`, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := postJSON(t, r, "/projects", tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	r := validationRouter()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"email":"a@b.com","password":"secret1"}`, http.StatusOK},
		{"short password", `{"email":"a@b.com","password":"abc"}`, http.StatusBadRequest},
		{"bad email", `{"email":"not-an-email","password":"secret1"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := postJSON(t, r, "/auth", tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestValidateProjectBodyRestored(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/projects", ValidateProject(), func(ctx *gin.Context) {
		var body struct {
			Name string `json:"name"`
		}
		if err := ctx.BindJSON(&body); err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"message": "body was consumed"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"name": body.Name})
	})

	w := postJSON(t, r, "/projects", `{"name":"X","description":"d","start_date":"2024-01-01","status":"Pending"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"name":"X"`) {
		t.Errorf("handler did not see the original body: %s", w.Body.String())
	}
}
