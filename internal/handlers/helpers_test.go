package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/planora-dev/planora/db"
	"github.com/planora-dev/planora/internal/auth"
	"github.com/planora-dev/planora/internal/cache"
	"github.com/planora-dev/planora/internal/config"
	"github.com/planora-dev/planora/internal/models"
	"github.com/planora-dev/planora/internal/router"
	"github.com/planora-dev/planora/internal/services"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

// recordingMailer stands in for the SMTP transport. Set fail to simulate
// an unreachable mail server.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *recordingMailer) Send(to, subject, body string) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) sentTo(email string) []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMail
	for _, s := range m.sent {
		if s.To == email {
			out = append(out, s)
		}
	}
	return out
}

type testApp struct {
	router *gin.Engine
	mailer *recordingMailer
	cache  *cache.Cache
	upload string
}

// newTestApp boots the full router against a fresh in-memory database, the
// way main boots it against postgres. A non-nil calendar service replaces
// the default unreachable one.
func newTestApp(t *testing.T, calendar *services.CalendarService) *testApp {
	t.Helper()

	gin.SetMode(gin.TestMode)

	t.Setenv("JWT_SECRET", "handler-test-secret")
	if err := auth.InitJWTSecret(); err != nil {
		t.Fatalf("InitJWTSecret: %v", err)
	}

	if err := db.ConnectTestDatabase(); err != nil {
		t.Fatalf("ConnectTestDatabase: %v", err)
	}

	if calendar == nil {
		calendar = services.NewCalendarServiceWithTokenSource(
			"http://calendar.invalid", "primary", "America/Sao_Paulo",
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}), nil)
	}

	app := &testApp{
		mailer: &recordingMailer{},
		cache:  cache.New(time.Hour),
		upload: t.TempDir(),
	}

	deps := router.Dependencies{
		Config: config.Config{
			FrontendOrigin: "http://localhost:3000",
			UploadDir:      app.upload,
		},
		Log:      zap.NewNop().Sugar(),
		Cache:    app.cache,
		Mailer:   app.mailer,
		Calendar: calendar,
	}

	app.router = router.NewRouter(deps)
	return app
}

func (a *testApp) request(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func jsonUnmarshal(data []byte, out interface{}) error {
	return json.Unmarshal(data, out)
}

func querySafe(value string) string {
	return url.QueryEscape(value)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func seedUser(t *testing.T, name, email, role string) (models.User, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	user := models.User{Name: name, Email: email, PasswordHash: string(hash), Role: role}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	token, err := auth.GenerateJWT(user.ID, user.Name)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	return user, token
}

func seedProject(t *testing.T, name, status, start, end string) models.Project {
	t.Helper()

	startDate, err := time.Parse("2006-01-02", start)
	if err != nil {
		t.Fatalf("parse start date: %v", err)
	}

	project := models.Project{Name: name, Description: "seeded", StartDate: startDate, Status: status}

	if end != "" {
		endDate, err := time.Parse("2006-01-02", end)
		if err != nil {
			t.Fatalf("parse end date: %v", err)
		}
		project.EndDate = &endDate
	}

	if err := db.DB.Create(&project).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}

	return project
}

func seedMembership(t *testing.T, projectID, userID uint) {
	t.Helper()

	m := models.ProjectMembership{ProjectID: projectID, UserID: userID}
	if err := db.DB.Create(&m).Error; err != nil {
		t.Fatalf("create membership: %v", err)
	}
}

func multipartUpload(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	return &buf, w.FormDataContentType()
}

func (a *testApp) postMultipart(t *testing.T, path string, body *bytes.Buffer, contentType, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}
