package app

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"portfolio_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAppConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:    config.ServerConfig{Port: "0", Mode: "test"},
		Database:  config.DatabaseConfig{Driver: config.DatabaseMemory},
		JWT:       config.JWTConfig{Secret: "0123456789abcdef0123456789abcdef", ExpireTime: time.Hour},
		Storage:   config.StorageConfig{Type: config.StorageMemory},
		Events:    config.EventsConfig{Driver: config.EventsLog, Topic: "evidence-events"},
		RateLimit: config.RateLimitConfig{MaxRequests: 1000, WindowMinutes: 1},
		Upload:    config.UploadConfig{MaxSizeMB: 5, AllowedExtensions: []string{".pdf"}},
		Download:  config.DownloadConfig{Extension: ".pdf", Folder: "downloads"},
		Log:       config.LogConfig{Level: "error", File: filepath.Join(t.TempDir(), "app.log")},
		Admin:     config.AdminConfig{Name: "Root", Email: "root@example.com", Password: "root-password"},
	}
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func (c *client) send(req *http.Request) (int, map[string]json.RawMessage) {
	c.t.Helper()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var body map[string]json.RawMessage
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w.Code, body
}

func (c *client) json(method, path, payload string) (int, map[string]json.RawMessage) {
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func (c *client) login(email, password string) {
	c.t.Helper()
	c.token = ""
	code, body := c.json(http.MethodPost, "/api/login", `{"email":"`+email+`","password":"`+password+`"}`)
	require.Equal(c.t, http.StatusOK, code)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(c.t, json.Unmarshal(body["data"], &data))
	require.NotEmpty(c.t, data.Token)
	c.token = data.Token
}

func TestApp_PortfolioFlow(t *testing.T) {
	a, err := NewApp(testAppConfig(t))
	require.NoError(t, err)
	defer a.Close()

	c := &client{t: t, router: a.Router}

	code, _ := c.send(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, code)

	code, _ = c.send(httptest.NewRequest(http.MethodGet, "/api/evidence", nil))
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = c.json(http.MethodPost, "/api/register", `{"name":"Casey","email":"casey@example.com","password":"correct-horse","role":"candidate"}`)
	require.Equal(t, http.StatusCreated, code)
	code, _ = c.json(http.MethodPost, "/api/register", `{"name":"Casey","email":"casey@example.com","password":"correct-horse","role":"candidate"}`)
	assert.Equal(t, http.StatusConflict, code)

	c.login("casey@example.com", "correct-horse")

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("title", "Isolation procedure"))
	require.NoError(t, mw.WriteField("unitId", "EWA-1"))
	require.NoError(t, mw.WriteField("criterionId", "EWA-1.1"))
	part, err := mw.CreateFormFile("file", "isolation.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4\n%%EOF\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/evidence", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	code, resp := c.send(req)
	require.Equal(t, http.StatusCreated, code)

	var ev struct {
		ID      string `json:"id"`
		Version int    `json:"version"`
	}
	require.NoError(t, json.Unmarshal(resp["data"], &ev))

	code, _ = c.json(http.MethodPost, "/api/assessor/evidence/"+ev.ID+"/feedback", `{"status":"Approved"}`)
	assert.Equal(t, http.StatusForbidden, code)

	c.login("root@example.com", "root-password")
	code, _ = c.json(http.MethodPost, "/api/assessor/evidence/"+ev.ID+"/feedback", `{"status":"Approved","expectedVersion":1}`)
	require.Equal(t, http.StatusOK, code)

	c.login("casey@example.com", "correct-horse")
	code, resp = c.send(httptest.NewRequest(http.MethodPost, "/api/qualifications/EWA/compile", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, string(resp["message"]), "EWA-1")

	code, resp = c.send(httptest.NewRequest(http.MethodGet, "/api/qualifications/EWA/stats", nil))
	require.Equal(t, http.StatusOK, code)
	var stats struct {
		TotalUnits     int `json:"totalUnits"`
		CompletedUnits int `json:"completedUnits"`
	}
	require.NoError(t, json.Unmarshal(resp["data"], &stats))
	assert.Equal(t, 0, stats.CompletedUnits)
	assert.Positive(t, stats.TotalUnits)
}

func TestApp_ConfigCallbacks(t *testing.T) {
	a, err := NewApp(testAppConfig(t))
	require.NoError(t, err)
	defer a.Close()

	var seen *config.Config
	a.RegisterConfigCallback(func(cfg *config.Config) { seen = cfg })

	reloaded := testAppConfig(t)
	a.ApplyConfig(reloaded)
	assert.Same(t, reloaded, seen)
}
