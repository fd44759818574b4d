package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	// allow callers to pass nil for body safely
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("test-secret")
	tmp := t.TempDir()
	_ = os.Setenv("UPLOAD_BASE", tmp)
	initDB()
	initPipeline()
	seedDB()
	r := gin.Default()
	setupRoutes(r)
	return r
}

// The journal flow does not need tesseract: manual entries go straight to
// POST /journal, so this runs against any postgres.
func TestJournalFlow(t *testing.T) {
	r := setupTestServer(t)

	// 1. Register user
	regBody, _ := json.Marshal(map[string]string{"username": "user1", "password": "pass1"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 && resp.Code != 409 {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 2. Login
	loginBody, _ := json.Marshal(map[string]string{"username": "user1", "password": "pass1"})
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(loginBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	// 3. Manual journal entry
	today := time.Now().UTC().Format("2006-01-02")
	entry := map[string]any{
		"supplier_name": "Integration Grocer",
		"entry_date":    today,
		"total_amount":  "115.00",
	}
	body, _ := json.Marshal(entry)
	resp = performRequest(r, http.MethodPost, "/journal", bytes.NewBuffer(body), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("create journal entry failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 4. Same entry again must be flagged as a duplicate
	resp = performRequest(r, http.MethodPost, "/journal", bytes.NewBuffer(body), token, "application/json")
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 duplicate, got %d body=%s", resp.Code, resp.Body.String())
	}

	// 5. Override saves anyway
	entry["override_duplicate"] = true
	body, _ = json.Marshal(entry)
	resp = performRequest(r, http.MethodPost, "/journal", bytes.NewBuffer(body), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("override save failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 6. Inconsistent totals are rejected
	bad := map[string]any{
		"supplier_name": "Bad Totals",
		"entry_date":    today,
		"subtotal":      "100.00",
		"vat_amount":    "15.00",
		"total_amount":  "120.00",
	}
	body, _ = json.Marshal(bad)
	resp = performRequest(r, http.MethodPost, "/journal", bytes.NewBuffer(body), token, "application/json")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inconsistent totals, got %d body=%s", resp.Code, resp.Body.String())
	}

	// 7. Far-future date rejected
	future := map[string]any{
		"supplier_name": "Future Shop",
		"entry_date":    time.Now().UTC().AddDate(0, 0, 10).Format("2006-01-02"),
		"total_amount":  "10.00",
	}
	body, _ = json.Marshal(future)
	resp = performRequest(r, http.MethodPost, "/journal", bytes.NewBuffer(body), token, "application/json")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for future date, got %d body=%s", resp.Code, resp.Body.String())
	}

	// 8. List journal
	resp = performRequest(r, http.MethodGet, "/journal", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("list journal failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 9. Monthly summary scans real grouped rows back out
	resp = performRequest(r, http.MethodGet, "/journal/summary", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("journal summary failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var summary []struct {
		Month string `json:"Month"`
		Total string `json:"Total"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &summary); err != nil {
		t.Fatalf("summary not decodable: %v body=%s", err, resp.Body.String())
	}
	thisMonth := time.Now().UTC().Format("2006-01")
	found := false
	for _, row := range summary {
		if row.Month == thisMonth {
			found = true
		}
	}
	if !found {
		t.Fatalf("summary missing month %s: %s", thisMonth, resp.Body.String())
	}

	// 10. Unauthorized access to protected endpoint should be 401
	unauth := performRequest(r, http.MethodGet, "/journal", nil, "", "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized journal list got %d", unauth.Code)
	}
}

func TestMigrateCommand(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	initDB()
}
