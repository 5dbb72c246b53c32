package http

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"categorizer/internal/config"
	"categorizer/internal/docstore"
	"categorizer/internal/log"
	"categorizer/internal/services"
	"categorizer/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:               "0",
		CORSAllowedOrigins: []string{"*"},
		SQLiteDBPath:       filepath.Join(dir, "test.db"),
		UploadDir:          filepath.Join(dir, "uploads"),
		MaxUploadMB:        1,
		AppEnv:             "test",
		LogLevel:           "error",
		LogFormat:          "text",
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	files, err := docstore.New(cfg.UploadDir, cfg.MaxUploadBytes())
	require.NoError(t, err)

	logger := log.New(log.Config{
		Level:     slog.LevelError,
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})

	srv := NewServer(cfg, Services{
		Transactions: services.NewTransactionService(repo, files, nil),
		Taxonomy:     services.NewTaxonomyService(repo, nil),
		Settings:     services.NewSettingsService(repo, nil),
		Documents:    services.NewDocumentService(repo, files, nil),
		Backup:       services.NewBackupService(repo, files),
		Maintenance:  services.NewMaintenanceService(repo, files),
	}, logger)
	t.Cleanup(func() {
		if srv.rateLimiter != nil {
			srv.rateLimiter.Stop()
		}
	})
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

type txBody struct {
	ID           int64   `json:"id"`
	Date         string  `json:"date"`
	Amount       string  `json:"amount"`
	Description  *string `json:"description"`
	ChildrenFlag bool    `json:"children_flag"`
	DocFlag      bool    `json:"doc_flag"`
	ParentID     *int64  `json:"parent_id"`
	Tags         []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"tags"`
	Documents []struct {
		ID int64 `json:"id"`
	} `json:"documents"`
}

func createTx(t *testing.T, srv *Server, body string) txBody {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/transactions/new", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[txBody](t, rr)
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rr)["error"]
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])

	rr = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ready", decode[map[string]any](t, rr)["status"])
}

func TestCreateTransaction(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	tx := createTx(t, srv, `{"date":"2024-03-01","amount":"12.5","description":"Coffee"}`)
	assert.Equal(t, "2024-03-01", tx.Date)
	assert.Equal(t, "12.50", tx.Amount)
	require.NotNil(t, tx.Description)
	assert.Equal(t, "Coffee", *tx.Description)
	assert.False(t, tx.ChildrenFlag)
	assert.False(t, tx.DocFlag)
	assert.Nil(t, tx.ParentID)

	numeric := createTx(t, srv, `{"date":"2024-03-02","amount":-3.456}`)
	assert.Equal(t, "-3.46", numeric.Amount)
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing amount", `{"date":"2024-03-01"}`, "Missing 'date' or 'amount' in request body."},
		{"missing date", `{"amount":"1.00"}`, "Missing 'date' or 'amount' in request body."},
		{"bad date", `{"date":"01/03/2024","amount":"1.00"}`, "Invalid date format. Use YYYY-MM-DD."},
		{"bad amount", `{"date":"2024-03-01","amount":"abc"}`, "Invalid amount format."},
		{"not an object", `[1,2]`, "Request body must be a JSON object."},
		{"broken json", `{"date":`, "Invalid JSON body."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/transactions/new", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.wantMsg, errorMessage(t, rr))
		})
	}
}

func TestGetUpdateDeleteTransaction(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	tx := createTx(t, srv, `{"date":"2024-03-01","amount":"10","description":"Lunch"}`)
	path := "/transactions/view/" + itoa(tx.ID)

	rr := do(t, srv, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, tx.ID, decode[txBody](t, rr).ID)

	rr = do(t, srv, http.MethodPatch, "/transactions/update/"+itoa(tx.ID), `{"amount":"11.20","description":null}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[txBody](t, rr)
	assert.Equal(t, "11.20", updated.Amount)
	assert.Nil(t, updated.Description)

	rr = do(t, srv, http.MethodDelete, "/transactions/delete/"+itoa(tx.ID), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Transaction deleted successfully", decode[map[string]string](t, rr)["message"])

	rr = do(t, srv, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListTransactions(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	rr := do(t, srv, http.MethodGet, "/transactions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]txBody](t, rr))

	createTx(t, srv, `{"date":"2024-03-01","amount":"1"}`)
	createTx(t, srv, `{"date":"2024-03-02","amount":"2"}`)

	rr = do(t, srv, http.MethodGet, "/transactions", "")
	assert.Len(t, decode[[]txBody](t, rr), 2)
}

func TestSplitTransaction(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	parent := createTx(t, srv, `{"date":"2024-03-01","amount":"30","description":"Groceries"}`)

	rr := do(t, srv, http.MethodPost, "/transactions/"+itoa(parent.ID)+"/split", `{"num_children":2}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	split := decode[struct {
		Parent   txBody   `json:"parent"`
		Children []txBody `json:"children"`
	}](t, rr)
	assert.True(t, split.Parent.ChildrenFlag)
	require.Len(t, split.Children, 2)
	for _, child := range split.Children {
		require.NotNil(t, child.ParentID)
		assert.Equal(t, parent.ID, *child.ParentID)
		assert.Equal(t, "0.00", child.Amount)
		require.NotNil(t, child.Description)
		assert.Equal(t, "Sub-item: Groceries", *child.Description)
	}

	rr = do(t, srv, http.MethodPost, "/transactions/"+itoa(split.Children[0].ID)+"/split", `{"num_children":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodPost, "/transactions/"+itoa(parent.ID)+"/split", `{"num_children":0}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckDuplicates(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	createTx(t, srv, `{"date":"2024-03-01","amount":"12.50","description":"Coffee"}`)

	body := `[
		{"Date":"2024-03-01","Amount":"12.5","Description":"Coffee"},
		{"Date":"2024-03-01","Amount":"12.50","Description":"Tea"},
		{"Amount":"12.50"},
		"nonsense"
	]`
	rr := do(t, srv, http.MethodPost, "/transactions/check-duplicates-bulk", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []bool{true, false, false, false}, decode[[]bool](t, rr))

	rr = do(t, srv, http.MethodPost, "/transactions/check-duplicates-bulk", `{"Date":"2024-03-01"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Expected a list of transactions.", errorMessage(t, rr))
}

func TestTaxonomyAndTagging(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	rr := do(t, srv, http.MethodPost, "/tag-groups", `{"name":"Food"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	group := decode[struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}](t, rr)

	rr = do(t, srv, http.MethodPost, "/tag-groups", `{"name":"Food"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, srv, http.MethodPost, "/tags", `{"name":"Restaurant","color":"#ff0000","tag_group_id":`+itoa(group.ID)+`}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tag := decode[struct {
		ID         int64 `json:"id"`
		TagGroupID int64 `json:"tag_group_id"`
	}](t, rr)
	assert.Equal(t, group.ID, tag.TagGroupID)

	rr = do(t, srv, http.MethodGet, "/tags?group_id="+itoa(group.ID), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	tx := createTx(t, srv, `{"date":"2024-03-01","amount":"20"}`)
	rr = do(t, srv, http.MethodPost, "/transactions/"+itoa(tx.ID)+"/tags", `{"tag_id":`+itoa(tag.ID)+`}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	tagged := decode[txBody](t, rr)
	require.Len(t, tagged.Tags, 1)
	assert.Equal(t, "Restaurant", tagged.Tags[0].Name)

	rr = do(t, srv, http.MethodPost, "/transactions/"+itoa(tx.ID)+"/tags", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Missing 'tag_id' in request body.", errorMessage(t, rr))

	rr = do(t, srv, http.MethodDelete, "/transactions/"+itoa(tx.ID)+"/tags/"+itoa(tag.ID), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[txBody](t, rr).Tags)

	rr = do(t, srv, http.MethodDelete, "/tag-groups/"+itoa(group.ID), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "TagGroup 'Food' and its tags deleted.", decode[map[string]string](t, rr)["message"])

	rr = do(t, srv, http.MethodGet, "/tags/"+itoa(tag.ID), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSettings(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	rr := do(t, srv, http.MethodGet, "/settings/initial_balance", "")
	require.Equal(t, http.StatusOK, rr.Code)
	unset := decode[map[string]any](t, rr)
	assert.Equal(t, "0.00", unset["value"])
	assert.NotContains(t, unset, "id")

	rr = do(t, srv, http.MethodPost, "/settings/initial_balance", `{"value":"100.5"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	set := decode[map[string]any](t, rr)
	assert.Equal(t, "100.50", set["value"])
	assert.Contains(t, set, "id")

	rr = do(t, srv, http.MethodPost, "/settings/favourite_colour", `{"value":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodGet, "/settings/favourite_colour", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func uploadRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDocumentLifecycle(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	tx := createTx(t, srv, `{"date":"2024-03-01","amount":"5"}`)
	uploadPath := "/transactions/" + itoa(tx.ID) + "/documents"

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, uploadRequest(t, uploadPath, "file", "receipt.pdf", []byte("%PDF-1.4 test")))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	doc := decode[struct {
		ID               int64  `json:"id"`
		OriginalFilename string `json:"original_filename"`
		MimeType         string `json:"mime_type"`
		SizeBytes        int64  `json:"size_bytes"`
	}](t, rr)
	assert.Equal(t, "receipt.pdf", doc.OriginalFilename)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.EqualValues(t, 13, doc.SizeBytes)

	rr = do(t, srv, http.MethodGet, "/transactions/view/"+itoa(tx.ID), "")
	assert.True(t, decode[txBody](t, rr).DocFlag)

	rr = do(t, srv, http.MethodGet, "/documents/"+itoa(doc.ID)+"/view", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename=receipt.pdf`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4 test", rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/documents/"+itoa(doc.ID)+"/download", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Disposition"), "attachment"))

	rr = do(t, srv, http.MethodDelete, "/documents/"+itoa(doc.ID), "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, srv, http.MethodGet, "/transactions/view/"+itoa(tx.ID), "")
	after := decode[txBody](t, rr)
	assert.False(t, after.DocFlag)
	assert.Empty(t, after.Documents)

	rr = do(t, srv, http.MethodGet, "/documents/"+itoa(doc.ID)+"/view", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUploadIgnoresClientContentType(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	tx := createTx(t, srv, `{"date":"2024-03-01","amount":"5"}`)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="page.txt"`)
	header.Set("Content-Type", "text/html")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("<script>alert(1)</script>"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/transactions/"+itoa(tx.ID)+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	doc := decode[struct {
		ID       int64  `json:"id"`
		MimeType string `json:"mime_type"`
	}](t, rr)
	assert.Equal(t, "text/plain", doc.MimeType)

	rr = do(t, srv, http.MethodGet, "/documents/"+itoa(doc.ID)+"/view", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/plain", rr.Header().Get("Content-Type"))
}

func TestUploadRejections(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	tx := createTx(t, srv, `{"date":"2024-03-01","amount":"5"}`)
	uploadPath := "/transactions/" + itoa(tx.ID) + "/documents"

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "disallowed extension",
			req:        uploadRequest(t, uploadPath, "file", "run.exe", []byte("MZ")),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "File type not allowed.",
		},
		{
			name:       "wrong field name",
			req:        uploadRequest(t, uploadPath, "attachment", "receipt.pdf", []byte("x")),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "No file part in the request.",
		},
		{
			name:       "not multipart",
			req:        httptest.NewRequest(http.MethodPost, uploadPath, strings.NewReader("{}")),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "No file part in the request.",
		},
		{
			name:       "too large",
			req:        uploadRequest(t, uploadPath, "file", "big.txt", bytes.Repeat([]byte("a"), 1<<20+1)),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantMsg:    "File exceeds the maximum upload size of 1 MB.",
		},
		{
			name:       "unknown transaction",
			req:        uploadRequest(t, "/transactions/9999/documents", "file", "receipt.pdf", []byte("x")),
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rr, tt.req)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, errorMessage(t, rr))
			}
		})
	}
}

func TestBackupArchive(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	createTx(t, srv, `{"date":"2024-03-01","amount":"5","description":"Snack"}`)

	rr := do(t, srv, http.MethodGet, "/backup/all", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/zip", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "categorizer_backup_")

	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "transactions.json")
	assert.Contains(t, names, "tag_groups.json")
	assert.Contains(t, names, "settings.json")
}

func TestResetRouteDisabledInProduction(t *testing.T) {
	cfg := testConfig(t)
	cfg.AppEnv = config.EnvProduction
	srv := newTestServer(t, cfg)

	rr := do(t, srv, http.MethodPost, "/testing/reset-db", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestResetRoute(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	createTx(t, srv, `{"date":"2024-03-01","amount":"5"}`)

	rr := do(t, srv, http.MethodPost, "/testing/reset-db", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/transactions", "")
	assert.Empty(t, decode[[]txBody](t, rr))
}

func TestNotFoundAndMethodNotAllowedAreJSON(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"unknown route", http.MethodGet, "/nope", http.StatusNotFound},
		{"non-integer id", http.MethodGet, "/transactions/view/abc", http.StatusNotFound},
		{"missing transaction", http.MethodGet, "/transactions/view/42", http.StatusNotFound},
		{"wrong method", http.MethodPut, "/transactions", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, "")
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.NotEmpty(t, errorMessage(t, rr))
		})
	}
}

func TestAPIPrefix(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIPrefix = "/api"
	srv := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/transactions", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/transactions", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/healthz", "").Code)
}

func TestMiddlewareChain(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	t.Run("request id is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
	})

	t.Run("api security headers", func(t *testing.T) {
		rr := do(t, srv, http.MethodGet, "/transactions", "")
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
		assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/transactions/new", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimitRPM = 2
	srv := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/healthz", "").Code)

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
}

func TestFrontendFallback(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIPrefix = "/api"
	cfg.FrontendDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.FrontendDir, "index.html"), []byte("<html>app</html>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.FrontendDir, "app.js"), []byte("console.log(1)"), 0644))
	srv := newTestServer(t, cfg)

	rr := do(t, srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "<html>app</html>", rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/app.js", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "console.log(1)", rr.Body.String())
	assert.Contains(t, rr.Header().Get("Cache-Control"), "max-age=3600")

	rr = do(t, srv, http.MethodGet, "/transactions/42", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "<html>app</html>", rr.Body.String())

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/transactions", "").Code)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
