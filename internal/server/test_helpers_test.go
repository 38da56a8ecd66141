package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/auth"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/database"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/moves"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/routines"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/users"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const jsonContentType = "application/json"

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	db     *gorm.DB
}

type apiResponse struct {
	status int
	header http.Header
	body   map[string]interface{}
	raw    string
}

func newTestAPI(t *testing.T, configure func(*Dependencies)) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	tokens, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("server-test-secret"),
		Issuer:        "choreo-auth",
		Audience:      "choreo-api",
	})
	if err != nil {
		t.Fatalf("failed to build token issuer: %v", err)
	}
	accounts, err := users.NewService(users.ServiceConfig{
		Database: db,
		Hasher:   auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens:   tokens,
	})
	if err != nil {
		t.Fatalf("failed to build account service: %v", err)
	}
	composition, err := routines.NewComposition(routines.CompositionConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build composition: %v", err)
	}
	moveService, err := moves.NewService(moves.ServiceConfig{Database: db, References: composition})
	if err != nil {
		t.Fatalf("failed to build move service: %v", err)
	}
	routineService, err := routines.NewService(routines.ServiceConfig{Database: db, Composition: composition})
	if err != nil {
		t.Fatalf("failed to build routine service: %v", err)
	}

	deps := Dependencies{
		Accounts:    accounts,
		Moves:       moveService,
		Routines:    routineService,
		Logger:      zap.NewNop(),
		CORSOrigins: []string{"https://app.example.com"},
	}
	if configure != nil {
		configure(&deps)
	}
	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	t.Cleanup(testServer.Close)
	return &testAPI{t: t, server: testServer, db: db}
}

func (a *testAPI) do(method, path, token string, payload interface{}) apiResponse {
	a.t.Helper()
	var body io.Reader = http.NoBody
	switch typed := payload.(type) {
	case nil:
	case string:
		body = strings.NewReader(typed)
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			a.t.Fatalf("failed to encode payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequest(method, a.server.URL+path, body)
	if err != nil {
		a.t.Fatalf("failed to build request: %v", err)
	}
	if payload != nil {
		request.Header.Set("Content-Type", jsonContentType)
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		a.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		a.t.Fatalf("failed to read response: %v", err)
	}
	result := apiResponse{status: response.StatusCode, header: response.Header, raw: string(raw)}
	if strings.HasPrefix(response.Header.Get("Content-Type"), jsonContentType) && len(raw) > 0 {
		if err := json.Unmarshal(raw, &result.body); err != nil {
			a.t.Fatalf("failed to decode %s %s response %q: %v", method, path, raw, err)
		}
	}
	return result
}

func (a *testAPI) expect(response apiResponse, status int) apiResponse {
	a.t.Helper()
	if response.status != status {
		a.t.Fatalf("expected status %d, got %d: %s", status, response.status, response.raw)
	}
	return response
}

// register creates an account and returns its token and user id.
func (a *testAPI) register(email, username string) (string, uint) {
	a.t.Helper()
	response := a.expect(a.do(http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"email":    email,
		"password": "password123",
		"username": username,
	}), http.StatusCreated)
	token, _ := response.body["token"].(string)
	user := object(a.t, response.body, "user")
	return token, uint(number(a.t, user, "id"))
}

func object(t *testing.T, body map[string]interface{}, key string) map[string]interface{} {
	t.Helper()
	value, ok := body[key].(map[string]interface{})
	if !ok {
		t.Fatalf("expected object at %q, got %#v", key, body[key])
	}
	return value
}

func list(t *testing.T, body map[string]interface{}, key string) []interface{} {
	t.Helper()
	value, ok := body[key].([]interface{})
	if !ok {
		t.Fatalf("expected array at %q, got %#v", key, body[key])
	}
	return value
}

func number(t *testing.T, body map[string]interface{}, key string) float64 {
	t.Helper()
	value, ok := body[key].(float64)
	if !ok {
		t.Fatalf("expected number at %q, got %#v", key, body[key])
	}
	return value
}
