package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/neighborguard/apps/api/echo"
	"github.com/trezcool/neighborguard/core"
	"github.com/trezcool/neighborguard/core/compliance"
	"github.com/trezcool/neighborguard/core/patrol"
	"github.com/trezcool/neighborguard/core/user"
	"github.com/trezcool/neighborguard/storage/database/inmem"
	"github.com/trezcool/neighborguard/tests"
)

const pwd = "Secr3t!Pass"

// a Wednesday
var now = time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type testEnv struct {
	app        *echoapi.Server
	users      user.Repository
	scans      patrol.Repository
	outbox     *testutil.Outbox
	admin      user.User
	adminToken string
}

func testConfig() *core.Config {
	return &core.Config{
		AppName:   "NeighborGuard",
		TestMode:  true,
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

func setup(t *testing.T) *testEnv {
	db, err := inmemdb.Open()
	require.NoError(t, err)

	clock := core.FixedClock(now)
	logger := testutil.Logger(t)
	validate, translator := testutil.Validator()
	reg := prometheus.NewRegistry()

	env := &testEnv{
		users:  inmemdb.NewUserRepository(db),
		scans:  inmemdb.NewScanRepository(db),
		outbox: testutil.NewOutbox(),
	}
	engine := compliance.NewEngine(compliance.Options{
		Users:      env.users,
		Scans:      env.scans,
		Sender:     env.outbox,
		Clock:      clock,
		Logger:     logger,
		AdminEmail: "fallback@neighborguard.test",
		Registerer: reg,
	})

	env.app = echoapi.NewServer(echoapi.Options{
		Conf:           testConfig(),
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Clock:          clock,
		Gatherer:       reg,
		UserSvc:        user.NewService(env.users, clock),
		PatrolSvc:      patrol.NewService(env.scans, env.users, clock),
		Engine:         engine,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = env.app.Close() })

	env.admin = testutil.CreateAdmin(t, env.users, "Admin", "admin", pwd)
	env.adminToken = env.token(t, env.admin)
	return env
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	auth := env.app.Auth()
	token, err := auth.GenerateToken(auth.UserClaims(usr))
	if err != nil {
		t.Fatalf("token(): %v", err)
	}
	return token
}

// do serves a JSON request; a nil body sends none.
func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode(%s): %v", rec.Body.String(), err)
	}
}

func checkCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("code = %v, want %v; body %s", rec.Code, want, rec.Body.String())
	}
}

func checkFieldErrors(t *testing.T, rec *httptest.ResponseRecorder, fields ...string) {
	t.Helper()
	checkCode(t, rec, http.StatusBadRequest)
	var errs map[string]string
	decode(t, rec, &errs)
	for _, f := range fields {
		if _, ok := errs[f]; !ok {
			t.Errorf("field errors = %v, want an error on %q", errs, f)
		}
	}
}
