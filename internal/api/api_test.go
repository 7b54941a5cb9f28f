package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/profilehub/internal/account"
	"github.com/jon4hz/profilehub/internal/cache"
	"github.com/jon4hz/profilehub/internal/config"
	dbmock "github.com/jon4hz/profilehub/internal/database/mock"
	"github.com/jon4hz/profilehub/internal/password"
	"github.com/jon4hz/profilehub/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	return &config.Config{
		Listen:   "127.0.0.1:0",
		Gzip:     true,
		Database: &config.DatabaseConfig{Driver: config.DatabaseDriverSQLite, Path: "unused.db"},
		Storage:  &config.StorageConfig{Type: config.StorageTypeLocal},
		Password: &config.PasswordConfig{Cost: bcrypt.MinCost},
		CORS:     &config.CORSConfig{AllowedOrigins: []string{"*"}},
		Cache:    &config.CacheConfig{Enabled: true, Type: config.CacheTypeMemory, TTL: time.Minute},
	}
}

type APITestSuite struct {
	suite.Suite
	db     *dbmock.MockDB
	files  *storage.LocalStore
	server *Server
}

func (s *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	files, err := storage.NewLocalStore(s.T().TempDir())
	s.Require().NoError(err)
	s.files = files
	s.db = dbmock.NewMockDB()

	cfg := testConfig()
	profiles := cache.NewPrefixedCache[account.Profile](cache.NewInstance(cfg.Cache), "profile-", cfg.Cache.TTL)
	service := account.NewService(s.db, password.New(cfg.Password.Cost), files, account.WithProfileCache(profiles))

	s.server, err = New(cfg, service, files, true)
	s.Require().NoError(err)
}

func (s *APITestSuite) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(w, req)
	return w
}

func (s *APITestSuite) postJSON(path string, body any) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *APITestSuite) upload(email, filename string, content []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	s.Require().NoError(err)
	_, err = fw.Write(content)
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-profile-pic/"+email, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req)
}

func (s *APITestSuite) signup(username, email, pw string) {
	w := s.postJSON("/signup", map[string]string{"username": username, "email": email, "password": pw})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().JSONEq(`{"success":true,"message":"Signup successful!"}`, w.Body.String())
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (s *APITestSuite) TestSignup() {
	s.signup("alice", "alice@example.com", "wonderland")
	s.Equal(1, s.db.UserCount())

	user, err := s.db.GetUserByEmail(context.Background(), "alice@example.com")
	s.Require().NoError(err)
	s.NotEqual("wonderland", user.HashedPassword)
	s.Nil(user.ProfilePic)
}

func (s *APITestSuite) TestSignup_Duplicate() {
	s.signup("alice", "alice@example.com", "wonderland")

	w := s.postJSON("/signup", map[string]string{"username": "other", "email": "alice@example.com", "password": "x"})
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"success":false,"message":"Email already registered"}`, w.Body.String())
	s.Equal(1, s.db.UserCount())
}

func (s *APITestSuite) TestSignup_Concurrent() {
	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := s.postJSON("/signup", map[string]string{"username": "bob", "email": "bob@example.com", "password": "builder"})
			var body map[string]any
			if json.Unmarshal(w.Body.Bytes(), &body) == nil && body["success"] == true {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(1, s.db.UserCount())
}

func (s *APITestSuite) TestSignup_Validation() {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid email", body: `{"username":"a","email":"not-an-email","password":"pw"}`},
		{name: "missing password", body: `{"username":"a","email":"a@example.com"}`},
		{name: "missing username", body: `{"email":"a@example.com","password":"pw"}`},
		{name: "malformed json", body: `{"username":`},
		{name: "wrong type", body: `{"username":1,"email":"a@example.com","password":"pw"}`},
		{name: "null username", body: `{"username":null,"email":"a@example.com","password":"pw"}`},
		{name: "empty email", body: `{"username":"a","email":"","password":"pw"}`},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := s.do(req)
			s.Equal(http.StatusUnprocessableEntity, w.Code)
			s.NotEmpty(decode(s.T(), w)["detail"])
		})
	}
	s.Equal(0, s.db.UserCount())
}

func (s *APITestSuite) TestSignup_EmptyStringsAccepted() {
	s.signup("", "empty@example.com", "")

	user, err := s.db.GetUserByEmail(context.Background(), "empty@example.com")
	s.Require().NoError(err)
	s.Empty(user.Username)

	w := s.postJSON("/login", map[string]string{"email": "empty@example.com", "password": ""})
	s.Equal(http.StatusOK, w.Code)

	w = s.postJSON("/login", map[string]string{"email": "empty@example.com", "password": "not-empty"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APITestSuite) TestLogin_Validation() {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *APITestSuite) TestLogin() {
	s.signup("alice", "alice@example.com", "wonderland")

	w := s.postJSON("/login", map[string]string{"email": "alice@example.com", "password": "wonderland"})
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"message":"Login successful","user":"alice@example.com"}`, w.Body.String())

	wrong := s.postJSON("/login", map[string]string{"email": "alice@example.com", "password": "nope"})
	s.Equal(http.StatusUnauthorized, wrong.Code)

	unknown := s.postJSON("/login", map[string]string{"email": "nobody@example.com", "password": "wonderland"})
	s.Equal(http.StatusNotFound, unknown.Code)

	s.JSONEq(`{"detail":"Invalid email or password"}`, wrong.Body.String())
	s.Equal(wrong.Body.String(), unknown.Body.String())
}

func (s *APITestSuite) TestLogin_LongPasswordTruncated() {
	long := strings.Repeat("p", 72)
	s.signup("carol", "carol@example.com", long+"extra-bytes-beyond-the-limit")

	w := s.postJSON("/login", map[string]string{"email": "carol@example.com", "password": long})
	s.Equal(http.StatusOK, w.Code)
}

func (s *APITestSuite) TestProfile() {
	s.signup("alice", "alice@example.com", "wonderland")

	w := s.do(httptest.NewRequest(http.MethodGet, "/profile/alice@example.com", nil))
	s.Require().Equal(http.StatusOK, w.Code)

	body := decode(s.T(), w)
	s.Equal("alice", body["username"])
	s.Equal("alice@example.com", body["email"])
	s.NotEmpty(body["joined_on"])
	s.Contains(body, "profile_pic")
	s.Nil(body["profile_pic"])
	s.NotContains(body, "hashed_password")
}

func (s *APITestSuite) TestProfile_NotFound() {
	w := s.do(httptest.NewRequest(http.MethodGet, "/profile/nobody@example.com", nil))
	s.Equal(http.StatusNotFound, w.Code)
	s.JSONEq(`{"detail":"User not found"}`, w.Body.String())
}

func (s *APITestSuite) TestUploadProfilePic() {
	s.signup("alice", "alice@example.com", "wonderland")

	// a cached profile from before the upload must not be served afterwards
	cached := decode(s.T(), s.do(httptest.NewRequest(http.MethodGet, "/profile/alice@example.com", nil)))
	s.Nil(cached["profile_pic"])

	w := s.upload("alice@example.com", "me.png", []byte("first"))
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"message":"Profile picture uploaded successfully","path":"/uploads/1_me.png"}`, w.Body.String())

	profile := decode(s.T(), s.do(httptest.NewRequest(http.MethodGet, "/profile/alice@example.com", nil)))
	s.Equal("/uploads/1_me.png", profile["profile_pic"])

	file := s.do(httptest.NewRequest(http.MethodGet, "/uploads/1_me.png", nil))
	s.Equal(http.StatusOK, file.Code)
	s.Equal("first", file.Body.String())
}

func (s *APITestSuite) TestUploadProfilePic_Overwrite() {
	s.signup("alice", "alice@example.com", "wonderland")

	first := s.upload("alice@example.com", "me.png", []byte("first"))
	s.Require().Equal(http.StatusOK, first.Code)
	second := s.upload("alice@example.com", "me.png", []byte("second"))
	s.Require().Equal(http.StatusOK, second.Code)
	s.Equal(first.Body.String(), second.Body.String())

	file := s.do(httptest.NewRequest(http.MethodGet, "/uploads/1_me.png", nil))
	s.Equal(http.StatusOK, file.Code)
	s.Equal("second", file.Body.String())
}

func (s *APITestSuite) TestUploadProfilePic_UnknownUser() {
	w := s.upload("nobody@example.com", "me.png", []byte("data"))
	s.Equal(http.StatusNotFound, w.Code)
	s.JSONEq(`{"detail":"User not found"}`, w.Body.String())
}

func (s *APITestSuite) TestUploadProfilePic_MissingFile() {
	s.signup("alice", "alice@example.com", "wonderland")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	s.Require().NoError(mw.WriteField("other", "value"))
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-profile-pic/alice@example.com", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := s.do(req)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *APITestSuite) TestUploads_Missing() {
	w := s.do(httptest.NewRequest(http.MethodGet, "/uploads/42_none.png", nil))
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestHealth() {
	w := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())

	s.db.PingError = assert.AnError
	w = s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.JSONEq(`{"status":"unavailable"}`, w.Body.String())
}

func (s *APITestSuite) TestInternalError() {
	s.db.GetUserByEmailError = assert.AnError
	w := s.do(httptest.NewRequest(http.MethodGet, "/profile/alice@example.com", nil))
	s.Equal(http.StatusInternalServerError, w.Code)
	s.JSONEq(`{"detail":"Internal Server Error"}`, w.Body.String())
}

func (s *APITestSuite) TestUnknownRouteAndMethod() {
	w := s.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	s.Equal(http.StatusNotFound, w.Code)
	s.JSONEq(`{"detail":"Not Found"}`, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodGet, "/signup", nil))
	s.Equal(http.StatusMethodNotAllowed, w.Code)
	s.JSONEq(`{"detail":"Method Not Allowed"}`, w.Body.String())
}

func (s *APITestSuite) TestCORS() {
	req := httptest.NewRequest(http.MethodOptions, "/signup", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	w := s.do(req)

	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("https://anywhere.example", w.Header().Get("Access-Control-Allow-Origin"))
	s.Equal("true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w = s.do(req)
	s.Equal("http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func (s *APITestSuite) TestCORS_PreflightAnyHeaderAndMethod() {
	req := httptest.NewRequest(http.MethodOptions, "/upload-profile-pic/alice@example.com", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "patch")
	req.Header.Set("Access-Control-Request-Headers", "X-Api-Key, X-Custom-Trace")
	w := s.do(req)

	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	s.Equal("PATCH", w.Header().Get("Access-Control-Allow-Methods"))
	s.Equal("X-Api-Key, X-Custom-Trace", w.Header().Get("Access-Control-Allow-Headers"))
	s.Equal("true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func (s *APITestSuite) TestCORS_ExposesRequestID() {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example")
	w := s.do(req)

	s.Equal(http.StatusOK, w.Code)
	s.Equal("X-Request-Id", w.Header().Get("Access-Control-Expose-Headers"))
	s.Empty(w.Header().Get("Access-Control-Allow-Headers"))
}

func (s *APITestSuite) TestRequestID() {
	w := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.NotEmpty(w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "fixed-id")
	w = s.do(req)
	s.Equal("fixed-id", w.Header().Get(requestIDHeader))
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

// memoryStore is a storage.Store that isn't backed by a directory, so uploads go through the handler.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryStore) String() string { return "memory" }

func (m *memoryStore) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = bytes.Clone(data)
	return nil
}

func (m *memoryStore) Open(_ context.Context, name string) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.Object{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: "image/png",
		Size:        int64(len(data)),
	}, nil
}

func TestServeUpload_RemoteStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	files := &memoryStore{objects: map[string][]byte{}}
	db := dbmock.NewMockDB()
	service := account.NewService(db, password.New(bcrypt.MinCost), files)

	cfg := testConfig()
	cfg.Storage.Type = config.StorageTypeS3
	server, err := New(cfg, service, files, true)
	require.NoError(t, err)

	require.NoError(t, files.Save(context.Background(), "7_avatar.png", []byte("png-bytes")))

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/7_avatar.png", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", w.Body.String())

	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"detail":"Not Found"}`, w.Body.String())
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)

	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	cfg := testConfig()
	cfg.CORS = &config.CORSConfig{AllowedOrigins: []string{"https://app.example"}}

	server, err := New(cfg, account.NewService(dbmock.NewMockDB(), password.New(bcrypt.MinCost), files), files, true)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example")
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	// a configured origin list keeps the fixed header list instead of echoing
	req = httptest.NewRequest(http.MethodOptions, "/signup", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-Api-Key")
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotContains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Api-Key")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
}

func TestNew_Validation(t *testing.T) {
	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	service := account.NewService(dbmock.NewMockDB(), password.New(bcrypt.MinCost), files)

	_, err = New(nil, service, files, true)
	assert.Error(t, err)

	_, err = New(testConfig(), nil, files, true)
	assert.Error(t, err)
}

func TestCorsConfig(t *testing.T) {
	all := corsConfig(&config.CORSConfig{AllowedOrigins: []string{"*"}})
	require.NotNil(t, all.AllowOriginFunc)
	assert.True(t, all.AllowOriginFunc("https://whatever.example"))
	assert.True(t, all.AllowCredentials)
	assert.Empty(t, all.AllowOrigins)
	assert.Empty(t, all.AllowHeaders, "headers are reflected per preflight")
	assert.Empty(t, all.AllowMethods, "methods are reflected per preflight")

	restricted := corsConfig(&config.CORSConfig{AllowedOrigins: []string{"https://a.example"}})
	assert.Nil(t, restricted.AllowOriginFunc)
	assert.Equal(t, []string{"https://a.example"}, restricted.AllowOrigins)
	assert.NotEmpty(t, restricted.AllowHeaders)
	assert.NotEmpty(t, restricted.AllowMethods)
}
