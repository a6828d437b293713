package main

import (
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"eswa/src/config"
	"eswa/src/db"
	"eswa/src/lib"
	"eswa/src/types"
	"eswa/src/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	sqldb, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqldb,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

func TestPingRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "\"ok\"", w.Body.String())
}

func TestSecureHeadersApplied(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestMaintenanceMode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("MAINTENANCE_MODE", "true")
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCanWatchEvent(t *testing.T) {
	gormDB, mock := NewMockDB()
	db.NewDB(gormDB)

	gate := &types.Claims{Role: string(types.ROLE_GATE_OPERATOR)}
	assert.True(t, canWatchEvent(gate, "3"))

	attendee := &types.Claims{Role: string(types.ROLE_ATTENDEE)}
	assert.False(t, canWatchEvent(attendee, "3"))

	organizer := &types.Claims{
		Role:             string(types.ROLE_ORGANIZER),
		RegisteredClaims: jwt.RegisteredClaims{Subject: "2"},
	}
	mock.ExpectQuery(`SELECT count\(\*\) FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	assert.True(t, canWatchEvent(organizer, "3"))

	mock.ExpectQuery(`SELECT count\(\*\) FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	assert.False(t, canWatchEvent(organizer, "4"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

type AuthRoutesTestSuite struct {
	suite.Suite
	router *gin.Engine
	dbmock sqlmock.Sqlmock
	rmock  redismock.ClientMock
}

func (s *AuthRoutesTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	gormDB, dbmock := NewMockDB()
	db.NewDB(gormDB)
	s.dbmock = dbmock

	rd, rmock := redismock.NewClientMock()
	lib.NewRedisClient(rd)
	s.rmock = rmock

	router := gin.New()
	guestAuthRoutes(router)
	s.router = router
}

func (s *AuthRoutesTestSuite) post(path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)
	return w
}

func (s *AuthRoutesTestSuite) TestRegisterRejectsShortPassword() {
	w := s.post("/api/v1/auth/register", `{"name":"Ana","email":"ana@example.com","password":"short"}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.NoError(s.dbmock.ExpectationsWereMet())
}

func (s *AuthRoutesTestSuite) TestRegisterRejectsMissingContact() {
	w := s.post("/api/v1/auth/register", `{"name":"Ana","password":"hunter2hunter2"}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("email or phone is required", gjson.Get(w.Body.String(), "error").String())
}

func (s *AuthRoutesTestSuite) TestRegisterDuplicateEmailRejected() {
	s.dbmock.ExpectBegin()
	s.dbmock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	s.dbmock.ExpectRollback()

	w := s.post("/api/v1/auth/register", `{"name":"Ana","email":"ana@example.com","password":"hunter2hunter2"}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("account already exists", gjson.Get(w.Body.String(), "error").String())
}

func (s *AuthRoutesTestSuite) expectSessionWrites(userId int) {
	s.dbmock.ExpectBegin()
	s.dbmock.ExpectQuery(`INSERT INTO "sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("91f1d6fb-3a25-4c2f-b74d-2f6b60f7c1aa"))
	s.dbmock.ExpectCommit()
	s.rmock.Regexp().ExpectSetEx(`session:.+`, strconv.Itoa(userId), config.SESSION_TTL).SetVal("OK")

	s.dbmock.ExpectBegin()
	s.dbmock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("6a4a9f61-98f6-44f0-8be0-6da9cf1f21e0"))
	s.dbmock.ExpectCommit()
}

func (s *AuthRoutesTestSuite) TestRegisterCreatesAttendee() {
	s.dbmock.ExpectBegin()
	s.dbmock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	s.dbmock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	s.dbmock.ExpectCommit()
	s.expectSessionWrites(11)

	w := s.post("/api/v1/auth/register", `{"name":"Ana","email":"ana@example.com","password":"hunter2hunter2"}`)
	s.Equal(http.StatusCreated, w.Code)
	s.Equal("ATTENDEE", gjson.Get(w.Body.String(), "data.role").String())
	s.NotEmpty(gjson.Get(w.Body.String(), "token").String())
	s.Empty(gjson.Get(w.Body.String(), "data.PasswordHash").String())
}

func (s *AuthRoutesTestSuite) TestRegisterOrganizerLandingPage() {
	s.dbmock.ExpectBegin()
	s.dbmock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	s.dbmock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	s.dbmock.ExpectCommit()
	s.expectSessionWrites(12)

	w := s.post("/api/v1/auth/register", `{"name":"Org","email":"org@example.com","password":"hunter2hunter2","landing_page":"organizer"}`)
	s.Equal(http.StatusCreated, w.Code)
	s.Equal("ORGANIZER", gjson.Get(w.Body.String(), "data.role").String())
}

func (s *AuthRoutesTestSuite) TestLoginStoresDeviceToken() {
	hash, err := utils.HashPassword("hunter2hunter2")
	s.NoError(err)
	s.dbmock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role"}).
			AddRow(6, "ana@example.com", hash, "ATTENDEE"))

	s.dbmock.ExpectBegin()
	s.dbmock.ExpectQuery(`INSERT INTO "sessions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("4f9cf1f4-5b1e-4e62-8f05-3a3bbcf02b1b"))
	s.dbmock.ExpectCommit()
	s.rmock.Regexp().ExpectSetEx(`session:.+`, strconv.Itoa(6), config.SESSION_TTL).SetVal("OK")

	s.dbmock.ExpectBegin()
	s.dbmock.ExpectExec(`UPDATE "users" SET "device_token"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.dbmock.ExpectCommit()

	w := s.post("/api/v1/auth/login", `{"email":"ana@example.com","password":"hunter2hunter2","platform":"android","device_token":"fcm-registration-token"}`)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(gjson.Get(w.Body.String(), "token").String())
	s.NoError(s.dbmock.ExpectationsWereMet())
}

func (s *AuthRoutesTestSuite) TestLoginUnknownAccount() {
	s.dbmock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := s.post("/api/v1/auth/login", `{"email":"ghost@example.com","password":"whatever1"}`)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("Invalid credentials", gjson.Get(w.Body.String(), "error").String())
}

func (s *AuthRoutesTestSuite) TestLoginWrongPassword() {
	hash, err := utils.HashPassword("the-real-password")
	s.NoError(err)
	s.dbmock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role"}).
			AddRow(3, "ana@example.com", hash, "ATTENDEE"))

	w := s.post("/api/v1/auth/login", `{"email":"ana@example.com","password":"the-wrong-password"}`)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("Invalid credentials", gjson.Get(w.Body.String(), "error").String())
}

func TestAuthRoutesTestSuite(t *testing.T) {
	suite.Run(t, new(AuthRoutesTestSuite))
}
