package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eswa/src/common"
	"eswa/src/config"
	"eswa/src/db"
	"eswa/src/lib"
	"eswa/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
)

type ValidationTestSuite struct {
	suite.Suite
	router    *gin.Engine
	dbmock    sqlmock.Sqlmock
	rmock     redismock.ClientMock
	validated chan uint
}

func (s *ValidationTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	gormDB, dbmock := NewMockDB()
	db.NewDB(gormDB)
	s.dbmock = dbmock

	rd, rmock := redismock.NewClientMock()
	lib.NewRedisClient(rd)
	s.rmock = rmock

	s.validated = make(chan uint, 1)
	notifyTicketValidated = func(eventID, ticketID uint, ticketNumber string, ownerID uint) {
		s.validated <- ticketID
	}

	router := gin.New()
	gate := router.Group("/api/v1")
	gate.Use(func(ctx *gin.Context) {
		ctx.Set("id", uint(99))
		ctx.Set("role", string(types.ROLE_GATE_OPERATOR))
	})
	validationHandlers(gate)
	s.router = router
}

func (s *ValidationTestSuite) TearDownTest() {
	notifyTicketValidated = common.NotifyTicketValidated
}

func (s *ValidationTestSuite) scan(ticketNumber string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	body := fmt.Sprintf(`{"ticket_number":%q}`, ticketNumber)
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/tickets/validate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)
	return w
}

func (s *ValidationTestSuite) TestKnownScannedCodeRejectedWithoutDatabase() {
	s.rmock.ExpectGet("ticket:scanned-code").SetVal(string(types.TICKET_SCANNED))

	w := s.scan("scanned-code")

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Ticket invalid or already scanned", gjson.Get(w.Body.String(), "error").String())
	s.Equal(string(types.TICKET_SCANNED), gjson.Get(w.Body.String(), "status").String())
	s.NoError(s.dbmock.ExpectationsWereMet())
}

func (s *ValidationTestSuite) TestFirstScanWins() {
	s.rmock.ExpectGet("ticket:valid-code").RedisNil()

	s.dbmock.ExpectBegin()
	s.dbmock.ExpectExec(`UPDATE "tickets" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.dbmock.ExpectCommit()

	s.dbmock.ExpectQuery(`SELECT (.+) FROM "tickets"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_number", "status", "event_id", "owner_id"}).
			AddRow(5, "valid-code", string(types.TICKET_SCANNED), 3, 8))
	s.dbmock.ExpectQuery(`SELECT (.+) FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "organizer_id"}).
			AddRow(3, "Launch Party", 2))
	s.dbmock.ExpectQuery(`SELECT (.+) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(8, "Attendee"))

	s.rmock.ExpectSetEx("ticket:valid-code", string(types.TICKET_SCANNED), config.TICKET_CACHE_TTL).SetVal("OK")

	s.dbmock.ExpectBegin()
	s.dbmock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("0b7aa619-7c5e-4f62-a15f-dc32a958c1d9"))
	s.dbmock.ExpectCommit()

	w := s.scan("valid-code")

	s.Equal(http.StatusOK, w.Code)
	s.Equal(string(types.TICKET_SCANNED), gjson.Get(w.Body.String(), "data.status").String())
	s.Equal("valid-code", gjson.Get(w.Body.String(), "data.ticket_number").String())

	select {
	case id := <-s.validated:
		s.Equal(uint(5), id)
	case <-time.After(time.Second):
		s.Fail("expected a redemption notification")
	}
}

func (s *ValidationTestSuite) TestSecondScanLoses() {
	s.rmock.ExpectGet("ticket:raced-code").RedisNil()

	s.dbmock.ExpectBegin()
	s.dbmock.ExpectExec(`UPDATE "tickets" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.dbmock.ExpectCommit()

	s.dbmock.ExpectQuery(`SELECT (.+) FROM "tickets"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_number", "status", "event_id"}).
			AddRow(5, "raced-code", string(types.TICKET_SCANNED), 3))

	s.rmock.ExpectSetEx("ticket:raced-code", string(types.TICKET_SCANNED), config.TICKET_CACHE_TTL).SetVal("OK")

	w := s.scan("raced-code")

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Ticket invalid or already scanned", gjson.Get(w.Body.String(), "error").String())
	s.Equal(string(types.TICKET_SCANNED), gjson.Get(w.Body.String(), "status").String())
}

func (s *ValidationTestSuite) TestRefundedCodeRejected() {
	s.rmock.ExpectGet("ticket:refunded-code").RedisNil()

	s.dbmock.ExpectBegin()
	s.dbmock.ExpectExec(`UPDATE "tickets" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.dbmock.ExpectCommit()

	s.dbmock.ExpectQuery(`SELECT (.+) FROM "tickets"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_number", "status", "event_id"}).
			AddRow(6, "refunded-code", string(types.TICKET_REFUNDED), 3))

	s.rmock.ExpectSetEx("ticket:refunded-code", string(types.TICKET_REFUNDED), config.TICKET_CACHE_TTL).SetVal("OK")

	w := s.scan("refunded-code")

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(string(types.TICKET_REFUNDED), gjson.Get(w.Body.String(), "status").String())
}

func (s *ValidationTestSuite) TestUnknownCodeNotFound() {
	s.rmock.ExpectGet("ticket:ghost-code").RedisNil()

	s.dbmock.ExpectBegin()
	s.dbmock.ExpectExec(`UPDATE "tickets" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.dbmock.ExpectCommit()

	s.dbmock.ExpectQuery(`SELECT (.+) FROM "tickets"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := s.scan("ghost-code")

	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("Ticket not found", gjson.Get(w.Body.String(), "error").String())
}

func (s *ValidationTestSuite) TestMissingTicketNumberRejected() {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/tickets/validate", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusBadRequest, w.Code)
	s.NoError(s.dbmock.ExpectationsWereMet())
}

func (s *ValidationTestSuite) TestDatabaseFailureHidesDriverError() {
	s.rmock.ExpectGet("ticket:broken-code").RedisNil()

	s.dbmock.ExpectBegin()
	s.dbmock.ExpectExec(`UPDATE "tickets" SET`).
		WillReturnError(errors.New("pq: password authentication failed for user postgres"))
	s.dbmock.ExpectRollback()

	w := s.scan("broken-code")

	s.Equal(http.StatusInternalServerError, w.Code)
	s.Equal("Internal server error", gjson.Get(w.Body.String(), "error").String())
	s.NotContains(w.Body.String(), "pq:")
	s.NotContains(w.Body.String(), "postgres")
}

func TestValidationTestSuite(t *testing.T) {
	suite.Run(t, new(ValidationTestSuite))
}
