package utils

import (
	"log"
	"testing"

	"eswa/src/config"
	"eswa/src/db"
	"eswa/src/lib"
	"eswa/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
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
	db.NewDB(gormDB)
	return mock
}

func TestClaimTicketWinner(t *testing.T) {
	mock := newMockDB(t)
	rd, rmock := redismock.NewClientMock()
	lib.NewRedisClient(rd)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "tickets" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT (.+) FROM "tickets"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ticket_number", "status", "event_id", "owner_id"}).
			AddRow(7, "claim-code", string(types.TICKET_VALID), 2, 4))
	mock.ExpectQuery(`SELECT (.+) FROM "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "organizer_id"}).
			AddRow(2, "Launch Party", 1))
	rmock.ExpectSetEx("ticket:claim-code", string(types.TICKET_VALID), config.TICKET_CACHE_TTL).SetVal("OK")

	ticket, err := ClaimTicket(7, 4)
	assert.NoError(t, err)
	assert.Equal(t, types.TICKET_VALID, ticket.Status)
	assert.Equal(t, "claim-code", ticket.TicketNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestClaimTicketAlreadyTaken(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "tickets" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "tickets"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ticket, err := ClaimTicket(7, 4)
	assert.Error(t, err)
	assert.Nil(t, ticket)
	assert.NotErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimTicketUnknown(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "tickets" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "tickets"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	ticket, err := ClaimTicket(7, 4)
	assert.Nil(t, ticket)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
