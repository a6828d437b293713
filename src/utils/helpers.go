package utils

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"strconv"
	"time"

	awslib "eswa/src/lib/aws"

	"eswa/src/common"
	"eswa/src/config"
	"eswa/src/db"
	"eswa/src/lib"
	"eswa/src/models"
	"eswa/src/types"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/yeqown/go-qrcode"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func CheckPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateJWT signs a one-hour access token. The token is only half of
// a valid credential: a matching session cache entry must exist too.
func GenerateJWT(email string, userId uint, role types.Role) (string, error) {
	now := time.Now()
	claims := &types.Claims{
		Username: email,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(int(userId)),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(1 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// RoleFromLandingPage picks the role a self-served registration gets.
// Only the organizer landing page grants anything beyond attendee.
func RoleFromLandingPage(landingPage string) types.Role {
	switch landingPage {
	case "organizer":
		return types.ROLE_ORGANIZER
	case "vendor":
		return types.ROLE_VENDOR
	default:
		return types.ROLE_ATTENDEE
	}
}

// CreateSession writes the durable session row and the cache entry the
// auth guard reads. The cache entry alone decides liveness; the row is
// kept for history.
func CreateSession(userID uint, token, platform string) error {
	conn := db.GetDb()
	session := models.Session{
		UserID:    userID,
		Token:     token,
		Platform:  platform,
		Status:    types.SESSION_ACTIVE,
		ExpiresAt: time.Now().Add(config.SESSION_TTL),
	}
	if err := conn.Create(&session).Error; err != nil {
		log.Printf("Could not create session for user [%d]: %s\n", userID, err.Error())
		return err
	}
	rd := lib.GetRedisClient()
	if err := rd.SetEx(context.Background(), fmt.Sprintf("session:%s", token), strconv.Itoa(int(userID)), config.SESSION_TTL).Err(); err != nil {
		log.Printf("Could not cache session for user [%d]: %s\n", userID, err.Error())
		return err
	}
	return nil
}

// RevokeSession drops the cache entry first so the guard stops honoring
// the token immediately, then marks the durable row.
func RevokeSession(token string) error {
	rd := lib.GetRedisClient()
	if err := rd.Del(context.Background(), fmt.Sprintf("session:%s", token)).Err(); err != nil {
		log.Printf("Could not remove session from cache: %s\n", err.Error())
		return err
	}
	conn := db.GetDb()
	return conn.
		Model(&models.Session{}).
		Where(&models.Session{Token: token}).
		Update("status", types.SESSION_REVOKED).
		Error
}

// CacheTicketStatus mirrors a ticket's current status into the cache so
// gate scanners can reject known-bad codes without a database read.
func CacheTicketStatus(ticketNumber string, status types.TicketStatus) {
	rd := lib.GetRedisClient()
	if err := rd.SetEx(context.Background(), fmt.Sprintf("ticket:%s", ticketNumber), string(status), config.TICKET_CACHE_TTL).Err(); err != nil {
		log.Printf("Could not cache status for ticket [%s]: %s\n", ticketNumber, err.Error())
	}
}

// CreateTicketBatch mints quantity tickets for a ticket type inside one
// transaction. Each ticket snapshots the price at mint time and gets a
// scannable code image generated and shipped to the assets bucket.
func CreateTicketBatch(eventID, ticketTypeID uint, quantity int) ([]models.Ticket, error) {
	conn := db.GetDb()
	tickets := make([]models.Ticket, 0, quantity)
	err := conn.Transaction(func(tx *gorm.DB) error {
		var ticketType models.TicketTypeConfig
		if err := tx.
			Model(&models.TicketTypeConfig{}).
			Where(&models.TicketTypeConfig{ID: ticketTypeID, EventID: eventID}).
			First(&ticketType).Error; err != nil {
			return err
		}
		var minted int64
		if err := tx.
			Model(&models.Ticket{}).
			Where(&models.Ticket{TicketTypeID: ticketTypeID}).
			Count(&minted).Error; err != nil {
			return err
		}
		if minted+int64(quantity) > int64(ticketType.Quantity) {
			return common.E(common.KindConflict, fmt.Sprintf("ticket type [%d] has only %d tickets left to mint", ticketTypeID, int64(ticketType.Quantity)-minted))
		}
		for range quantity {
			ticket := models.Ticket{
				TicketNumber:  uuid.NewString(),
				Status:        types.TICKET_PENDING,
				Price:         ticketType.Price,
				OriginalPrice: ticketType.Price,
				Currency:      ticketType.Currency,
				EventID:       eventID,
				TicketTypeID:  ticketTypeID,
			}
			tickets = append(tickets, ticket)
		}
		if err := tx.Create(&tickets).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	go func() {
		for i := range tickets {
			if key, err := GenerateTicketAsset(&tickets[i]); err != nil {
				log.Printf("Could not generate code asset for ticket [%s]: %s\n", tickets[i].TicketNumber, err.Error())
			} else if key != nil {
				conn.Model(&models.Ticket{}).Where(&models.Ticket{ID: tickets[i].ID}).Update("code_asset_key", *key)
			}
		}
	}()
	return tickets, nil
}

// GenerateTicketAsset renders the ticket number as a code image and
// uploads it. Returns the object key, or nil when running without an
// assets bucket.
func GenerateTicketAsset(ticket *models.Ticket) (*string, error) {
	qrc, err := qrcode.New(ticket.TicketNumber)
	if err != nil {
		return nil, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	tempdir := os.Getenv("TEMP_DIR")
	filename := fmt.Sprintf("ticket-%s", ticket.TicketNumber)
	filepath := path.Join(wd, tempdir, fmt.Sprintf("%s.jpeg", filename))
	if err := qrc.Save(filepath); err != nil {
		log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
		return nil, err
	}
	if os.Getenv("S3_ASSETS_BUCKET") == "" {
		return nil, nil
	}
	if _, err := awslib.S3UploadAsset(filename, filepath); err != nil {
		log.Printf("Error uploading asset to S3 bucket: %s\n", err.Error())
		return nil, err
	}
	return &filename, nil
}

// ClaimTicket moves one ticket from PENDING to VALID and assigns its
// owner. The single conditional update is the only arbiter: of any
// number of concurrent claims for the same ticket exactly one sees a
// row change, everyone else loses. Returns the claimed ticket with its
// event loaded, or gorm.ErrRecordNotFound when the ticket was never
// claimable.
func ClaimTicket(ticketID, ownerID uint) (*models.Ticket, error) {
	conn := db.GetDb()
	res := conn.
		Model(&models.Ticket{}).
		Where("id = ? AND status = ? AND owner_id IS NULL", ticketID, types.TICKET_PENDING).
		Updates(map[string]any{
			"status":   types.TICKET_VALID,
			"owner_id": ownerID,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := conn.Model(&models.Ticket{}).Where("id = ?", ticketID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("ticket [%d] is no longer available", ticketID)
	}
	var ticket models.Ticket
	if err := conn.
		Model(&models.Ticket{}).
		Where("id = ?", ticketID).
		Preload("Event").
		First(&ticket).Error; err != nil {
		return nil, err
	}
	CacheTicketStatus(ticket.TicketNumber, types.TICKET_VALID)
	return &ticket, nil
}

// AppendAuditLog records an action trail entry. Failures are logged and
// swallowed so audit writes never fail the operation they describe.
func AppendAuditLog(actorID uint, action, entity, entityID string, meta types.JSONB) {
	conn := db.GetDb()
	m := types.Metadata(meta)
	entry := models.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Metadata: &m,
	}
	if err := conn.Create(&entry).Error; err != nil {
		log.Printf("Could not append audit log [%s %s/%s]: %s\n", action, entity, entityID, err.Error())
	}
}
