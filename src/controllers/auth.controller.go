package controllers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"eswa/src/config"
	"eswa/src/db"
	"eswa/src/lib"
	"eswa/src/models"
	"eswa/src/types"
	"eswa/src/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	// ErrInternal is what callers hand to clients when the real cause
	// belongs in the logs only.
	ErrInternal = errors.New("Internal server error")
)

func AuthRegister(ctx *gin.Context) (*models.User, *string, int, error) {
	var body types.RegisterRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, nil, http.StatusBadRequest, err
	}
	if body.Email == "" && body.Phone == "" {
		return nil, nil, http.StatusBadRequest, errors.New("email or phone is required")
	}
	hash, err := utils.HashPassword(body.Password)
	if err != nil {
		log.Printf("Could not hash password: %s\n", err.Error())
		return nil, nil, http.StatusInternalServerError, ErrInternal
	}
	user := models.User{
		Name:         body.Name,
		PasswordHash: hash,
		Role:         utils.RoleFromLandingPage(body.LandingPage),
		SignupMethod: types.SIGNUP_PASSWORD,
	}
	if body.Email != "" {
		user.Email = &body.Email
	}
	if body.Phone != "" {
		user.Phone = &body.Phone
	}
	conn := db.GetDb()
	if err := conn.Transaction(func(tx *gorm.DB) error {
		var count int64
		q := tx.Model(&models.User{})
		if user.Email != nil && user.Phone != nil {
			q = q.Where("email = ? OR phone = ?", *user.Email, *user.Phone)
		} else if user.Email != nil {
			q = q.Where("email = ?", *user.Email)
		} else {
			q = q.Where("phone = ?", *user.Phone)
		}
		if err := q.Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAccountExists
		}
		return tx.Create(&user).Error
	}); err != nil {
		log.Printf("Error registering user: %s\n", err.Error())
		if errors.Is(err, ErrAccountExists) {
			return nil, nil, http.StatusBadRequest, err
		}
		return nil, nil, http.StatusInternalServerError, ErrInternal
	}
	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	jwt, err := utils.GenerateJWT(email, user.ID, user.Role)
	if err != nil {
		log.Printf("Could not sign token for user [%d]: %s\n", user.ID, err.Error())
		return nil, nil, http.StatusInternalServerError, ErrInternal
	}
	if err := utils.CreateSession(user.ID, jwt, body.Platform); err != nil {
		log.Printf("Could not open session for user [%d]: %s\n", user.ID, err.Error())
		return nil, nil, http.StatusInternalServerError, ErrInternal
	}
	utils.AppendAuditLog(user.ID, "register", "user", fmt.Sprint(user.ID), types.JSONB{"method": user.SignupMethod})
	return &user, &jwt, http.StatusCreated, nil
}

// AuthLogin verifies credentials and issues a token plus session. Every
// failure path reports the same error so callers cannot tell which
// accounts exist.
func AuthLogin(ctx *gin.Context) (token *string, status int, err error) {
	var body types.LoginRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	if body.Email == "" && body.Phone == "" {
		return nil, http.StatusBadRequest, errors.New("email or phone is required")
	}
	conn := db.GetDb()
	var user models.User
	q := conn.Model(&models.User{})
	if body.Email != "" {
		q = q.Where("email = ?", body.Email)
	} else {
		q = q.Where("phone = ?", body.Phone)
	}
	if err := q.First(&user).Error; err != nil {
		log.Printf("Login failed: %s\n", err.Error())
		return nil, http.StatusUnauthorized, ErrInvalidCredentials
	}
	if !utils.CheckPassword(user.PasswordHash, body.Password) {
		log.Printf("Login failed for user [%d]: password mismatch\n", user.ID)
		return nil, http.StatusUnauthorized, ErrInvalidCredentials
	}

	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	jwt, err := utils.GenerateJWT(email, user.ID, user.Role)
	if err != nil {
		log.Printf("Could not sign token for user [%d]: %s\n", user.ID, err.Error())
		return nil, http.StatusInternalServerError, ErrInternal
	}
	if err := utils.CreateSession(user.ID, jwt, body.Platform); err != nil {
		log.Printf("Could not open session for user [%d]: %s\n", user.ID, err.Error())
		return nil, http.StatusInternalServerError, ErrInternal
	}
	if body.DeviceToken != "" {
		// the push token rides along on mobile logins and is the address
		// purchase notifications get delivered to
		if err := conn.
			Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("device_token", body.DeviceToken).Error; err != nil {
			log.Printf("Could not store device token for user [%d]: %s\n", user.ID, err.Error())
		}
	}
	go func() {
		conn.Model(&models.User{}).Where("id", user.ID).Update("last_active", time.Now())
		utils.AppendAuditLog(user.ID, "login", "user", fmt.Sprint(user.ID), nil)
	}()
	return &jwt, http.StatusOK, nil
}

func AuthLogout(ctx *gin.Context) (int, error) {
	token := ctx.GetString("token")
	if token == "" {
		return http.StatusUnauthorized, errors.New("No token provided")
	}
	if err := utils.RevokeSession(token); err != nil {
		log.Printf("Could not revoke session: %s\n", err.Error())
		return http.StatusInternalServerError, ErrInternal
	}
	utils.AppendAuditLog(ctx.GetUint("id"), "logout", "user", fmt.Sprint(ctx.GetUint("id")), nil)
	return http.StatusOK, nil
}

func oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		RedirectURL:  config.ApiHost() + "/api/v1/auth/google/callback",
		ClientID:     config.OauthClientID(),
		ClientSecret: config.OauthClientSecret(),
		Scopes: []string{
			googleoauth.UserinfoEmailScope,
			googleoauth.UserinfoProfileScope,
		},
		Endpoint: google.Endpoint,
	}
}

// AuthGoogle starts the social login flow. The state nonce is parked in
// the cache and checked again on callback.
func AuthGoogle(ctx *gin.Context) (*string, int, error) {
	nonce := make([]byte, 32)
	rand.Read(nonce)
	state := hex.EncodeToString(nonce)
	rd := lib.GetRedisClient()
	if err := rd.SetEx(context.Background(), fmt.Sprintf("oauth:state:%s", state), "pending", 10*time.Minute).Err(); err != nil {
		log.Printf("Could not store oauth state: %s\n", err.Error())
		return nil, http.StatusInternalServerError, ErrInternal
	}
	url := oauthConfig().AuthCodeURL(state, oauth2.AccessTypeOffline)
	return &url, http.StatusOK, nil
}

// AuthGoogleCallback finishes the social login flow: exchanges the code,
// reads the Google profile, upserts the account and issues a session the
// same way password login does.
func AuthGoogleCallback(ctx *gin.Context) (token *string, status int, err error) {
	state := ctx.Query("state")
	code := ctx.Query("code")
	if state == "" || code == "" {
		return nil, http.StatusBadRequest, errors.New("missing state or code")
	}
	rd := lib.GetRedisClient()
	stateKey := fmt.Sprintf("oauth:state:%s", state)
	if rd.Get(context.Background(), stateKey).Val() == "" {
		return nil, http.StatusUnauthorized, errors.New("Access denied")
	}
	rd.Del(context.Background(), stateKey)

	oauthcfg := oauthConfig()
	tok, err := oauthcfg.Exchange(context.Background(), code)
	if err != nil {
		log.Printf("Error while exchanging authorization code for token: %s\n", err.Error())
		return nil, http.StatusUnauthorized, errors.New("Access denied")
	}
	svc, err := googleoauth.NewService(context.Background(), option.WithTokenSource(oauthcfg.TokenSource(context.Background(), tok)))
	if err != nil {
		log.Printf("Could not create oauth2 service: %s\n", err.Error())
		return nil, http.StatusInternalServerError, ErrInternal
	}
	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		log.Printf("Could not read user info: %s\n", err.Error())
		return nil, http.StatusInternalServerError, ErrInternal
	}

	conn := db.GetDb()
	var user models.User
	if err := conn.Model(&models.User{}).Where("email = ?", info.Email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Error looking up social login account: %s\n", err.Error())
			return nil, http.StatusInternalServerError, ErrInternal
		}
		user = models.User{
			Name:         info.Name,
			Email:        &info.Email,
			Role:         types.ROLE_ATTENDEE,
			SignupMethod: types.SIGNUP_GOOGLE,
		}
		if err := conn.Create(&user).Error; err != nil {
			log.Printf("Error registering user from social login: %s\n", err.Error())
			return nil, http.StatusInternalServerError, ErrInternal
		}
	}
	jwt, err := utils.GenerateJWT(info.Email, user.ID, user.Role)
	if err != nil {
		log.Printf("Could not sign token for user [%d]: %s\n", user.ID, err.Error())
		return nil, http.StatusInternalServerError, ErrInternal
	}
	if err := utils.CreateSession(user.ID, jwt, "web"); err != nil {
		log.Printf("Could not open session for user [%d]: %s\n", user.ID, err.Error())
		return nil, http.StatusInternalServerError, ErrInternal
	}
	go func() {
		conn.Model(&models.User{}).Where("id", user.ID).Update("last_active", time.Now())
		utils.AppendAuditLog(user.ID, "login", "user", fmt.Sprint(user.ID), types.JSONB{"method": types.SIGNUP_GOOGLE})
	}()
	return &jwt, http.StatusOK, nil
}
