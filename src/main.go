package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"regexp"
	"strconv"
	"syscall"
	"time"

	"eswa/src/boot"
	"eswa/src/config"
	"eswa/src/controllers"
	"eswa/src/db"
	"eswa/src/lib"
	"eswa/src/middlewares"
	"eswa/src/models"
	"eswa/src/types"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	engineiotypes "github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
)

const apiPrefix string = "/api/v1"

var eventDateTimeValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	if ok {
		today := time.Now()
		if today.After(datetime) {
			return false
		}
	}
	return true
}

var gtfield validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	field := fl.Parent().FieldByName(fl.Param())
	fieldValue := field.Interface().(string)
	fielddatetime, err := time.Parse(config.TIME_PARSE_FORMAT, fieldValue)
	if err != nil {
		return false
	}
	if ok {
		if fielddatetime.After(datetime) {
			return false
		}
	}
	return true
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	// maintenance gate comes before any route registration so every
	// handler chain composed afterwards carries it
	router.Use(maintenanceModeMiddleware)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(ctx *gin.Context) {
	mm := os.Getenv("MAINTENANCE_MODE")
	atoi, err := strconv.ParseBool(mm)
	if err == nil && atoi {
		err := errors.New("server is under maintenance")
		log.Println(err.Error())
		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
		return
	}
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func publicRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	publicEventHandlers(apiv1)
	apiv1.
		GET("/share/:filename", func(ctx *gin.Context) {
			if config.ApiEnv() != "local" {
				ctx.Status(http.StatusNotFound)
				return
			}
			var params struct {
				Filename string `uri:"filename" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.File(localAssetPath(params.Filename))
		})
	return apiv1
}

func guestAuthRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	guest := apiv1.Group("/auth")
	guest.
		POST("/register", func(ctx *gin.Context) {
			user, token, status, err := controllers.AuthRegister(ctx)
			if err != nil {
				log.Printf("[AuthRegister] error: %s\n", err.Error())
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(status, gin.H{"data": user, "token": token})
		}).
		POST("/login", func(ctx *gin.Context) {
			token, status, err := controllers.AuthLogin(ctx)
			if err != nil {
				log.Printf("[AuthLogin] error: %s\n", err.Error())
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(status, gin.H{"token": token})
		}).
		GET("/google", func(ctx *gin.Context) {
			url, status, err := controllers.AuthGoogle(ctx)
			if err != nil {
				log.Printf("[AuthGoogle] error: %s\n", err.Error())
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.Redirect(http.StatusTemporaryRedirect, *url)
		}).
		GET("/google/callback", func(ctx *gin.Context) {
			token, status, err := controllers.AuthGoogleCallback(ctx)
			if err != nil {
				log.Printf("[AuthGoogleCallback] error: %s\n", err.Error())
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.Redirect(http.StatusTemporaryRedirect, config.AppHost()+"/login/callback?token="+*token)
		})
	return guest
}

func authRoutes(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/auth/protected", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{
				"id":    ctx.GetUint("id"),
				"email": ctx.GetString("email"),
				"role":  ctx.GetString("role"),
			})
		}).
		POST("/auth/logout", func(ctx *gin.Context) {
			status, err := controllers.AuthLogout(ctx)
			if err != nil {
				log.Printf("[AuthLogout] error: %s\n", err.Error())
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(status)
		})
	return g
}

// setupSocketServer mounts the realtime channel. Clients authenticate
// with their bearer token in the handshake and join rooms for their own
// id, their role and any events they watch.
func setupSocketServer(r *gin.Engine) *socket.Server {
	c := socket.DefaultServerOptions()
	c.SetServeClient(true)
	c.SetPingInterval(time.Second)
	c.SetPingTimeout(200 * time.Millisecond)
	c.SetMaxHttpBufferSize(1_000_000)
	c.SetConnectTimeout(time.Second)
	c.SetCors(&engineiotypes.Cors{
		Origin:      "*",
		Credentials: true,
	})

	wss := socket.NewServer(nil, nil)
	lib.NewSocketServer(wss)
	wss.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		auth, _ := client.Handshake().Auth.(map[string]any)
		token, _ := auth["token"].(string)
		rd := lib.GetRedisClient()
		found, err := rd.Exists(context.Background(), "session:"+token).Result()
		if err != nil || found == 0 {
			log.Printf("Rejecting socket client [%s]: no active session\n", string(client.Id()))
			client.Disconnect(true)
			return
		}
		claims := &types.Claims{}
		tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			return []byte(os.Getenv("JWT_SECRET")), nil
		})
		if err != nil || !tkn.Valid {
			log.Printf("Rejecting socket client [%s]: bad credentials\n", string(client.Id()))
			client.Disconnect(true)
			return
		}
		client.Join(socket.Room("user:" + claims.Subject))
		client.Join(socket.Room("role:" + claims.Role))
		log.Printf("[newclient]: %s user:%s role:%s\n", string(client.Id()), claims.Subject, claims.Role)
		client.On("watchEvent", func(data ...any) {
			if len(data) == 0 {
				return
			}
			if id, ok := data[0].(string); ok && canWatchEvent(claims, id) {
				client.Join(socket.Room("event:" + id))
			}
		})
		client.On("unwatchEvent", func(data ...any) {
			if len(data) == 0 {
				return
			}
			if id, ok := data[0].(string); ok {
				client.Leave(socket.Room("event:" + id))
			}
		})
	})

	r.GET("/socket.io/*any", gin.WrapH(wss.ServeHandler(c)))
	r.POST("/socket.io/*any", gin.WrapH(wss.ServeHandler(c)))
	return wss
}

// canWatchEvent gates the event:<id> rooms. Gate operators and admins
// may watch any event, organizers only the events they own.
func canWatchEvent(claims *types.Claims, eventId string) bool {
	switch types.Role(claims.Role) {
	case types.ROLE_GATE_OPERATOR, types.ROLE_SUPER_ADMIN:
		return true
	case types.ROLE_ORGANIZER:
		var count int64
		if err := db.GetDb().
			Model(&models.Event{}).
			Where("id = ? AND organizer_id = ?", eventId, claims.Subject).
			Count(&count).Error; err != nil {
			return false
		}
		return count == 1
	default:
		return false
	}
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	f, _ := os.Create(apiLogs)
	gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	boot.InitDb()
	boot.InitScheduler()
	go boot.InitBroker()

	router := setupRouter()
	wss := setupSocketServer(router)
	if wss != nil {
		log.Println("WS server listening for connections...")
	}

	appHost := config.AppHost()
	if apiEnv == "local" {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
		cc.AllowOriginFunc = func(origin string) bool {
			match, _ := regexp.MatchString(appHost, origin)
			if match {
				return true
			}
			match, _ = regexp.MatchString("app:mobile", origin)
			return match
		}
		cc.AllowCredentials = true
		cc.AllowAllOrigins = false
		router.Use(cors.New(cc))
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("bookabledate", eventDateTimeValidatorFunc)
		v.RegisterValidation("gtdate", gtfield)
	}

	publicRoutes(router)
	guestAuthRoutes(router)
	stripeWebhookRoute(router)

	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	{
		authRoutes(authorized)
		userHandlers(authorized)
		ticketHandlers(authorized)

		attendees := authorized.Group("")
		attendees.Use(middlewares.RequireRoles(types.ROLE_ATTENDEE, types.ROLE_VENDOR, types.ROLE_SUPER_ADMIN))
		attendeeTicketHandlers(attendees)
		paymentHandlers(attendees)

		organizer := authorized.Group("")
		organizer.Use(middlewares.RequireRoles(types.ROLE_ORGANIZER, types.ROLE_SUPER_ADMIN))
		eventHandlers(organizer)
		ticketTypeHandlers(organizer)
		organizerTicketHandlers(organizer)
		analyticsHandlers(organizer)

		venues := authorized.Group("")
		venues.Use(middlewares.RequireRoles(types.ROLE_VENUE_MANAGER, types.ROLE_ORGANIZER, types.ROLE_SUPER_ADMIN))
		venueHandlers(venues)

		gates := authorized.Group("")
		gates.Use(middlewares.RequireRoles(types.ROLE_GATE_OPERATOR, types.ROLE_ORGANIZER, types.ROLE_SUPER_ADMIN))
		validationHandlers(gates)
	}

	srv := &http.Server{Addr: ":9090", Handler: router}
	go func() {
		var err error
		if os.Getenv("TLS_ENABLE") == "true" {
			cwd, _ := os.Getwd()
			certpath := path.Join(cwd, "certificates", "localhost.pem")
			keypath := path.Join(cwd, "certificates", "localhost-key.pem")
			err = srv.ListenAndServeTLS(certpath, keypath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	boot.StopScheduler()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %s\n", err.Error())
	}
	if err := db.Close(); err != nil {
		log.Printf("Error closing database: %s\n", err.Error())
	}
}
