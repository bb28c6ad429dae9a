package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Dependencies struct {
	Gate         SessionResolver
	Appointments *AppointmentController
	Messages     *MessageController
	Admin        *AdminController
	Feeds        FeedServer
	CORSOrigins  []string
	Logger       *zap.Logger
}

func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(deps.Logger), gin.Recovery())

	config := cors.DefaultConfig()
	if allowsAll(deps.CORSOrigins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = deps.CORSOrigins
		config.AllowCredentials = true
	}
	config.AllowHeaders = []string{
		"Content-Type",
		"Origin",
		"Accept",
		HeaderUserID,
	}
	config.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	student := api.Group("/student", RequireSession(deps.Gate, model.RoleStudent))
	student.POST("/appointments", deps.Appointments.RequestBooking)
	student.POST("/messages", deps.Messages.Send)

	teacher := api.Group("/teacher", RequireSession(deps.Gate, model.RoleTeacher))
	teacher.POST("/appointments/:id/approve", deps.Appointments.Approve)
	teacher.POST("/appointments/:id/cancel", deps.Appointments.Cancel)
	teacher.POST("/messages", deps.Messages.Send)
	teacher.DELETE("/threads/:studentId/messages", deps.Messages.ClearThread)

	if deps.Feeds != nil {
		connect := func(c *gin.Context) {
			deps.Feeds.Serve(c.Writer, c.Request, sessionFrom(c))
		}
		student.GET("/ws", connect)
		teacher.GET("/ws", connect)
	}

	admin := api.Group("/admin", RequireSession(deps.Gate, model.RoleAdmin))
	admin.DELETE("/users/:id", deps.Admin.DeleteUser)

	return router
}

func allowsAll(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
