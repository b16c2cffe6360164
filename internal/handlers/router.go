package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/trivia_arena/internal/middleware"
	"github.com/mroshb/trivia_arena/pkg/logger"
)

type RouterDeps struct {
	Rooms     *RoomHandler
	Events    *EventHandler
	Websocket http.Handler
	Limiter   *middleware.RateLimiter
}

// NewRouter wires every HTTP route. Events is optional and only mounted
// when an event journal is configured.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http")))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Websocket != nil {
		r.GET("/ws", gin.WrapH(deps.Websocket))
	}

	api := r.Group("/api")
	if deps.Limiter != nil {
		api.Use(middleware.RateLimitByIP(deps.Limiter))
	}
	{
		api.GET("/categories", deps.Rooms.ListCategories)

		rooms := api.Group("/rooms")
		{
			rooms.POST("", deps.Rooms.CreateRoom)
			rooms.GET("/:code", deps.Rooms.GetRoom)
			rooms.POST("/:code/join", deps.Rooms.JoinRoom)
			rooms.POST("/:code/leave", deps.Rooms.LeaveRoom)
			rooms.POST("/:code/start", deps.Rooms.StartGame)
			rooms.POST("/:code/questions", deps.Rooms.AddQuestion)
			rooms.POST("/:code/answer", deps.Rooms.SubmitAnswer)
			rooms.POST("/:code/skip", deps.Rooms.SkipQuestion)
			rooms.POST("/:code/cancel", deps.Rooms.CancelGame)
			rooms.GET("/:code/state", deps.Rooms.GameState)
			rooms.GET("/:code/leaderboard", deps.Rooms.Leaderboard)
			rooms.GET("/:code/results", deps.Rooms.Results)
			if deps.Events != nil {
				rooms.GET("/:code/events", deps.Events.History)
			}
		}
	}

	return r
}
