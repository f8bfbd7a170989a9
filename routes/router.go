package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/chamran/config"
	"github.com/cppla/chamran/controllers"
	"github.com/cppla/chamran/metrics"
	"github.com/cppla/chamran/middleware"
	"github.com/cppla/chamran/services"
	"github.com/cppla/chamran/store"
	"github.com/cppla/chamran/utils"
)

// Deps carries what the router needs to build its controllers.
type Deps struct {
	Config   config.AppConfig
	Store    *store.Store
	Services *services.Services
	// Checks are probed by /health.
	Checks map[string]controllers.Check
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Deps) *gin.Engine {
	cfg := deps.Config
	switch strings.ToLower(cfg.App.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	// access log goes to its own rolling file, falling back to the application logger
	gl, err := utils.NewRollingFileLogger(cfg.Log.GinPath, cfg.Log)
	if err != nil {
		gl = utils.Logger
	}
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, true))
	r.Use(metrics.Middleware())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.App.AllowedOrigins) == 0 || (len(cfg.App.AllowedOrigins) == 1 && cfg.App.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.App.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	healthController := controllers.NewHealthController(deps.Checks)
	r.GET("/health", healthController.Health)
	r.GET("/metrics", metrics.Handler())

	svc := deps.Services
	authController := controllers.NewAuthController(svc.Accounts)
	userController := controllers.NewUserController(svc.Accounts, svc.Cascade)
	followingController := controllers.NewFollowingController(svc.Graph)
	postController := controllers.NewPostController(svc.Feed, svc.Content, svc.Cascade)
	commentController := controllers.NewCommentController(svc.Feed, svc.Content, svc.Cascade)
	statsController := controllers.NewStatsController(deps.Store)

	api := r.Group("/api/v1")
	api.Use(middleware.StoreDeadline(time.Duration(cfg.Database.TimeoutSec) * time.Second))
	api.GET("/stats", statsController.GetStats)
	api.GET("/health", healthController.Health)

	limited := middleware.RateLimitMiddleware(cfg.App.RateLimitPerMinute)
	authRequired := middleware.AuthRequired()

	users := api.Group("/users")
	users.POST("/signup", limited, authController.Signup)
	users.POST("/login", limited, authController.Login)
	users.POST("/logout", authRequired, authController.Logout)
	users.GET("", userController.ListUsers)
	users.GET("/me", middleware.AuthOptional(), userController.Me)
	users.GET("/:id", userController.GetUser)
	users.PUT("/:id/password", authRequired, limited, authController.ChangePassword)
	users.PATCH("/:id", authRequired, limited, userController.UpdateUser)
	users.DELETE("/:id", authRequired, limited, userController.DeleteUser)
	users.GET("/:id/followers", followingController.Followers)
	users.GET("/:id/followings", followingController.Followings)
	users.PUT("/:id/followings/:following_id", authRequired, limited, followingController.Follow)
	users.DELETE("/:id/followings/:following_id", authRequired, limited, followingController.Unfollow)

	posts := api.Group("/posts")
	posts.GET("", postController.ListPosts)
	posts.GET("/feed/:user_id", authRequired, postController.Feed)
	posts.GET("/:id", postController.GetPost)
	posts.POST("", authRequired, limited, postController.CreatePost)
	posts.PATCH("/:id", authRequired, limited, postController.UpdatePost)
	posts.DELETE("/:id", authRequired, limited, postController.DeletePost)

	comments := api.Group("/comments")
	comments.GET("/of/:post_id", commentController.CommentsOfPost)
	comments.GET("/by/:user_id", commentController.CommentsByAuthor)
	comments.GET("/:id", commentController.GetComment)
	comments.POST("", authRequired, limited, commentController.CreateComment)
	comments.PATCH("/:id", authRequired, limited, commentController.UpdateComment)
	comments.DELETE("/:id", authRequired, limited, commentController.DeleteComment)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Respond(ctx, http.StatusNotFound, 40400, "route not found", utils.ErrorData{Type: "RouteNotFound"})
	})

	return r
}
