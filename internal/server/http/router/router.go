package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/vinocellar/vinocellar/internal/server/http/handlers"
	"github.com/vinocellar/vinocellar/internal/server/http/middleware"
)

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.FulfillmentFacade, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.DecompressRequest())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	authHandler := handlers.NewAuthHandler(facade)
	orderHandler := handlers.NewOrderHandler(facade)
	operatorHandler := handlers.NewOperatorHandler(facade)

	api := engine.Group("/api")
	api.GET("/health", handlers.Health)

	user := api.Group("/user")
	user.POST("/register", authHandler.Register)
	user.POST("/login", authHandler.Login)

	userAuth := user.Group("")
	userAuth.Use(middleware.AuthRequired(facade))
	userAuth.POST("/orders", orderHandler.Create)
	userAuth.GET("/orders", orderHandler.List)
	userAuth.GET("/orders/:id", orderHandler.Get)
	userAuth.GET("/orders/:id/history", orderHandler.History)
	userAuth.POST("/orders/:id/accept", orderHandler.Accept)

	operator := api.Group("/operator")
	operator.Use(middleware.AuthRequired(facade))
	operator.GET("/orders/:id", operatorHandler.Get)
	operator.POST("/orders/:id/actions", operatorHandler.RunAction)
	operator.POST("/triggers/dispatch", operatorHandler.RunDispatch)
	operator.POST("/triggers/sweep", operatorHandler.RunSweep)

	return engine
}
