package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas de la tienda.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	userH *UserHandler,
	productH *ProductHandler,
	orderH *OrderHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// El SPA consume las mismas rutas bajo /api.
	mountRoutes(r.Group(""), jwtSvc, userH, productH, orderH)
	mountRoutes(r.Group("/api"), jwtSvc, userH, productH, orderH)

	return r
}

func mountRoutes(
	g *gin.RouterGroup,
	jwtSvc *service.JWTService,
	userH *UserHandler,
	productH *ProductHandler,
	orderH *OrderHandler,
) {
	auth := g.Group("/auth")
	auth.POST("/register", userH.Register)
	auth.POST("/login", userH.Login)
	auth.POST("/verify-otp", userH.VerifyOTP)
	auth.GET("/profile", JWTAuthMiddleware(jwtSvc), userH.Profile)

	products := g.Group("/products")
	products.GET("", productH.List)
	products.GET("/categories/list", productH.Categories)
	products.GET("/:id", productH.Get)

	orders := g.Group("/orders", JWTAuthMiddleware(jwtSvc))
	orders.POST("", orderH.Place)
	orders.GET("/my", orderH.ListMine)
	orders.GET("/:id", orderH.Get)
	orders.GET("", AdminOnly(), orderH.ListAll)
	orders.PUT("/:id/pay", AdminOnly(), orderH.MarkPaid)
	orders.PUT("/:id/deliver", AdminOnly(), orderH.MarkDelivered)
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
