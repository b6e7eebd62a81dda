package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/taller7/muebleria-api/internal/audit"
	"github.com/taller7/muebleria-api/internal/catalog"
	"github.com/taller7/muebleria-api/internal/httpx"
	"github.com/taller7/muebleria-api/internal/order"
)

func newRouter(log *zap.Logger, auth authService, products catalog.Repository,
	orders order.Repository, eng *order.Engine, trail *audit.Trail) *gin.Engine {

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.POST("/auth/register", registerHandler(auth))
	r.POST("/auth/login", loginHandler(auth))
	r.POST("/auth/logout", httpx.Auth(auth), logoutHandler(auth))
	r.GET("/auth/me", httpx.Auth(auth), meHandler(auth))

	r.GET("/products", listProductsHandler(products))
	r.GET("/products/:id", getProductHandler(products))

	authed := r.Group("/", httpx.Auth(auth))
	{
		authed.POST("/orders", placeOrderHandler(eng))
		authed.GET("/orders/myorders", myOrdersHandler(orders))
		authed.GET("/orders/:id", getOrderHandler(orders))
	}

	admin := r.Group("/admin", httpx.Auth(auth), httpx.RequireAdmin())
	{
		admin.GET("/orders", adminListOrdersHandler(orders))
		admin.PUT("/orders/:id/deliver", deliverOrderHandler(eng))
		admin.GET("/orders/:id/audit", orderAuditHandler(trail))

		admin.POST("/products", createProductHandler(products))
		admin.PUT("/products/:id", updateProductHandler(products))
		admin.DELETE("/products/:id", deleteProductHandler(products))
	}

	return r
}
