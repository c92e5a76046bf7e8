package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Printf("⚠️ order index warning: %v", err)
	}
	if err := database.EnsureCartIndexes(db); err != nil {
		log.Printf("⚠️ cart index warning: %v", err)
	}

	r := gin.Default()

	api := r.Group("/api")

	api.POST("/payment/sepay-callback", handlers.PaymentWebhook(db, config.AppEnv.SepayAPIKey))

	user := api.Group("/")
	user.Use(middleware.UserAuth(config.AppEnv.JWTSecret))
	{
		user.GET("/cart", handlers.GetCart(db))
		user.POST("/cart", handlers.AddToCart(db))
		user.POST("/cart/decrease", handlers.DecreaseCart(db))
		user.DELETE("/cart/item", handlers.RemoveCartLine(db))
		user.DELETE("/cart", handlers.ClearCart(db))

		user.POST("/order", handlers.CreateOrder(db))
		user.GET("/orders", handlers.GetOrders(db))
		user.GET("/order/:orderId", handlers.GetOrder(db))
		user.PUT("/order/:orderId", handlers.UpdateOrder(db))
		user.DELETE("/order/:orderId", handlers.CancelOrder(db))
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuth(config.AppEnv.JWTSecret))
	{
		admin.GET("/stats", handlers.GetDashboardStats(db, config.AppEnv.ReportTZOffset))
		admin.GET("/orders", handlers.GetAllOrders(db))
		admin.PUT("/orders/:orderId", handlers.UpdateOrderStatus(db))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}
