package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"halaman/config/database"
	"halaman/internal/page/repository"
	"halaman/internal/page/service"
	"halaman/pkg/logger"
	"halaman/router"
	"halaman/socket"
)

func main() {
	logger.Init()
	defer logger.Log.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		dbUser := strings.TrimSpace(os.Getenv("user"))
		dbPass := strings.TrimSpace(os.Getenv("password"))
		dbHost := strings.TrimSpace(os.Getenv("host"))
		dbPort := strings.TrimSpace(os.Getenv("port"))
		dbName := strings.TrimSpace(os.Getenv("dbname"))
		sslMode := strings.TrimSpace(os.Getenv("sslmode"))
		if sslMode == "" {
			sslMode = "disable"
		}
		connStr = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", dbUser, dbPass, dbHost, dbPort, dbName, sslMode)
	}

	db, err := database.Connect(connStr)
	if err != nil {
		logger.Sugar.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()

	if err := database.InitSchema(db); err != nil {
		logger.Sugar.Fatalf("Could not initialize schema: %v", err)
	}

	repo := repository.NewPageRepository(db)
	svc := service.NewPageService(repo)

	hub := socket.NewHub(svc)
	go hub.Run()

	handler := router.Setup(svc, hub)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3033"
	}
	logger.Sugar.Infof("Backend listening on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
