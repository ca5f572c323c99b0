package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docflow/docflow/internal/database"
	"github.com/docflow/docflow/internal/document/handler"
	"github.com/docflow/docflow/internal/document/repository"
	"github.com/docflow/docflow/internal/document/service"
	"github.com/docflow/docflow/pkg/middleware"
)

// Minimal standalone entrypoint: no redis, no metrics, insecure actor
// headers. Useful for local development and integration tests.
func main() {
	port := os.Getenv("DOCFLOW_PORT")
	if port == "" {
		port = "5021"
	}

	r := gin.New()
	r.Use(gin.Recovery())

	// Prefer a Mongo-backed store when MONGODB_URI is provided.
	var store repository.Store
	if mongoURI := os.Getenv("MONGODB_URI"); mongoURI != "" {
		client, err := database.ConnectMongo(context.Background(), mongoURI, 10*time.Second)
		if err != nil {
			log.Printf("warning: cannot connect to MongoDB (%v), using in-memory store", err)
		} else {
			store = repository.NewMongoRepo(client.Database(getenv("MONGODB_DATABASE", "docflow")).Collection("documents"))
		}
	}
	if store == nil {
		store = repository.NewMemoryRepo()
	}

	svc := service.New(store)
	auth := middleware.ActorMiddleware(os.Getenv("ACTOR_TOKEN_SECRET"), true)
	handler.New(svc, nil).Register(r, auth)

	log.Printf("docflow service listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
