package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/techagentng/converse/config"
	"github.com/techagentng/converse/db"
	"github.com/techagentng/converse/mailingservices"
	"github.com/techagentng/converse/services"
	"github.com/techagentng/converse/ws"
)

type Server struct {
	Config                 *config.Config
	Mail                   *mailingservices.Mailgun
	ConversationService    services.ConversationService
	MessageService         services.MessageService
	ConversationRepository db.ConversationRepository
	MessageRepository      db.MessageRepository
	UserRepository         db.UserRepository
	Hub                    *ws.Hub
	DB                     db.GormDB
}

// Start runs the HTTP server and blocks until an interrupt arrives and the
// server drains.
func (s *Server) Start() {
	r := s.setupRouter()

	port := s.Config.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	go func() {
		log.Printf("Server started on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
