package main

import (
	"log"

	"github.com/techagentng/converse/config"
	"github.com/techagentng/converse/db"
	"github.com/techagentng/converse/mailingservices"
	"github.com/techagentng/converse/server"
	"github.com/techagentng/converse/services"
	"github.com/techagentng/converse/ws"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	mailgunClient := &mailingservices.Mailgun{}
	mailgunClient.Init(conf)

	gormDB := db.GetDB(conf)

	userRepo := db.NewUserRepo(gormDB)
	conversationRepo := db.NewConversationRepo(gormDB)
	messageRepo := db.NewMessageRepo(gormDB)

	hub := ws.NewHub()
	notifier := ws.NewNotifier(hub, mailgunClient, userRepo)

	conversationService := services.NewConversationService(conversationRepo, messageRepo, userRepo, conf)
	mentionService := services.NewMentionService(userRepo, messageRepo)
	messageService := services.NewMessageService(conversationService, mentionService, conversationRepo, messageRepo, notifier, conf)

	s := &server.Server{
		Config:                 conf,
		Mail:                   mailgunClient,
		ConversationService:    conversationService,
		MessageService:         messageService,
		ConversationRepository: conversationRepo,
		MessageRepository:      messageRepo,
		UserRepository:         userRepo,
		Hub:                    hub,
		DB:                     db.GormDB{},
	}

	s.Start()
}
