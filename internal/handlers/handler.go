// Package handlers is the JSON surface over the services. Handlers parse
// input, pass the session's user as actor and render results or typed
// failures; business rules live in the services.
package handlers

import (
	"resplan/internal/services"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handler struct {
	svc *services.Services
	db  *gorm.DB
	log *zap.Logger
}

func New(svc *services.Services, db *gorm.DB, log *zap.Logger) *Handler {
	return &Handler{svc: svc, db: db, log: log.Named("http")}
}
