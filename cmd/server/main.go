// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/starplay/starplay/internal/auth"
	"github.com/starplay/starplay/internal/cache"
	"github.com/starplay/starplay/internal/database"
	"github.com/starplay/starplay/internal/game"
	"github.com/starplay/starplay/internal/handlers"
	"github.com/starplay/starplay/internal/hub"
	"github.com/starplay/starplay/internal/ledger"
	"github.com/starplay/starplay/internal/middleware"
	"github.com/starplay/starplay/internal/models"
	"github.com/starplay/starplay/internal/room"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// Persistent signing keys keep sessions valid across deploys; without
	// them a fresh pair is generated and clients re-login.
	if priv, pub := os.Getenv("AUTH_PRIVATE_KEY_PATH"), os.Getenv("AUTH_PUBLIC_KEY_PATH"); priv != "" && pub != "" {
		if err := auth.InitFromPath(priv, pub); err != nil {
			log.Fatalf("failed to load auth keys: %v", err)
		}
	} else {
		auth.Init()
	}

	// Balances live in Postgres when configured, in memory otherwise (useful
	// for local play without infrastructure).
	var bal ledger.Ledger
	if os.Getenv("PG_HOST") != "" {
		database.ConnectDB()
		defer database.DB.Close()
		bal = ledger.NewPostgresLedger(database.DB)
	} else {
		logger.Warn("PG_HOST not set, using in-memory balances")
		bal = ledger.NewMemoryLedger(1000)
	}

	auditEnabled := false
	if os.Getenv("REDIS_ADDR") != "" {
		if err := cache.ConnectRedis(); err != nil {
			logger.Warnf("redis unavailable, settlement audit disabled: %v", err)
		} else {
			auditEnabled = true
		}
	}

	h := hub.New(logger)
	manager := room.NewManager(room.DefaultConfig(), h, bal, logger)
	h.OnSendFailure = manager.DisconnectPlayer

	manager.OnSettled = func(snap models.RoomSnapshot, s game.Settlement) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if database.DB != nil {
			if err := database.RecordSettlement(ctx, snap, s); err != nil {
				logger.WithError(err).WithField("room_id", snap.ID).Error("failed to record settlement")
			}
		}
		if auditEnabled {
			rec := cache.SettlementRecord{
				RoomID:         snap.ID,
				GameType:       string(snap.GameType),
				Result:         s.Result,
				Winners:        s.Winners,
				PrizePerWinner: s.PrizePerWinner,
				TotalPrize:     s.TotalPrize,
				Seed:           s.Seed,
				Nonce:          s.Nonce,
				Choices:        s.Choices,
				Timestamp:      time.Now().Unix(),
			}
			if err := cache.PublishSettlement(ctx, rec); err != nil {
				logger.WithError(err).WithField("room_id", snap.ID).Error("failed to publish settlement audit")
			}
		}
	}

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler)
	mux.HandleFunc("/user/login", handlers.LoginHandler)

	// room endpoints
	mux.Handle("/rooms/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateRoomHandler(logger, manager),
	)))
	mux.Handle("/rooms/join", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.JoinRoomHandler(logger, manager),
	)))
	mux.Handle("/rooms/ready", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ReadyRoomHandler(logger, manager),
	)))
	mux.Handle("/rooms/list", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListRoomsHandler(manager),
	)))
	mux.Handle("/player/status", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.PlayerStatusHandler(manager),
	)))

	// game websocket
	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomWSHandler(logger, manager, h),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
