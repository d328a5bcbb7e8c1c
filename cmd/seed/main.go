package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sarvangi2609/criczz/internal/config"
	"github.com/sarvangi2609/criczz/internal/database"
	"github.com/sarvangi2609/criczz/internal/domain/booking"
	"github.com/sarvangi2609/criczz/internal/domain/catalog"
	"github.com/sarvangi2609/criczz/internal/domain/chat"
	"github.com/sarvangi2609/criczz/internal/domain/identity"
	"github.com/sarvangi2609/criczz/internal/domain/match"
	"github.com/sarvangi2609/criczz/internal/domain/notification"
	"github.com/sarvangi2609/criczz/internal/domain/payment"
	jwtsvc "github.com/sarvangi2609/criczz/internal/pkg/jwt"
)

var areas = []string{"Vesu", "Adajan", "Piplod", "Pal"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DB.URL, zap.NewNop())
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	for _, fn := range []func(*gorm.DB) error{
		identity.AutoMigrate,
		catalog.AutoMigrate,
		booking.AutoMigrate,
		payment.AutoMigrate,
		match.AutoMigrate,
		notification.AutoMigrate,
		chat.AutoMigrate,
	} {
		if err := fn(db); err != nil {
			log.Fatal("AutoMigrate failed:", err)
		}
	}

	// children first so foreign references never dangle
	log.Println("Cleaning old data...")
	for _, table := range []string{"chat_messages", "conversation_members", "conversations", "notifications", "match_requests", "payments", "bookings", "cricket_boxes", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			log.Fatalf("clean %s: %v", table, err)
		}
	}

	ctx := context.Background()
	users := identity.NewRepository(db)
	boxes := catalog.NewRepository(db)

	log.Println("Creating users...")
	owners := make([]identity.User, 0, 2)
	for i := 1; i <= 2; i++ {
		u := identity.User{
			Name:  fmt.Sprintf("Box Owner %d", i),
			Phone: fmt.Sprintf("+91980000000%d", i),
			Email: fmt.Sprintf("owner%d@criczz.in", i),
			Role:  identity.RoleOwner,
		}
		if err := users.Create(ctx, &u); err != nil {
			log.Fatalf("create owner: %v", err)
		}
		owners = append(owners, u)
	}

	players := make([]identity.User, 0, 6)
	skills := []string{"beginner", "intermediate", "advanced"}
	for i := 1; i <= 6; i++ {
		u := identity.User{
			Name:       fmt.Sprintf("Player %d", i),
			Phone:      fmt.Sprintf("+91990000000%d", i),
			SkillLevel: skills[i%len(skills)],
			Area:       areas[i%len(areas)],
			Role:       identity.RolePlayer,
		}
		if err := users.Create(ctx, &u); err != nil {
			log.Fatalf("create player: %v", err)
		}
		players = append(players, u)
	}

	// a fixed admin id keeps dev tokens stable across reseeds
	admin := identity.User{ID: "00000000-0000-0000-0000-000000000001", Name: "Admin", Phone: "+919000000000", Role: identity.RoleAdmin}
	db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "phone", "role", "updated_at"}),
	}).Create(&admin)

	log.Println("Creating cricket boxes...")
	for i, a := range areas {
		box := catalog.CricketBox{
			OwnerID:             owners[i%len(owners)].ID,
			Name:                fmt.Sprintf("%s Box Arena", a),
			Area:                a,
			City:                "Surat",
			PricePerHour:        int64(80000 + i*10000),
			WeekendPricePerHour: int64(100000 + i*10000),
			Amenities:           []string{"floodlights", "parking"},
			IsActive:            true,
		}
		if err := boxes.Create(ctx, &box); err != nil {
			log.Fatalf("create box: %v", err)
		}
	}

	tokens := jwtsvc.New(cfg.Auth.JWTSecret, 30*24*time.Hour)
	log.Println("Seed completed!")
	log.Println("Dev tokens (30 days):")
	for _, u := range append(append(owners, players...), admin) {
		tok, err := tokens.GenerateToken(u.ID, string(u.Role))
		if err != nil {
			log.Fatalf("token for %s: %v", u.Name, err)
		}
		log.Printf("%-12s %-8s %s", u.Name, u.Role, tok)
	}
}
