package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/samirrijal/stashpoint/internal/adapters/postgres"
	"github.com/samirrijal/stashpoint/internal/pkg/config"
	"github.com/samirrijal/stashpoint/internal/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|version>")
	}

	cfg, err := config.Load("stashpoint-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 2)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	mg, err := postgres.NewMigrator(db)
	if err != nil {
		log.Fatalf("migrator: %v", err)
	}
	defer mg.Close()

	switch os.Args[1] {
	case "up":
		err = mg.Up()
	case "down":
		err = mg.Down()
	case "version":
		v, dirty, verr := mg.Version()
		if verr != nil {
			log.Fatalf("version: %v", verr)
		}
		log.Printf("schema version %d (dirty=%v)", v, dirty)
		return
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", os.Args[1], err)
	}
	log.Println("migrations applied")
}
