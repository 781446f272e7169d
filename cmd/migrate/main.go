// README: Applies or reverts the database schema migrations.
package main

import (
	"flag"
	"log"

	"github.com/unrecano/taxi24/internal/config"
	"github.com/unrecano/taxi24/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	down := flag.Bool("down", false, "revert every applied migration")
	dir := flag.String("dir", cfg.DB.MigrationsDir, "migrations directory")
	flag.Parse()

	if *down {
		if err := postgres.MigrateDown(cfg.DB.DSN, *dir); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := postgres.MigrateUp(cfg.DB.DSN, *dir); err != nil {
		log.Fatal(err)
	}
}
