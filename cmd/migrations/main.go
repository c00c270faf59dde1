package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/vncsmyrnk/polling-app/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/polling-app/internal/config"
)

// Usage:
//
//	migrations [flags] all            apply every up migration
//	migrations [flags] list           print the embedded migration files
//	migrations [flags] <name>         run one file, e.g. create_polls.down
func main() {
	config.LoadDotEnv()

	cfg, args, err := config.ParseMigrate(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if len(args) < 1 {
		log.Fatal("a migration name is required.")
	}
	migrationName := args[0]

	if migrationName == "list" {
		for _, name := range postgres.MigrationNames() {
			fmt.Println(name)
		}
		return
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if migrationName == "all" {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal(err)
		}
		fmt.Println("All migrations executed successfully.")
		return
	}

	fileName, fileContent, err := postgres.MigrationFile(migrationName)
	if err != nil {
		log.Fatal(err)
	}

	if _, err := db.ExecContext(ctx, string(fileContent)); err != nil {
		log.Fatalf("Failed to execute SQL file %s: %v", fileName, err)
	}

	fmt.Printf("Migration file %s executed successfully.\n", fileName)
}
