package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lingoarena/lingoarena-backend/internal/rating"
	"github.com/lingoarena/lingoarena-backend/pkg/database"
)

// 개발용 참가자. 각 티어 경계 바로 아래/위에 한 명씩 둔다
var demoRatings = []struct {
	id     string
	rating int
}{
	{"demo-a1", 890},
	{"demo-a2", 1090},
	{"demo-b1", 1295},
	{"demo-b2", 1300},
	{"demo-c1", 1695},
	{"demo-c2", 1750},
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using process environment")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set in environment")
	}

	db, err := database.Connect(dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Schema is up to date")

	query := `
		INSERT INTO ratings (participant_id, rating)
		VALUES ($1, $2)
		ON CONFLICT (participant_id) DO UPDATE SET
		    rating = EXCLUDED.rating,
		    updated_at = NOW()
	`
	for _, d := range demoRatings {
		if _, err := db.ExecContext(ctx, query, d.id, d.rating); err != nil {
			log.Fatalf("Failed to seed %s: %v", d.id, err)
		}
	}
	fmt.Printf("Seeded %d demo participants\n", len(demoRatings))

	rows, err := db.QueryContext(ctx,
		`SELECT participant_id, rating FROM ratings WHERE participant_id LIKE 'demo-%' ORDER BY rating`)
	if err != nil {
		log.Fatal("Failed to query ratings: ", err)
	}
	defer rows.Close()

	fmt.Println("\nDemo participants:")
	for rows.Next() {
		var id string
		var r int
		if err := rows.Scan(&id, &r); err != nil {
			log.Fatal("Failed to scan rating: ", err)
		}
		fmt.Printf("  - %-8s %5d  %s\n", id, r, rating.TierFor(r))
	}
	if err := rows.Err(); err != nil {
		log.Fatal(err)
	}
}
