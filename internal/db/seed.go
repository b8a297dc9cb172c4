package db

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// demoFighters is the development roster. Stable user ids so re-seeding is
// deterministic.
var demoFighters = []Profile{
	{UserID: "fighter-mike", Name: "Mike", Age: 28, Contact: "mike@fighter.com", Training: "Boxing", Height: "5'11\"", Weight: "185 lbs", ImageURL: "https://randomuser.me/api/portraits/men/32.jpg"},
	{UserID: "fighter-dave", Name: "Dave", Age: 31, Contact: "dave@fighter.com", Training: "Muay Thai", Height: "6'0\"", Weight: "200 lbs", ImageURL: "https://randomuser.me/api/portraits/men/22.jpg"},
	{UserID: "fighter-john", Name: "John", Age: 25, Contact: "john@fighter.com", Training: "BJJ", Height: "5'9\"", Weight: "170 lbs", ImageURL: "https://randomuser.me/api/portraits/men/62.jpg"},
	{UserID: "fighter-steve", Name: "Steve", Age: 29, Contact: "steve@fighter.com", Training: "Wrestling", Height: "6'1\"", Weight: "210 lbs", ImageURL: "https://randomuser.me/api/portraits/men/91.jpg"},
	{UserID: "fighter-alex", Name: "Alex", Age: 27, Contact: "alex@fighter.com", Training: "Kickboxing", Height: "5'10\"", Weight: "178 lbs", ImageURL: "https://randomuser.me/api/portraits/men/45.jpg"},
}

// SeedTestData resets the database and populates it with the demo fighter
// roster, a handful of one-way likes and one confirmed match pair.
//
// Behavior:
//  1. Clears profiles, likes, matches and messages.
//  2. Upserts the five demo fighters.
//  3. Mike and Dave like each other (match pair), John likes Mike one-way.
func SeedTestData(db *gorm.DB) error {
	for _, table := range []string{"messages", "matches", "likes", "profiles"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if db.Dialector.Name() == "sqlite" {
		db.Exec("DELETE FROM sqlite_sequence WHERE name = 'messages'")
	}
	log.Println("Cleared existing data")

	for _, fighter := range demoFighters {
		f := fighter
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "age", "contact", "training", "height", "weight", "image_url"}),
		}).Create(&f).Error; err != nil {
			return fmt.Errorf("failed to seed profile %s: %w", f.UserID, err)
		}
	}
	log.Printf("Seeded %d fighters.", len(demoFighters))

	likes := []Like{
		{LikerID: "fighter-mike", LikedID: "fighter-dave"},
		{LikerID: "fighter-dave", LikedID: "fighter-mike"},
		{LikerID: "fighter-john", LikedID: "fighter-mike"},
	}
	for _, l := range likes {
		like := l
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
			return fmt.Errorf("failed to seed like: %w", err)
		}
	}

	// Mike <-> Dave is mutual, materialize the pair the way the engine does:
	// one pair key, one createdAt, two owned halves.
	pairKey := uuid.NewString()
	createdAt := time.Now().UTC().Truncate(time.Millisecond)
	pair := []Match{
		{ID: uuid.NewString(), OwnerID: "fighter-mike", MatchedWith: "fighter-dave", PairKey: pairKey, CreatedAt: createdAt},
		{ID: uuid.NewString(), OwnerID: "fighter-dave", MatchedWith: "fighter-mike", PairKey: pairKey, CreatedAt: createdAt},
	}
	for _, m := range pair {
		match := m
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&match).Error; err != nil {
			return fmt.Errorf("failed to seed match: %w", err)
		}
	}

	return nil
}
