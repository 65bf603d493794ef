// Command seed fills a development database with verified experts spread around
// a fixed point, so matching and nearby search return something useful.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"autodiag/config"
	"autodiag/database"
	profileRepo "autodiag/database/repository/profile"
	userRepo "autodiag/database/repository/user"
	"autodiag/models"
	"autodiag/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"
)

var specializations = []string{"engine", "brakes", "electrical", "transmission", "suspension", "cooling"}

func main() {
	count := flag.Int("experts", 30, "number of experts to create")
	radiusKm := flag.Float64("radius", 8, "furthest expert distance in km")
	lat := flag.Float64("lat", -1.2921, "center latitude")
	lng := flag.Float64("lng", 36.8219, "center longitude")
	reset := flag.Bool("reset", true, "remove previously seeded experts")
	flag.Parse()

	config.LoadConfig()
	utils.InitializeLogger()
	database.InitDB()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *reset {
		if _, err := database.Collection("users").DeleteMany(ctx, bson.M{"email": bson.M{"$regex": "@seed\\.autodiag\\.dev$"}}); err != nil {
			log.Fatalf("Failed to clear seeded users: %v", err)
		}
		if _, err := database.Collection("expert_profiles").DeleteMany(ctx, bson.M{"bio": seedBio}); err != nil {
			log.Fatalf("Failed to clear seeded experts: %v", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	users := userRepo.NewMongoUserRepo()
	experts := profileRepo.NewMongoExpertRepo()
	now := time.Now().UTC()

	// Distances are spread linearly from the radius down to a few meters.
	spacing := *radiusKm / float64(max(*count-1, 1))
	for i := 0; i < *count; i++ {
		distanceKm := *radiusKm - spacing*float64(i)
		angle := rand.Float64() * 2 * math.Pi
		// 1 km is about 0.009 degrees of latitude; longitude shrinks with cos(lat).
		dLat := distanceKm * 0.009 * math.Sin(angle)
		dLng := distanceKm * 0.009 / math.Cos(*lat*math.Pi/180) * math.Cos(angle)

		u := &models.User{
			ID:           uuid.New().String(),
			Role:         models.RoleExpert,
			Name:         fmt.Sprintf("Mechanic %d", i+1),
			Email:        fmt.Sprintf("expert_%d@seed.autodiag.dev", i+1),
			PhoneNumber:  fmt.Sprintf("+2547000%05d", i+1),
			PasswordHash: string(hash),
			Settings:     models.DefaultSettings(),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("Failed to create user %s: %v", u.Email, err)
		}

		picked := []string{specializations[i%len(specializations)], specializations[(i+2)%len(specializations)]}
		profile := &models.ExpertProfile{
			UserID:             u.ID,
			BusinessName:       fmt.Sprintf("Garage %d", i+1),
			Specializations:    picked,
			Region:             "nairobi",
			LocationGeo:        models.NewGeoPoint(*lat+dLat, *lng+dLng),
			Address:            "Seeded address",
			Bio:                seedBio,
			Rating:             3 + rand.Float64()*2,
			Verified:           i%5 != 4,
			Available:          true,
			FreeLeadsRemaining: config.AppConfig.FreeLeadsPerExpert,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := experts.Create(ctx, profile); err != nil {
			log.Fatalf("Failed to create expert profile for %s: %v", u.Email, err)
		}
	}
	log.Printf("Seeded %d experts within %.1f km of (%.4f, %.4f)", *count, *radiusKm, *lat, *lng)
}

const seedBio = "seeded for development"
