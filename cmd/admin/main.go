// Package main provides admin management utilities for project0.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"project0/internal/config"
	"project0/internal/database"
	"project0/internal/repository"
	"project0/internal/service"
)

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin/main.go promote <user_id>          - Promote user to admin")
	fmt.Println("  go run ./cmd/admin/main.go demote <user_id>           - Demote user from admin")
	fmt.Println("  go run ./cmd/admin/main.go grant <user_id> <credits>  - Add credits to a user")
	fmt.Println("  go run ./cmd/admin/main.go list-admins                - List all admins")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	users := repository.NewUserRepository(db)
	svc := service.NewUserService(users)
	ctx := context.Background()

	switch os.Args[1] {
	case "promote", "demote":
		id := userIDArg()
		user, err := svc.SetAdmin(ctx, id, os.Args[1] == "promote")
		if err != nil {
			log.Fatalf("Failed to %s user %d: %v", os.Args[1], id, err)
		}
		fmt.Printf("✅ %s (ID: %d) is_admin=%t\n", user.Username, user.ID, user.IsAdmin)

	case "grant":
		id := userIDArg()
		if len(os.Args) < 4 {
			printUsage()
			os.Exit(1)
		}
		amount, err := strconv.Atoi(os.Args[3])
		if err != nil || amount <= 0 {
			log.Fatalf("Invalid credit amount %q", os.Args[3])
		}
		if err := users.AddCredits(ctx, id, amount); err != nil {
			log.Fatalf("Failed to grant credits: %v", err)
		}
		user, err := svc.GetUserByID(ctx, id)
		if err != nil {
			log.Fatalf("Failed to reload user: %v", err)
		}
		fmt.Printf("✅ %s (ID: %d) now has %d credits\n", user.Username, user.ID, user.Credits)

	case "list-admins":
		admins, err := svc.ListAdmins(ctx)
		if err != nil {
			log.Fatalf("Failed to fetch admins: %v", err)
		}
		if len(admins) == 0 {
			fmt.Println("No admins found in the system")
			return
		}
		fmt.Println("\n📋 Current Admins:")
		fmt.Println("─────────────────────────────────────")
		for _, admin := range admins {
			fmt.Printf("ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
		}
		fmt.Println("─────────────────────────────────────")

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func userIDArg() uint {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}
	id, err := strconv.ParseUint(os.Args[2], 10, 32)
	if err != nil || id == 0 {
		log.Fatalf("Invalid user ID %q", os.Args[2])
	}
	return uint(id)
}
