package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

type seedProduct struct {
	name  string
	slug  string
	price string
	stock int
	desc  string
}

type seedCategory struct {
	name     string
	slug     string
	desc     string
	products []seedProduct
}

var demoCatalog = []seedCategory{
	{
		name: "Coffee",
		slug: "coffee",
		desc: "Single origin and blends, roasted weekly.",
		products: []seedProduct{
			{name: "Espresso Blend", slug: "espresso-blend", price: "12.00", stock: 40, desc: "Dark roast with cocoa notes."},
			{name: "Ethiopia Yirgacheffe", slug: "ethiopia-yirgacheffe", price: "15.50", stock: 25, desc: "Floral, bright and light bodied."},
			{name: "Decaf Colombia", slug: "decaf-colombia", price: "13.00", stock: 10, desc: "Swiss water process decaf."},
		},
	},
	{
		name: "Tea",
		slug: "tea",
		desc: "Loose leaf teas.",
		products: []seedProduct{
			{name: "Sencha", slug: "sencha", price: "9.90", stock: 30, desc: "Steamed Japanese green tea."},
			{name: "Earl Grey", slug: "earl-grey", price: "8.50", stock: 0, desc: "Black tea with bergamot."},
		},
	},
	{
		name: "Equipment",
		slug: "equipment",
		desc: "Brewers, grinders and filters.",
		products: []seedProduct{
			{name: "Pour Over Dripper", slug: "pour-over-dripper", price: "24.00", stock: 12, desc: "Ceramic cone dripper."},
			{name: "Paper Filters (100)", slug: "paper-filters-100", price: "5.00", stock: 200, desc: "Unbleached cone filters."},
		},
	},
}

func main() {
	demoUser := flag.String("demo-user", "", "also create a demo account with this username and a generated password")
	flag.Parse()

	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "seed"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	repo := catalog.NewRepository(dbClient.DB())
	svc, err := catalog.NewService(repo)
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}

	created, err := seedCatalog(ctx, svc, repo)
	if err != nil {
		logg.Error(ctx, "seed catalog failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "products_created", created), "catalog seeded")

	if *demoUser != "" {
		password, err := seedUser(ctx, users.NewRepository(dbClient.DB()), cfg.Password, *demoUser)
		if err != nil {
			logg.Error(ctx, "seed demo user failed", err)
			os.Exit(1)
		}
		fmt.Printf("demo user %q created with password %s\n", *demoUser, password)
	}
}

// seedCatalog is idempotent: rows whose slug already exists are skipped.
func seedCatalog(ctx context.Context, svc catalog.Service, repo *catalog.Repository) (int, error) {
	created := 0
	for _, c := range demoCatalog {
		category, err := svc.CreateCategory(ctx, catalog.CreateCategoryInput{
			Name:        c.name,
			Slug:        c.slug,
			Description: c.desc,
			IsActive:    true,
		})
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			existing, findErr := repo.FindCategoryBySlug(ctx, c.slug)
			if findErr != nil {
				return created, fmt.Errorf("load category %s: %w", c.slug, findErr)
			}
			dto := catalog.NewCategoryDTO(*existing)
			category = &dto
		} else if err != nil {
			return created, fmt.Errorf("create category %s: %w", c.slug, err)
		}

		for _, p := range c.products {
			_, err := svc.CreateProduct(ctx, catalog.CreateProductInput{
				Name:        p.name,
				Slug:        p.slug,
				CategoryID:  category.ID,
				Price:       p.price,
				Description: p.desc,
				IsAvailable: true,
				Stock:       p.stock,
			})
			if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
				continue
			}
			if err != nil {
				return created, fmt.Errorf("create product %s: %w", p.slug, err)
			}
			created++
		}
	}
	return created, nil
}

func seedUser(ctx context.Context, repo *users.Repository, cfg config.PasswordConfig, username string) (string, error) {
	password, err := security.GenerateTempPassword(16)
	if err != nil {
		return "", err
	}
	hash, err := security.HashPassword(password, cfg)
	if err != nil {
		return "", err
	}
	if _, err := repo.Create(ctx, users.CreateUserDTO{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		FirstName:    "Demo",
		LastName:     "User",
	}); err != nil {
		return "", err
	}
	return password, nil
}
