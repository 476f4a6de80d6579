package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"saas-subscription-billing/internal/config"
	"saas-subscription-billing/internal/domain/model"
	"saas-subscription-billing/internal/domain/ports/repository"
	pg "saas-subscription-billing/internal/infra/db/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	planRepo := pg.NewPlanRepo(pool)
	couponRepo := pg.NewCouponRepo(pool)

	// If plans already exist, do nothing
	plans, err := planRepo.ListAll(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (monthly=%s, yearly=%s, trial=%dd)\n", p.Name, p.PriceMonthly, p.PriceYearly, p.TrialDays)
		}
		return
	}

	seedPlans := []struct {
		ID        string
		Name      string
		Monthly   string
		Yearly    string
		TrialDays int
		Features  []string
		Users     int
		StorageGB int
	}{
		{"starter", "Starter", "9.99", "99.99", 14, []string{"1 project", "Community support"}, 3, 10},
		{"pro", "Pro", "29.99", "299.99", 14, []string{"Unlimited projects", "Priority support", "API access"}, 25, 100},
		{"enterprise", "Enterprise", "99.99", "999.99", 0, []string{"Everything in Pro", "SSO", "Dedicated support"}, -1, -1},
	}

	for _, s := range seedPlans {
		monthly, _ := decimal.NewFromString(s.Monthly)
		yearly, _ := decimal.NewFromString(s.Yearly)
		p, err := model.NewPlan(s.ID, s.Name, monthly, yearly, s.TrialDays)
		if err != nil {
			log.Fatalf("build plan %q: %v", s.Name, err)
		}
		p.Features = s.Features
		p.MaxUsers = s.Users
		p.MaxStorageGB = s.StorageGB
		if err := planRepo.Save(ctx, repository.NoTX, p); err != nil {
			log.Fatalf("save plan %q: %v", s.Name, err)
		}
		fmt.Printf("seeded plan: %s (monthly=%s, yearly=%s)\n", p.Name, p.PriceMonthly, p.PriceYearly)
	}

	// A launch coupon for smoke-testing the discount path.
	value := decimal.NewFromInt(20)
	maxDiscount := decimal.NewFromInt(50)
	limit := 100
	now := time.Now()
	coupon, err := model.NewCoupon("launch20", "LAUNCH20", "Launch discount",
		model.DiscountTypePercentage, value, now, now.AddDate(0, 3, 0))
	if err != nil {
		log.Fatalf("build coupon: %v", err)
	}
	coupon.Description = "20% off, capped at 50"
	coupon.MaxDiscount = &maxDiscount
	coupon.UsageLimit = &limit
	if err := couponRepo.Save(ctx, repository.NoTX, coupon); err != nil {
		log.Fatalf("save coupon: %v", err)
	}
	fmt.Printf("seeded coupon: %s\n", coupon.Code)

	fmt.Println("Seeding complete.")
}
