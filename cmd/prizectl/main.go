package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"prize-hub/config"
	"prize-hub/models"
	"prize-hub/services"
	"prize-hub/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const usage = `usage: prizectl <command> [flags]

commands:
  create-admin      -username NAME -password PASS [-role admin|owner]
  deactivate-admin  -username NAME
  activate-admin    -username NAME
  cleanup           remove duplicate rows and repair winner amounts
  seed              insert demo competitions, participants and winners`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fail("failed to load config: %v", err)
	}
	if cfg.DBURL == "" {
		fail("DATABASE_URL environment variable not set")
	}
	db, err := utils.OpenDatabase(cfg.DBDriver, cfg.DBURL)
	if err != nil {
		fail("%v", err)
	}

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "create-admin":
		err = createAdmin(ctx, cfg, db, args)
	case "deactivate-admin", "activate-admin":
		err = setActive(ctx, cfg, db, args, cmd == "activate-admin")
	case "cleanup":
		err = cleanup(ctx, db)
	case "seed":
		err = seed(ctx, cfg, db)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fail("%s: %v", cmd, err)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func authService(cfg *config.Config, db *gorm.DB) (*services.AuthService, error) {
	hasher, err := utils.NewPasswordHasher(utils.Argon2Params{
		Time:      cfg.Argon2Time,
		MemoryKB:  cfg.Argon2MemoryKB,
		Threads:   cfg.Argon2Threads,
		KeyLength: cfg.Argon2KeyLength,
	})
	if err != nil {
		return nil, err
	}
	// tokens are never issued here
	return services.NewAuthService(db, hasher, nil, cfg.LockoutThreshold, cfg.LockoutDuration), nil
}

func createAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	username := fs.String("username", "", "admin username")
	password := fs.String("password", os.Getenv("PRIZECTL_PASSWORD"), "admin password (or PRIZECTL_PASSWORD)")
	role := fs.String("role", models.AdminRoleAdmin, "admin or owner")
	fs.Parse(args)

	auth, err := authService(cfg, db)
	if err != nil {
		return err
	}
	admin, err := auth.CreateAdmin(ctx, *username, *password, *role)
	if err != nil {
		return err
	}
	fmt.Printf("created admin %s (%s) id=%s\n", admin.Username, admin.Role, admin.ID)
	return nil
}

func setActive(ctx context.Context, cfg *config.Config, db *gorm.DB, args []string, active bool) error {
	fs := flag.NewFlagSet("set-active", flag.ExitOnError)
	username := fs.String("username", "", "admin username")
	fs.Parse(args)

	auth, err := authService(cfg, db)
	if err != nil {
		return err
	}
	if err := auth.SetActive(ctx, *username, active); err != nil {
		return err
	}
	fmt.Printf("admin %s active=%v\n", *username, active)
	return nil
}

func cleanup(ctx context.Context, db *gorm.DB) error {
	report, err := services.NewMaintenanceService(db).Dedup(ctx)
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	return nil
}

func monthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0).Add(-time.Second)
}

func demoBreakdown() []services.BreakdownInput {
	return []services.BreakdownInput{
		{Place: 1, Amount: decimal.NewFromInt(5000), Percent: decimal.NewFromInt(50)},
		{Place: 2, Amount: decimal.NewFromInt(3000), Percent: decimal.NewFromInt(30)},
		{Place: 3, Amount: decimal.NewFromInt(2000), Percent: decimal.NewFromInt(20)},
	}
}

func demoEntries(n int) []services.ParticipantEntry {
	names := []string{"Alice", "Bruno", "Chloé", "Dmitri", "Eun-ji", "Farah", "Gus", "Hana", "Ilya", "José"}
	entries := make([]services.ParticipantEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, services.ParticipantEntry{
			WalletAddress: fmt.Sprintf("0xdemo%04d", i+1),
			Username:      names[i%len(names)],
			Score:         decimal.NewFromInt(int64(10000 - i*350)),
		})
	}
	return entries
}

// seed writes last month (ended, finalized and partly paid), this month and next month.
func seed(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	v := services.NewValidator()
	competitions := services.NewCompetitionService(db, v)
	participants := services.NewParticipantService(db, v)
	winners := services.NewWinnerService(db, v, nil)
	settings := services.NewSettingsService(db, v, cfg.BuildMarker)

	now := time.Now().UTC()
	for i, offset := range []int{-1, 0, 1} {
		start, end := monthBounds(now.AddDate(0, offset, 0))
		title := start.Format("January 2006") + " Trading Competition"
		c, err := competitions.Create(ctx, services.CompetitionInput{
			Title:         title,
			Period:        start.Format("January 2006"),
			StartDate:     start,
			EndDate:       end,
			PrizePool:     decimal.NewFromInt(10000),
			Status:        string(models.ComputeStatus(now, start, end)),
			HighlightCopy: "Top 3 traders split $10,000",
			CTAText:       "Join now",
			CTALink:       "https://example.com/trade",
			Breakdown:     demoBreakdown(),
		})
		if err != nil {
			return err
		}
		fmt.Printf("competition %s (%s)\n", c.Title, c.ID)

		if offset > 0 {
			continue
		}
		if _, err := participants.Ingest(ctx, c.ID, services.IngestRequest{Entries: demoEntries(10 + i*5)}); err != nil {
			return err
		}
		if c.ComputedStatus != models.CompetitionStatusEnded {
			continue
		}

		created, err := winners.Finalize(ctx, c.ID)
		if err != nil {
			return err
		}
		if len(created) > 0 {
			first := created[0]
			ref := services.SlotRef{CompetitionID: c.ID, WalletAddress: first.WalletAddress, Place: first.Place}
			if _, err := winners.Approve(ctx, ref); err != nil {
				return err
			}
			if _, err := winners.MarkPaid(ctx, services.MarkPaidRequest{SlotRef: ref}); err != nil {
				return err
			}
		}
		fmt.Printf("  %d winners finalized\n", len(created))
	}

	for key, value := range map[string]string{
		models.SettingHeroPromoDays:      "7",
		models.SettingCacheVersion:       fmt.Sprintf("%q", cfg.BuildMarker),
		models.SettingLeaderboardEnabled: "true",
	} {
		if _, err := settings.Put(ctx, services.SettingInput{Key: key, Value: json.RawMessage(value)}); err != nil {
			return err
		}
	}
	fmt.Println("seed complete")
	return nil
}
