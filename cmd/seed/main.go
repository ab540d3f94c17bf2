// seed appends development sample events to the outbox for local testing. Run via ./scripts/seed.sh.
// Idempotent: skips inserts if the first sample event already exists.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"guild-sync/backend/internal/config"
	"guild-sync/backend/internal/db"
	outboxrepo "guild-sync/backend/internal/outbox/repository"
	"guild-sync/backend/internal/syncevent/domain"
)

const (
	devTeamID     = "dev-team-001"
	devRoleID     = "dev-role-001"
	devSubgroupID = "dev-subgroup-001"
	devMemberID   = "dev-member-001"
)

// sampleEvents walks one team through every event variant, in the order the application would emit them.
func sampleEvents(guildID, externalUser string) []domain.Event {
	base := func(id string) domain.Base {
		return domain.Base{ID: id, Team: devTeamID, GuildID: guildID}
	}
	return []domain.Event{
		domain.RoleCreated{Base: base("dev-event-001"), RoleID: devRoleID, RoleName: "Dev Team"},
		domain.RoleAssigned{Base: base("dev-event-002"), RoleID: devRoleID, RoleName: "Dev Team", MemberID: devMemberID, ExternalUser: externalUser},
		domain.ChannelCreated{Base: base("dev-event-003"), SubgroupID: devSubgroupID, SubgroupName: "Platform Crew"},
		domain.ChannelMemberAdded{Base: base("dev-event-004"), SubgroupID: devSubgroupID, SubgroupName: "Platform Crew", MemberID: devMemberID, ExternalUser: externalUser},
		domain.ChannelMemberRemoved{Base: base("dev-event-005"), SubgroupID: devSubgroupID, MemberID: devMemberID, ExternalUser: externalUser},
		domain.RoleUnassigned{Base: base("dev-event-006"), RoleID: devRoleID, MemberID: devMemberID, ExternalUser: externalUser},
	}
}

func main() {
	guildID := flag.String("guild", os.Getenv("SEED_GUILD_ID"), "Discord guild id the sample events target")
	user := flag.String("user", os.Getenv("SEED_DISCORD_USER_ID"), "Discord user id used as the sample member")
	flag.Parse()
	if *guildID == "" || *user == "" {
		log.Fatal("seed: -guild and -user (or SEED_GUILD_ID and SEED_DISCORD_USER_ID) are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		log.Fatal(err)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	outbox := outboxrepo.NewPostgresRepository(conn, cfg.SyncMaxAttempts)
	ctx := context.Background()
	events := sampleEvents(*guildID, *user)

	existing, err := outbox.GetEvent(ctx, events[0].EventID())
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev-event-001 exists). Skipping.")
		return
	}

	for _, ev := range events {
		row, err := domain.NewRow(ev)
		if err != nil {
			log.Fatalf("encode %s: %v", ev.EventID(), err)
		}
		if err := outbox.Append(ctx, row); err != nil {
			log.Fatalf("append %s: %v", ev.EventID(), err)
		}
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Appended %d events for team %s in guild %s\n", len(events), devTeamID, *guildID)
}
