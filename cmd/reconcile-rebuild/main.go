package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/tradebooks_backend/config"
	"bitbucket.org/mmdatafocus/tradebooks_backend/reconcile"
	"bitbucket.org/mmdatafocus/tradebooks_backend/utils"
)

// Re-runs the reset-and-replay allocation pass for one entity or for every
// entity of a business. Use after a partial allocation failure, or to
// verify that persisted state matches a clean replay.
func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	entityID := flag.Int("entity-id", 0, "Optional: entity id (default: all entities of the business)")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing entities and continue rebuilding others")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := utils.SetBusinessIdInContext(context.Background(), *businessID)

	var entityIds []int
	if *entityID > 0 {
		entityIds = append(entityIds, *entityID)
	} else {
		if err := db.Raw(`
			SELECT id FROM entities WHERE business_id = ? ORDER BY id
		`, *businessID).Scan(&entityIds).Error; err != nil {
			fmt.Fprintf(os.Stderr, "discover entities: %v\n", err)
			os.Exit(1)
		}
	}

	for _, id := range entityIds {
		fmt.Printf("Rebuilding business=%s entity=%d\n", *businessID, id)
		if err := reconcile.RebuildEntity(ctx, id); err != nil {
			if *continueOnError {
				fmt.Fprintf(os.Stderr, "rebuild failed (skipping): %v\n", err)
				continue
			}
			fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("reconcile rebuild complete")
}
