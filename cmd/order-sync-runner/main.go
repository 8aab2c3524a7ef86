// One-shot reconciliation runner: connects, syncs one tenant, prints the
// summary. Used for cron jobs and manual backfills.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"bitbucket.org/mmdatafocus/storeadmin_backend/config"
	"bitbucket.org/mmdatafocus/storeadmin_backend/models"
	"bitbucket.org/mmdatafocus/storeadmin_backend/storesync"
)

func main() {
	tenantFlag := flag.String("tenant", string(models.TenantWeb), "platform tenant to reconcile (web|pos)")
	skipDB := flag.Bool("skip-db", false, "run without database-backed run history")
	flag.Parse()

	tenant, ok := models.ParseTenant(*tenantFlag)
	if !ok {
		log.Fatalf("unknown tenant %q", *tenantFlag)
	}

	runs := &models.SyncRunStore{}
	links := &models.RecordLinkStore{}
	if !*skipDB {
		config.ConnectDatabaseWithRetry()
		runs.DB = config.GetDB()
		links.DB = config.GetDB()
		models.MigrateTable()
	}

	svc, err := storesync.NewService(runs, links)
	if err != nil {
		log.Fatal(err)
	}

	summary, err := svc.Orders.SyncOrders(context.Background(), tenant, models.SyncTriggeredSystem)
	if err != nil {
		log.Fatalf("reconciliation failed: %v", err)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
	if summary.ErrorCount > 0 {
		os.Exit(2)
	}
}
