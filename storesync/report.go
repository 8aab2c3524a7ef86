package storesync

import (
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/storeadmin_backend/models"
	"github.com/xuri/excelize/v2"
)

// BuildSyncRunReport renders the run history as a spreadsheet for dashboard
// download.
func BuildSyncRunReport(runs []models.SyncRun) (*excelize.File, error) {
	file := excelize.NewFile()
	const sheet = "Sync Runs"
	index, err := file.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	file.SetActiveSheet(index)
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headers := []string{"Run ID", "Tenant", "Status", "Triggered By", "Seen", "Created", "Updated", "Skipped", "Errors", "Started", "Duration (ms)"}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := file.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	for row, run := range runs {
		started := ""
		if run.StartedAt != nil {
			started = run.StartedAt.Format(time.RFC3339)
		}
		values := []any{
			run.PublicId, run.Tenant, run.Status, run.TriggeredBy,
			run.TotalSeen, run.Created, run.Updated, run.Skipped, run.ErrorCount,
			started, run.DurationMs,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	if err := file.SetColWidth(sheet, "A", "A", 38); err != nil {
		return nil, fmt.Errorf("report layout: %w", err)
	}
	return file, nil
}
