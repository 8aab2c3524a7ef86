package models

import (
	"bitbucket.org/mmdatafocus/storeadmin_backend/config"
	"bitbucket.org/mmdatafocus/storeadmin_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()

	utils.ErrorPanic(db.AutoMigrate(
		&SyncRun{}, &SyncRunError{},
		&RecordLink{},
	))
}
