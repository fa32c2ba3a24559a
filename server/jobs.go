package server

import (
	"context"
	"time"

	"github.com/airis-sh/airis/gstorage"
	"github.com/airis-sh/airis/models"
	"github.com/airis-sh/airis/shared"
	"github.com/airis-sh/airis/utils"
	"github.com/airis-sh/airis/work"
	"github.com/pkg/errors"
)

const (
	BACKUP_SQLITE_DB_JOB    = "backupSqliteDb"
	PRUNE_ALERT_HISTORY_JOB = "pruneAlertHistory"

	PRUNE_SCHEDULE = "0 3 * * *"
)

func (app *App) registerJobHandlers() error {
	err := app.workers.Register(BACKUP_SQLITE_DB_JOB, app.backupSqliteDb)
	if err != nil {
		return err
	}

	return app.workers.Register(PRUNE_ALERT_HISTORY_JOB, app.pruneAlertHistory)
}

func (app *App) enqueueJobs() error {
	storageConfig := app.config.Google.Storage
	if storageConfig.BackupEnabled() {
		err := app.workers.PeriodicallyPerform(storageConfig.SqliteBackupSchedule, work.JobParams{
			Name:     BACKUP_SQLITE_DB_JOB,
			Handler:  BACKUP_SQLITE_DB_JOB,
			Unique:   true,
			MaxFails: 3,
			Args:     map[string]interface{}{},
		})
		if err != nil {
			return errors.Wrap(err, "schedule sqlite backup")
		}
	}

	if app.config.Airis.Cron.HistoryRetention > 0 {
		err := app.workers.PeriodicallyPerform(PRUNE_SCHEDULE, work.JobParams{
			Name:    PRUNE_ALERT_HISTORY_JOB,
			Handler: PRUNE_ALERT_HISTORY_JOB,
			Unique:  true,
			Args:    map[string]interface{}{},
		})
		if err != nil {
			return errors.Wrap(err, "schedule alert history pruning")
		}
	}

	return nil
}

// backupSqliteDb uploads the settings db to google storage
func (app *App) backupSqliteDb(map[string]interface{}) error {
	if app.storage == nil {
		return errors.New("no storage configured for sqlite backups")
	}

	if err := models.Checkpoint(); err != nil {
		return errors.Wrap(err, "backupSqliteDb")
	}

	dbFilePath, err := models.DbFilePath(app.configDir)
	if err != nil {
		return err
	}

	storageConfig := app.config.Google.Storage
	return app.storage.UploadFile(context.Background(), storageConfig.Bucket, storageConfig.Prefix, dbFilePath)
}

func (app *App) pruneAlertHistory(map[string]interface{}) error {
	before := time.Now().Add(-app.config.Airis.Cron.HistoryRetention)

	deleted, err := models.DeleteAlertRecordsBefore(before)
	if err != nil {
		return err
	}

	logg.Infof("Pruned %v alert record(s) older than %v", deleted, before.Format(time.RFC3339))
	return nil
}

// restoreSqliteDb pulls the last backup from google storage when there is
// no local db yet, e.g. on a fresh machine.
func restoreSqliteDb(storage gstorage.Storage, config shared.StorageConfig, configDir string) error {
	dbFilePath, err := models.DbFilePath(configDir)
	if err != nil {
		return err
	}

	if utils.FileExist(dbFilePath) {
		return nil
	}

	err = storage.DownloadFile(context.Background(), config.Bucket, gstorage.ObjectName(config.Prefix, dbFilePath), dbFilePath)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		logg.Info("No sqlite backup found in google storage, starting with a fresh db")
		return nil
	}

	return err
}
