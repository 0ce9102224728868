package app

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const backupLayout = "20060102-150405"

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() error {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	if _, err := a.sched.AddFunc("@daily", a.SchedBackupTask); err != nil {
		zap.S().Errorf("init job error %s", err.Error())
		return err
	}
	if _, err := a.sched.AddFunc("@every 5m", a.SchedReconcileTask); err != nil {
		zap.S().Errorf("init job error %s", err.Error())
		return err
	}
	return nil
}

// SchedBackupTask copies the store into a timestamped directory and
// removes backups older than the retention.
func (a *Application) SchedBackupTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	root := a.appConfig.BackupDir()
	dir := filepath.Join(root, time.Now().Format(backupLayout))
	if err := a.Backup(dir); err != nil {
		zap.L().Error("store backup failed", zap.String("namespace", "app"), zap.Error(err))
		return
	}
	zap.L().Info("store backup written", zap.String("namespace", "app"), zap.String("dir", dir))

	keep := time.Duration(a.appConfig.Storage.BackupKeepDays) * 24 * time.Hour
	if keep <= 0 {
		return
	}
	for _, old := range expiredBackups(root, time.Now().Add(-keep)) {
		if err := os.RemoveAll(old); err != nil {
			zap.L().Warn("remove old backup", zap.String("namespace", "app"), zap.String("dir", old), zap.Error(err))
		}
	}
}

// expiredBackups lists backup directories below root named before cutoff.
func expiredBackups(root string, cutoff time.Time) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ts, err := time.ParseInLocation(backupLayout, e.Name(), time.Local)
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			out = append(out, filepath.Join(root, e.Name()))
		}
	}
	sort.Strings(out)
	return out
}

// SchedReconcileTask repairs stored cart totals.
func (a *Application) SchedReconcileTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	n, err := a.Reconcile()
	if err != nil {
		zap.L().Error("cart reconcile failed", zap.String("namespace", "app"), zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Info("cart totals repaired", zap.String("namespace", "app"), zap.Int("carts", n))
	}
}
