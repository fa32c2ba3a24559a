package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	DEVICE_TRIGGER = "device"
	MANUAL_TRIGGER = "manual"
)

// AlertRecord is the history entry for one coordinator cycle
type AlertRecord struct {
	BaseModel
	Trigger string `json:"trigger"`
	Status  string `json:"status"`
	Success bool   `json:"success"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Called  int    `json:"called"`
}

func CreateAlertRecord(record *AlertRecord) error {
	currentTime := time.Now()
	record.CreatedAt = currentTime
	record.UpdatedAt = currentTime

	return db.Create(record).Error
}

// FetchAlertRecords returns alert history, most recent first
func FetchAlertRecords(page int) ([]AlertRecord, *Paging, error) {
	var total int64
	records := []AlertRecord{}

	err := db.Model(&AlertRecord{}).Count(&total).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, ALERT_PAGE_SIZE)).Order("id desc").Find(&records).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	return records, newPaging(page, ALERT_PAGE_SIZE, total), nil
}

// DeleteAlertRecordsBefore removes history entries created before 'before'
func DeleteAlertRecordsBefore(before time.Time) (int64, error) {
	res := db.Where("created_at < ?", before).Delete(&AlertRecord{})
	return res.RowsAffected, res.Error
}
