package db

import (
	"errors"
	"time"

	"shieldline/internal/model"

	"gorm.io/gorm"
)

// Journal records engine sessions so that a later invocation can tell
// whether an engine was left running.
type Journal struct {
	db *gorm.DB
}

func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// Open starts a new session record for the given profile.
func (j *Journal) Open(p model.Profile, configPath string) (*model.SessionRecord, error) {
	rec := &model.SessionRecord{
		ProfileID:   p.ID,
		ProfileName: p.Name,
		Protocol:    string(p.Protocol),
		ConfigPath:  configPath,
		StartedAt:   time.Now(),
	}
	if err := j.db.Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// CloseActive marks every open session as stopped.
func (j *Journal) CloseActive(reason string) (int64, error) {
	now := time.Now()
	result := j.db.Model(&model.SessionRecord{}).
		Where("stopped_at IS NULL").
		Updates(map[string]interface{}{"stopped_at": now, "exit_reason": reason})
	return result.RowsAffected, result.Error
}

// Active returns the most recent open session, or nil.
func (j *Journal) Active() (*model.SessionRecord, error) {
	var rec model.SessionRecord
	err := j.db.Where("stopped_at IS NULL").Order("started_at desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent lists the latest sessions, newest first.
func (j *Journal) Recent(limit int) ([]model.SessionRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var recs []model.SessionRecord
	err := j.db.Order("started_at desc").Limit(limit).Find(&recs).Error
	return recs, err
}
