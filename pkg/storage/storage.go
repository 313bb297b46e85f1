// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package storage persists the policy blocklist and a rolling log of
// decoded handshakes, so a restarted proxy (or a separate chproxyctl
// invocation) can recover state the in-memory policy.Blocklist and
// filter.Filter lose on process exit.
package storage

import (
	"time"

	"gorm.io/gorm"
)

// BlockedUser is a single blocklist entry.
type BlockedUser struct {
	ID        uint      `gorm:"primaryKey;column:id"`
	Username  string    `gorm:"column:username;uniqueIndex;size:255;not null"`
	Reason    string    `gorm:"column:reason;size:255"`
	BlockedAt time.Time `gorm:"column:blocked_at;index;not null"`
}

func (BlockedUser) TableName() string { return "blocked_users" }

// HandshakeRecord is a fact row logged for every handshake the filter
// finishes decoding, blocked or not.
type HandshakeRecord struct {
	ID              uint      `gorm:"primaryKey;column:id"`
	SessionID       string    `gorm:"column:session_id;index;size:64;not null"`
	RemoteAddr      string    `gorm:"column:remote_addr;index;size:64;not null"`
	User            string    `gorm:"column:user;index;size:255;not null"`
	ProtocolVersion uint64    `gorm:"column:protocol_version;not null"`
	ChunkedClient   bool      `gorm:"column:chunked_client;not null"`
	ChunkedServer   bool      `gorm:"column:chunked_server;not null"`
	SSHBasedAuth    bool      `gorm:"column:ssh_based_auth;not null"`
	Blocked         bool      `gorm:"column:blocked;index;not null"`
	Timestamp       time.Time `gorm:"column:timestamp;index;not null"`
}

func (HandshakeRecord) TableName() string { return "handshake_records" }

// Repository handles the proxy's persistent state.
type Repository struct {
	db *gorm.DB
}

// NewRepository runs the schema migration and returns a ready Repository.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&BlockedUser{}, &HandshakeRecord{}); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

// BlockUser adds username to the persisted blocklist, or updates its reason
// if already present.
func (r *Repository) BlockUser(username, reason string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing BlockedUser
		result := tx.Where("username = ?", username).First(&existing)
		if result.Error == nil {
			existing.Reason = reason
			existing.BlockedAt = time.Now()
			return tx.Save(&existing).Error
		}
		if result.Error != gorm.ErrRecordNotFound {
			return result.Error
		}
		return tx.Create(&BlockedUser{
			Username:  username,
			Reason:    reason,
			BlockedAt: time.Now(),
		}).Error
	})
}

// UnblockUser removes username from the persisted blocklist.
func (r *Repository) UnblockUser(username string) error {
	return r.db.Where("username = ?", username).Delete(&BlockedUser{}).Error
}

// LoadBlockedUsers returns the full persisted blocklist as a username ->
// reason map, suitable for policy.Blocklist.Reload.
func (r *Repository) LoadBlockedUsers() (map[string]string, error) {
	var rows []BlockedUser
	if err := r.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Username] = row.Reason
	}
	return out, nil
}

// RecordHandshake appends one row to the handshake history.
func (r *Repository) RecordHandshake(rec HandshakeRecord) error {
	rec.ID = 0
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	return r.db.Create(&rec).Error
}

// History returns the most recent handshake records, optionally filtered to
// a single remote address, newest first.
func (r *Repository) History(remoteAddr string, limit int) ([]HandshakeRecord, error) {
	var rows []HandshakeRecord
	query := r.db.Order("timestamp DESC")
	if remoteAddr != "" {
		query = query.Where("remote_addr = ?", remoteAddr)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	return rows, query.Find(&rows).Error
}

// Statistics summarizes the handshake history.
type Statistics struct {
	TotalHandshakes   int64
	BlockedHandshakes int64
	UniqueUsers       int64
	BlockedUsers      int64
}

// Statistics computes a snapshot of the persisted handshake history and
// blocklist size.
func (r *Repository) Statistics() (Statistics, error) {
	var stats Statistics
	if err := r.db.Model(&HandshakeRecord{}).Count(&stats.TotalHandshakes).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&HandshakeRecord{}).Where("blocked = ?", true).Count(&stats.BlockedHandshakes).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&HandshakeRecord{}).Distinct("user").Count(&stats.UniqueUsers).Error; err != nil {
		return stats, err
	}
	if err := r.db.Model(&BlockedUser{}).Count(&stats.BlockedUsers).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
