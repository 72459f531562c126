// Package repository is the GORM-backed implementation of spec §6's write
// surface (create_receipt, save_processing_run, save_receipt_summary,
// save_receipt_items, update_statistics), grounded structurally on
// supabase_client.py's receipts/receipt_items tables and
// statistics_manager.py's llm_statistics table. The original is a
// PostgREST client against Supabase; this translates the same row shapes
// into gorm.io/gorm models against any SQL driver GORM supports (sqlite
// here, matching the module's no-external-service test posture — a
// Postgres deployment is a one-line driver swap).
package repository

import "time"

// Receipt mirrors supabase_client.py's "receipts" table columns actually
// written by save_parsed_receipt/save_receipt_ocr.
type Receipt struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	UserID          string `gorm:"index;not null"`
	ImageURL        string
	FileHash        string `gorm:"index"`
	MerchantNameRaw string
	PurchaseTime    *time.Time
	CurrencyCode    string
	Subtotal        *int64 // cents; nil when absent per spec §6 "numeric representations"
	Tax             *int64
	Total           *int64
	ItemCount       int
	PaymentMethod   string
	Status          string `gorm:"index"` // pending | done | needs_review | failed
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Receipt) TableName() string { return "receipts" }

// ProcessingRun mirrors one save_processing_run call: a single
// stage/provider attempt against a receipt, with its full input/output
// payload preserved for debugging (spec §6's "Artifacts on disk" sibling,
// persisted to the DB instead of the filesystem for queryability).
type ProcessingRun struct {
	ID               uint64 `gorm:"primaryKey;autoIncrement"`
	ReceiptID        uint64 `gorm:"index;not null"`
	Stage            string `gorm:"index"` // ocr | llm_primary | llm_backup | validation
	Provider         string
	Model            string
	Status           string // completed | failed | timeout
	ValidationStatus string // passed | failed | not_applicable
	InputPayload     string `gorm:"type:text"`
	OutputPayload    string `gorm:"type:text"`
	ErrorMessage     string
	CreatedAt        time.Time
}

func (ProcessingRun) TableName() string { return "processing_runs" }

// ReceiptItem mirrors supabase_client.py's "receipt_items" table rows.
type ReceiptItem struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement"`
	ReceiptID       uint64 `gorm:"index;not null"`
	LineIndex       int
	RawText         string
	NormalizedText  string
	Quantity        *float64
	UnitPrice       *int64 // cents
	LineTotal       *int64 // cents
	IsTaxable       *bool
	Status          string // unresolved | resolved
	CreatedAt       time.Time
}

func (ReceiptItem) TableName() string { return "receipt_items" }

// DailyStatistics mirrors statistics_manager.py's "llm_statistics" table:
// one row per calendar day, updated in place as each provider call
// completes.
type DailyStatistics struct {
	ID                    uint64 `gorm:"primaryKey;autoIncrement"`
	Date                  string `gorm:"uniqueIndex;not null"` // YYYY-MM-DD
	PrimaryTotalCalls     int
	PrimarySumCheckPassed int
	PrimaryAccuracy       float64
	BackupTotalCalls      int
	BackupSumCheckPassed  int
	BackupAccuracy        float64
	ErrorCount            int
	ManualReviewCount     int
}

func (DailyStatistics) TableName() string { return "llm_statistics" }
