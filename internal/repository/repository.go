package repository

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tuumbleweed/xerr"

	"receiptcore/internal/money"
	"receiptcore/internal/validate"
)

// Repository is the GORM-backed implementation of spec §6's write surface.
type Repository struct {
	db *gorm.DB
}

// Open connects to a SQLite database at path (creating it if absent) and
// migrates the receipts/processing_runs/receipt_items/llm_statistics
// tables, mirroring database/001_schema_v0.sql's role for the original
// Supabase schema.
func Open(path string) (*Repository, *xerr.Error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, xerr.NewError(err, "open repository database", path)
	}

	if err := db.AutoMigrate(&Receipt{}, &ProcessingRun{}, &ReceiptItem{}, &DailyStatistics{}); err != nil {
		return nil, xerr.NewError(err, "migrate repository schema", path)
	}

	return &Repository{db: db}, nil
}

// CreateReceipt implements "create_receipt(user_id, image_url?, file_hash?)
// -> receipt_id" (spec §6).
func (r *Repository) CreateReceipt(userID, imageURL, fileHash string) (receiptID uint64, e *xerr.Error) {
	receipt := Receipt{
		UserID:   userID,
		ImageURL: imageURL,
		FileHash: fileHash,
		Status:   "pending",
	}
	if err := r.db.Create(&receipt).Error; err != nil {
		return 0, xerr.NewError(err, "insert receipt", userID)
	}
	return receipt.ID, nil
}

// SaveProcessingRun implements spec §6's save_processing_run: one
// stage/provider attempt, persisted with its full input/output payload.
func (r *Repository) SaveProcessingRun(receiptID uint64, stage, provider, model, status, validationStatus, inputPayload, outputPayload, errorMessage string) (runID uint64, e *xerr.Error) {
	run := ProcessingRun{
		ReceiptID:        receiptID,
		Stage:            stage,
		Provider:         provider,
		Model:            model,
		Status:           status,
		ValidationStatus: validationStatus,
		InputPayload:     inputPayload,
		OutputPayload:    outputPayload,
		ErrorMessage:     errorMessage,
	}
	if err := r.db.Create(&run).Error; err != nil {
		return 0, xerr.NewError(err, "insert processing run", receiptID)
	}
	return run.ID, nil
}

// SaveReceiptSummary implements spec §6's save_receipt_summary: overwrites
// the receipt row's resolved fields (merchant, totals, payment details).
func (r *Repository) SaveReceiptSummary(receiptID uint64, fields validate.ReceiptFields) *xerr.Error {
	updates := map[string]any{
		"merchant_name_raw": fields.MerchantName,
		"currency_code":     fields.Currency,
		"payment_method":    fields.PaymentMethod,
	}
	if fields.HasSubtotal {
		c := int64(money.ToCents(fields.Subtotal))
		updates["subtotal"] = c
	}
	if fields.HasTax {
		c := int64(money.ToCents(fields.Tax))
		updates["tax"] = c
	}
	if fields.HasTotal {
		c := int64(money.ToCents(fields.Total))
		updates["total"] = c
		updates["status"] = "done"
	}
	if t, ok := parsePurchaseTime(fields.PurchaseDate, fields.PurchaseTime); ok {
		updates["purchase_time"] = t
	}

	if err := r.db.Model(&Receipt{}).Where("id = ?", receiptID).Updates(updates).Error; err != nil {
		return xerr.NewError(err, "update receipt summary", receiptID)
	}
	return nil
}

// SaveReceiptItems implements spec §6's save_receipt_items: replaces any
// existing item rows for receiptID with items, mirroring
// save_parsed_receipt's "[SALE] " normalized_text marker for on-sale
// items.
func (r *Repository) SaveReceiptItems(receiptID uint64, items []validate.LlmItem) *xerr.Error {
	if err := r.db.Where("receipt_id = ?", receiptID).Delete(&ReceiptItem{}).Error; err != nil {
		return xerr.NewError(err, "clear existing receipt items", receiptID)
	}
	if len(items) == 0 {
		return nil
	}

	rows := make([]ReceiptItem, 0, len(items))
	for i, item := range items {
		normalized := item.ProductName
		if item.OnSale {
			normalized = "[SALE] " + normalized
		}
		row := ReceiptItem{
			ReceiptID:      receiptID,
			LineIndex:      i,
			RawText:        item.ProductName,
			NormalizedText: normalized,
			Status:         "unresolved",
		}
		if item.HasLineTotal {
			c := int64(money.ToCents(item.LineTotal))
			row.LineTotal = &c
		}
		rows = append(rows, row)
	}

	if err := r.db.Create(&rows).Error; err != nil {
		return xerr.NewError(err, "insert receipt items", receiptID)
	}

	if err := r.db.Model(&Receipt{}).Where("id = ?", receiptID).Update("item_count", len(items)).Error; err != nil {
		return xerr.NewError(err, "update receipt item_count", receiptID)
	}
	return nil
}

// UpdateStatistics implements spec §6's update_statistics(provider, passed,
// is_error?, is_manual_review?), grounded on statistics_manager.py's
// get-or-create-today'-row / running-accuracy update.
func (r *Repository) UpdateStatistics(provider string, passed bool, isError bool, isManualReview bool) *xerr.Error {
	today := time.Now().UTC().Format("2006-01-02")

	var stats DailyStatistics
	err := r.db.Where("date = ?", today).First(&stats).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		stats = DailyStatistics{Date: today}
	case err != nil:
		return xerr.NewError(err, "load daily statistics row", today)
	}

	applyStatisticsUpdate(&stats, provider, passed, isError, isManualReview)

	if err := r.db.Save(&stats).Error; err != nil {
		return xerr.NewError(err, "save daily statistics row", today)
	}
	return nil
}

// applyStatisticsUpdate mirrors update_statistics's running-accuracy math
// for whichever provider bucket (primary/backup) this call belongs to.
func applyStatisticsUpdate(stats *DailyStatistics, provider string, passed, isError, isManualReview bool) {
	isPrimary := provider != "aws_textract_backup" && provider != "backup"

	if isPrimary {
		stats.PrimaryTotalCalls++
		if passed {
			stats.PrimarySumCheckPassed++
		}
		stats.PrimaryAccuracy = accuracy(stats.PrimarySumCheckPassed, stats.PrimaryTotalCalls)
	} else {
		stats.BackupTotalCalls++
		if passed {
			stats.BackupSumCheckPassed++
		}
		stats.BackupAccuracy = accuracy(stats.BackupSumCheckPassed, stats.BackupTotalCalls)
	}

	if isError {
		stats.ErrorCount++
	}
	if isManualReview {
		stats.ManualReviewCount++
	}
}

func accuracy(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	v := float64(passed) / float64(total)
	return float64(int(v*10000+0.5)) / 10000
}

// parsePurchaseTime combines an LLM-extracted date/time pair into a single
// timestamp; unparseable or absent inputs report ok=false so the caller
// leaves the existing column untouched.
func parsePurchaseTime(date, clock string) (t time.Time, ok bool) {
	if date == "" {
		return time.Time{}, false
	}
	layout := "2006-01-02"
	value := date
	if clock != "" {
		layout = "2006-01-02 15:04:05"
		value = date + " " + clock
	}
	parsed, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
