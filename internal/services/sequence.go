package services

import (
	"time"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceService issues business keys such as VESPL/PO/2526/001.
type SequenceService struct {
	prefix      string
	fiscalStart int
	loc         *time.Location
}

func NewSequenceService(prefix string, fiscalStartMonth int, loc *time.Location) *SequenceService {
	if loc == nil {
		loc = time.Local
	}
	if fiscalStartMonth < 1 || fiscalStartMonth > 12 {
		fiscalStartMonth = 4
	}
	return &SequenceService{prefix: prefix, fiscalStart: fiscalStartMonth, loc: loc}
}

// Next must run inside the caller's transaction so the number is only
// consumed when the document is actually stored.
func (s *SequenceService) Next(tx *gorm.DB, docType string, at time.Time) (string, error) {
	fy := utils.FiscalYearCode(at.In(s.loc), s.fiscalStart)

	seq := models.DocumentSequence{DocType: docType, FiscalYear: fy}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return "", err
	}

	res := tx.Model(&models.DocumentSequence{}).
		Where("doc_type = ? AND fiscal_year = ?", docType, fy).
		UpdateColumn("last_value", gorm.Expr("last_value + ?", 1))
	if res.Error != nil {
		return "", res.Error
	}

	var current models.DocumentSequence
	if err := tx.Where("doc_type = ? AND fiscal_year = ?", docType, fy).First(&current).Error; err != nil {
		return "", err
	}
	return utils.FormatDocNumber(s.prefix, docType, fy, current.LastValue), nil
}
