package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/models"
	"gorm.io/gorm"
)

func TestSequenceService_Next(t *testing.T) {
	db := newTestDB(t)
	svc := NewSequenceService("VESPL", 4, time.UTC)

	may := time.Date(2025, 5, 10, 10, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	nextFY := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	next := func(docType string, at time.Time) string {
		var number string
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			var err error
			number, err = svc.Next(tx, docType, at)
			return err
		}))
		return number
	}

	assert.Equal(t, "VESPL/ENQ/2526/001", next(models.DocEnquiry, may))
	assert.Equal(t, "VESPL/ENQ/2526/002", next(models.DocEnquiry, feb))
	assert.Equal(t, "VESPL/PO/2526/001", next(models.DocPurchase, may))
	// counters restart with the fiscal year
	assert.Equal(t, "VESPL/ENQ/2627/001", next(models.DocEnquiry, nextFY))
}

func TestSequenceService_RollbackDoesNotConsume(t *testing.T) {
	db := newTestDB(t)
	svc := NewSequenceService("VESPL", 4, time.UTC)
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Next(tx, models.DocGRN, at); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var number string
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		number, err = svc.Next(tx, models.DocGRN, at)
		return err
	}))
	assert.Equal(t, "VESPL/GRN/2526/001", number)
}
