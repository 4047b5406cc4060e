package services

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestInventoryService_MasterData(t *testing.T) {
	e := newTestEnv(t)
	store := e.user(t, "sunil", models.RoleStore)

	item := e.item(t, " cbl-4c ", "25", store)
	assert.Equal(t, "CBL-4C", item.Code)
	assert.Equal(t, "nos", item.Unit)

	_, err := e.inventory.CreateItem(&ItemRequest{Code: "CBL-4C", Name: "dup"}, store)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))
	_, err = e.inventory.CreateItem(&ItemRequest{Code: "NEG", Name: "neg", ReorderLevel: dec("-1")}, store)
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))

	inactive := false
	wh, err := e.inventory.CreateWarehouse(&WarehouseRequest{Code: "old", Name: "Old godown", IsActive: &inactive}, store)
	require.NoError(t, err)
	assert.False(t, wh.IsActive)

	active, err := e.inventory.ListWarehouses(true)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = e.inventory.Adjust(&StockAdjustRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: dec("5"), Remarks: "count"}, store)
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err), "inactive warehouse")

	list, err := e.inventory.ListItems(&ItemListRequest{Search: "CBL"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
}

func TestInventoryService_AdjustNeverGoesNegative(t *testing.T) {
	e := newTestEnv(t)
	store := e.user(t, "sunil", models.RoleStore)
	item := e.item(t, "RLY-24V", "0", store)
	wh := e.warehouse(t, "MAIN", store)

	_, err := e.inventory.Adjust(&StockAdjustRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: dec("-1"), Remarks: "count"}, store)
	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusOf(err), "no stock row yet")

	stock, err := e.inventory.Adjust(&StockAdjustRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: dec("12.5"), Remarks: "opening"}, store)
	require.NoError(t, err)
	assert.True(t, stock.Quantity.Equal(dec("12.5")))

	_, err = e.inventory.Adjust(&StockAdjustRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: dec("-13"), Remarks: "count"}, store)
	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusOf(err))
	assert.True(t, e.stockOf(t, item.ID, wh.ID).Equal(dec("12.5")))

	stock, err = e.inventory.Adjust(&StockAdjustRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: dec("-2.5"), Remarks: "damaged"}, store)
	require.NoError(t, err)
	assert.True(t, stock.Quantity.Equal(dec("10")))

	_, err = e.inventory.Adjust(&StockAdjustRequest{ItemID: item.ID, WarehouseID: wh.ID, Quantity: dec("0"), Remarks: "noop"}, store)
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))

	ledger, err := e.inventory.Ledger(&LedgerRequest{ItemID: item.ID})
	require.NoError(t, err)
	require.Equal(t, int64(2), ledger.Total, "failed adjustments leave no ledger rows")
	var sum = dec("0")
	for _, row := range ledger.Items {
		assert.Equal(t, models.StockTxnAdjustment, row.Type)
		sum = sum.Add(row.Quantity)
	}
	assert.True(t, sum.Equal(dec("10")))
}

func TestInventoryService_Transfer(t *testing.T) {
	e := newTestEnv(t)
	store := e.user(t, "sunil", models.RoleStore)
	item := e.item(t, "MCB-16A", "0", store)
	main := e.warehouse(t, "MAIN", store)
	site := e.warehouse(t, "SITE", store)

	_, err := e.inventory.Adjust(&StockAdjustRequest{ItemID: item.ID, WarehouseID: main.ID, Quantity: dec("20"), Remarks: "opening"}, store)
	require.NoError(t, err)

	_, err = e.inventory.Transfer(&TransferRequest{ItemID: item.ID, FromWarehouseID: main.ID, ToWarehouseID: main.ID, Quantity: dec("1")}, store)
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))

	_, err = e.inventory.Transfer(&TransferRequest{ItemID: item.ID, FromWarehouseID: main.ID, ToWarehouseID: site.ID, Quantity: dec("25")}, store)
	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusOf(err))
	assert.True(t, e.stockOf(t, item.ID, site.ID).IsZero(), "no half-applied transfer")

	trf, err := e.inventory.Transfer(&TransferRequest{ItemID: item.ID, FromWarehouseID: main.ID, ToWarehouseID: site.ID, Quantity: dec("8"), Remarks: "for site"}, store)
	require.NoError(t, err)
	assert.Regexp(t, `^VESPL/TRF/\d{4}/001$`, trf.TransferNo)
	assert.True(t, e.stockOf(t, item.ID, main.ID).Equal(dec("12")))
	assert.True(t, e.stockOf(t, item.ID, site.ID).Equal(dec("8")))

	legs, err := e.inventory.Ledger(&LedgerRequest{Reference: trf.TransferNo})
	require.NoError(t, err)
	require.Equal(t, int64(2), legs.Total)
	types := []string{legs.Items[0].Type, legs.Items[1].Type}
	assert.ElementsMatch(t, []string{models.StockTxnTransferOut, models.StockTxnTransferIn}, types)
}

func TestInventoryService_LowStock(t *testing.T) {
	e := newTestEnv(t)
	store := e.user(t, "sunil", models.RoleStore)
	main := e.warehouse(t, "MAIN", store)
	site := e.warehouse(t, "SITE", store)
	cable := e.item(t, "CBL-4C", "50", store)
	relay := e.item(t, "RLY-24V", "10", store)
	e.item(t, "GLAND", "0", store)
	e.item(t, "LUG", "5", store)

	for _, adj := range []StockAdjustRequest{
		{ItemID: cable.ID, WarehouseID: main.ID, Quantity: dec("30"), Remarks: "opening"},
		{ItemID: cable.ID, WarehouseID: site.ID, Quantity: dec("30"), Remarks: "opening"},
		{ItemID: relay.ID, WarehouseID: main.ID, Quantity: dec("4"), Remarks: "opening"},
	} {
		_, err := e.inventory.Adjust(&adj, store)
		require.NoError(t, err)
	}

	rows, err := e.inventory.LowStock()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "LUG", rows[0].Code)
	assert.True(t, rows[0].Quantity.IsZero())
	assert.Equal(t, "RLY-24V", rows[1].Code)
	assert.True(t, rows[1].Quantity.Equal(dec("4")))
	assert.Equal(t, int64(2), e.inventory.CountLowStock())

	perWarehouse, err := e.inventory.ListStock(&StockListRequest{LowStock: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), perWarehouse.Total, "each cable row is below 50 on its own")

	table, err := e.inventory.ExportStock(&StockListRequest{WarehouseID: main.ID})
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "CBL-4C", table.Rows[0][0])
	assert.Equal(t, "MAIN", table.Rows[0][3])
	assert.Equal(t, "stock.xlsx", table.Filename(ExportXLSX))
}

func newMySQLMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	return db, mock
}

func TestApplyStockDelta_MySQLUpsert(t *testing.T) {
	db, mock := newMySQLMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `stocks`.*ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `stock_transactions`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := db.Transaction(func(tx *gorm.DB) error {
		return applyStockDelta(tx, stockMove{ItemID: 3, WarehouseID: 1, Delta: dec("7"), Type: models.StockTxnGRN, Reference: "GRN", ActorID: 1})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStockDelta_MySQLIssueShort(t *testing.T) {
	db, mock := newMySQLMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `stocks` SET .* WHERE item_id = \\? AND warehouse_id = \\? AND quantity >= \\?").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := db.Transaction(func(tx *gorm.DB) error {
		return applyStockDelta(tx, stockMove{ItemID: 3, WarehouseID: 1, Delta: dec("-7"), Type: models.StockTxnAdjustment, ActorID: 1})
	})
	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
