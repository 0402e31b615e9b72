package service

import (
	"context"
	"testing"

	"ims-backend/internal/database"
	"ims-backend/internal/model"
	"ims-backend/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// Every pooled connection gets its own :memory: database, so pin the
	// pool to one connection. Concurrent transactions queue on it instead
	// of seeing an empty schema.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

// workflowFixture wires the full service stack over an in-memory database
// with a three-level hierarchy (staff -> supervisor -> director) and two
// catalog items.
type workflowFixture struct {
	db *gorm.DB

	workflow WorkflowService
	ledger   StockLedger
	resolver HierarchyResolver

	stockRepo    repository.StockRepository
	envelopeRepo repository.EnvelopeRepository
	historyRepo  repository.HistoryRepository

	requester  model.User
	supervisor model.User
	director   model.User
	unit       model.OrgUnit

	laptop model.StockItem
	cable  model.StockItem
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	db := newTestDB(t)

	f := &workflowFixture{db: db}

	f.requester = model.User{Username: "alice", Email: "alice@example.com", Password: "x", Role: "staff"}
	f.supervisor = model.User{Username: "bob", Email: "bob@example.com", Password: "x", Role: "supervisor"}
	f.director = model.User{Username: "carol", Email: "carol@example.com", Password: "x", Role: "supervisor"}
	require.NoError(t, db.Create(&f.requester).Error)
	require.NoError(t, db.Create(&f.supervisor).Error)
	require.NoError(t, db.Create(&f.director).Error)

	f.unit = model.OrgUnit{Name: "Engineering", SupervisorID: &f.supervisor.ID}
	require.NoError(t, db.Create(&f.unit).Error)
	require.NoError(t, db.Create(&model.HierarchyEdge{MemberID: f.supervisor.ID, SupervisorID: f.director.ID}).Error)

	f.laptop = model.StockItem{ItemCode: "LT-001", Name: "Laptop", Unit: "pcs", OnHandQuantity: 5, AvailableQuantity: 5}
	f.cable = model.StockItem{ItemCode: "CB-001", Name: "HDMI Cable", Unit: "pcs", OnHandQuantity: 10, AvailableQuantity: 10}
	require.NoError(t, db.Create(&f.laptop).Error)
	require.NoError(t, db.Create(&f.cable).Error)

	txManager := repository.NewTransactionManager(db)
	f.stockRepo = repository.NewStockRepository(db)
	f.envelopeRepo = repository.NewEnvelopeRepository(db)
	f.historyRepo = repository.NewHistoryRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	hierarchyRepo := repository.NewHierarchyRepository(db)

	f.resolver = NewHierarchyResolver(hierarchyRepo)
	f.ledger = NewStockLedger(f.stockRepo, txManager)
	f.workflow = NewWorkflowService(
		requestRepo, f.envelopeRepo, f.stockRepo, f.historyRepo,
		f.resolver, f.ledger, txManager, nil,
	)

	return f
}

// submit creates a request for the given laptop quantity and returns the
// submission result.
func (f *workflowFixture) submit(t *testing.T, items []SubmitItemInput) *SubmitResult {
	t.Helper()
	result, err := f.workflow.SubmitRequest(context.Background(), f.requester.ID.String(), SubmitRequestInput{
		UnitID:  f.unit.ID.String(),
		Purpose: "equipment for new project",
		Items:   items,
	})
	require.NoError(t, err)
	return result
}

func (f *workflowFixture) stockItemInput(itemID string, qty int) SubmitItemInput {
	return SubmitItemInput{StockItemID: itemID, Quantity: qty}
}

func (f *workflowFixture) reloadStockItem(t *testing.T, id interface{}) model.StockItem {
	t.Helper()
	var item model.StockItem
	require.NoError(t, f.db.First(&item, "id = ?", id).Error)
	return item
}

func (f *workflowFixture) reloadEnvelope(t *testing.T, id interface{}) model.ApprovalEnvelope {
	t.Helper()
	var env model.ApprovalEnvelope
	require.NoError(t, f.db.Preload("Decisions").First(&env, "id = ?", id).Error)
	return env
}
