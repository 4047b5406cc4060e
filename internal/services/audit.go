package services

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vtria/erp/internal/models"
	"gorm.io/gorm"
)

const maskedValue = "******"

// AuditEntry describes one change; Before/After may be any JSON-marshalable value.
type AuditEntry struct {
	EntityType string
	EntityID   uint
	Action     string
	Actor      *Actor
	Before     interface{}
	After      interface{}
}

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record writes an audit row. Pass the open transaction as tx so the entry
// commits or rolls back with the change; nil uses the service connection.
func (s *AuditService) Record(tx *gorm.DB, entry AuditEntry) error {
	if tx == nil {
		tx = s.db
	}

	before := snapshot(entry.Before)
	after := snapshot(entry.After)

	row := models.AuditLog{
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		BeforeData: encodeSnapshot(before),
		AfterData:  encodeSnapshot(after),
	}
	if changes := changedKeys(before, after); len(changes) > 0 {
		row.Changes = toJSON(changes)
	}
	if a := entry.Actor; a != nil {
		row.UserID = a.userIDPtr()
		row.Username = a.Username
		row.IP = a.IP
		row.UserAgent = a.UserAgent
	}
	return tx.Create(&row).Error
}

// snapshot turns v into a masked top-level JSON object. Non-object values
// are wrapped under "value".
func snapshot(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		var scalar interface{}
		if json.Unmarshal(raw, &scalar) != nil {
			return nil
		}
		return map[string]interface{}{"value": scalar}
	}
	for k := range obj {
		if isSensitiveKey(k) {
			obj[k] = maskedValue
		}
	}
	return obj
}

func encodeSnapshot(obj map[string]interface{}) string {
	if obj == nil {
		return ""
	}
	return toJSON(obj)
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "token") || strings.Contains(k, "secret")
}

// changedKeys lists top-level keys whose values differ, sorted. updated_at
// changes on every write and is ignored.
func changedKeys(before, after map[string]interface{}) []string {
	if before == nil && after == nil {
		return nil
	}
	keys := make(map[string]struct{})
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}

	var changes []string
	for k := range keys {
		if k == "updated_at" {
			continue
		}
		bv, bok := before[k]
		av, aok := after[k]
		if bok != aok || !reflect.DeepEqual(bv, av) {
			changes = append(changes, k)
		}
	}
	sort.Strings(changes)
	return changes
}

type AuditListRequest struct {
	PageRequest
	EntityType string `form:"entity_type"`
	EntityID   uint   `form:"entity_id"`
	UserID     uint   `form:"user_id"`
	Action     string `form:"action"`
	From       string `form:"from"`
	To         string `form:"to"`
}

func (s *AuditService) filtered(req *AuditListRequest) (*gorm.DB, error) {
	query := s.db.Model(&models.AuditLog{})
	if req.EntityType != "" {
		query = query.Where("entity_type = ?", req.EntityType)
	}
	if req.EntityID > 0 {
		query = query.Where("entity_id = ?", req.EntityID)
	}
	if req.UserID > 0 {
		query = query.Where("user_id = ?", req.UserID)
	}
	if req.Action != "" {
		query = query.Where("action = ?", req.Action)
	}
	if req.From != "" {
		from, err := parseDate(req.From)
		if err != nil {
			return nil, err
		}
		query = query.Where("created_at >= ?", from)
	}
	if req.To != "" {
		to, err := parseDate(req.To)
		if err != nil {
			return nil, err
		}
		query = query.Where("created_at < ?", to.AddDate(0, 0, 1))
	}
	return query, nil
}

func (s *AuditService) List(req *AuditListRequest) (*PageResult[models.AuditLog], error) {
	query, err := s.filtered(req)
	if err != nil {
		return nil, err
	}
	return paginate[models.AuditLog](query, &req.PageRequest, "created_at DESC, id DESC")
}

// Trail returns the full history of one entity, oldest first.
func (s *AuditService) Trail(entityType string, entityID uint) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	err := s.db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC, id ASC").Find(&rows).Error
	return rows, err
}

func (s *AuditService) Export(req *AuditListRequest) (*ExportTable, error) {
	query, err := s.filtered(req)
	if err != nil {
		return nil, err
	}
	var rows []models.AuditLog
	if err := query.Order("created_at DESC, id DESC").Limit(50000).Find(&rows).Error; err != nil {
		return nil, err
	}

	table := &ExportTable{
		Name:    "audit_trail",
		Headers: []string{"ID", "Time", "Entity", "Entity ID", "Action", "User", "IP", "Changes"},
	}
	for _, r := range rows {
		table.Rows = append(table.Rows, []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.CreatedAt.Format(time.RFC3339),
			r.EntityType,
			strconv.FormatUint(uint64(r.EntityID), 10),
			r.Action,
			r.Username,
			r.IP,
			r.Changes,
		})
	}
	return table, nil
}
