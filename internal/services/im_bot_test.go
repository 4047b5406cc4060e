package services

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/pkg/response"
)

func TestIMBotService_CreateKeepsFalseFlags(t *testing.T) {
	db := newTestDB(t)
	svc := NewIMBotService(db)

	bot, err := svc.Create(&CreateIMBotRequest{Name: "quiet", Type: "slack", Webhook: "https://hooks.example/x", IsActive: false})
	require.NoError(t, err)

	got, err := svc.GetByID(bot.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.False(t, got.EscalationNotify)
	assert.False(t, got.ApprovalNotify)
}

func TestIMBotService_ListAndUpdate(t *testing.T) {
	db := newTestDB(t)
	svc := NewIMBotService(db)

	a, err := svc.Create(&CreateIMBotRequest{Name: "ops-slack", Type: "slack", Webhook: "https://hooks.example/a", IsActive: true})
	require.NoError(t, err)
	_, err = svc.Create(&CreateIMBotRequest{Name: "ops-feishu", Type: "feishu", Webhook: "https://hooks.example/b", IsActive: true})
	require.NoError(t, err)

	page, err := svc.List(&IMBotListRequest{Type: "slack"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	off := false
	on := true
	updated, err := svc.Update(a.ID, &UpdateIMBotRequest{IsActive: &off, ApprovalNotify: &on})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.True(t, updated.ApprovalNotify)
}

func TestIMBotService_DeleteMissing(t *testing.T) {
	svc := NewIMBotService(newTestDB(t))
	err := svc.Delete(999)
	assert.Equal(t, http.StatusNotFound, response.StatusOf(err))
}

func TestIMBotService_Test(t *testing.T) {
	db := newTestDB(t)
	svc := NewIMBotService(db)
	rec := newWebhookRecorder(t, http.StatusOK)

	bot, err := svc.Create(&CreateIMBotRequest{Name: "ops-alerts", Type: "generic", Webhook: rec.server.URL, IsActive: true})
	require.NoError(t, err)
	require.NoError(t, svc.Test(bot.ID))
	require.Len(t, rec.Bodies(), 1)
	assert.Equal(t, "VTRIA ERP test notification", rec.Bodies()[0]["title"])
}
