package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/intakebot/bot/orders"
)

func TestRenderOrdersExportEscapesFields(t *testing.T) {
	username := "bob_the_builder"
	records := []orders.Record{
		{
			Date:     "2026-08-31T12:30:00",
			UserID:   42,
			Username: &username,
			Service:  "ai*automation",
			Message:  "нужен __бот__ с [кнопками]",
		},
	}

	out := renderOrdersExport(records)

	assert.Contains(t, out, "📋 *Заявки: 1*")
	assert.Contains(t, out, `@bob\_the\_builder`)
	assert.Contains(t, out, `ai\*automation`)
	assert.Contains(t, out, `нужен \_\_бот\_\_ с \[кнопками]`)
	assert.NotContains(t, out, "@bob_the_builder")
}

func TestRenderOrdersExportMissingUsername(t *testing.T) {
	records := []orders.Record{
		{Date: "2026-08-31T12:30:00", UserID: 7, Service: "sales", Message: "msg"},
	}

	out := renderOrdersExport(records)

	require.Contains(t, out, "1. 2026-08-31T12:30:00 - (7)")
}
