package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diewo77/go-production/internal/db"
	"github.com/diewo77/go-production/internal/ledger"
	"github.com/diewo77/go-production/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestApp(t *testing.T) (*App, *gorm.DB, *observer.ObservedLogs) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(conn))
	require.NoError(t, db.Seed(conn))

	core, logs := observer.New(zapcore.InfoLevel)
	return NewApp(ledger.NewService(conn), zap.New(core)), conn, logs
}

func TestAppHealthz(t *testing.T) {
	app, _, logs := newTestApp(t)

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/healthz", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}

func TestAppRecordsProductionOnSeededPhase(t *testing.T) {
	app, conn, logs := newTestApp(t)

	var phase models.Phase
	require.NoError(t, conn.Where("name = ?", "Gros œuvre").First(&phase).Error)

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/phases/%d/product", phase.ID), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var product models.Product
	require.NoError(t, conn.Where("phase_id = ?", phase.ID).First(&product).Error)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/products/%d/productions", product.ID),
		strings.NewReader(`{"date":"2024-03-01","taux":25}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	app.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, conn.First(&product, product.ID).Error)
	assert.Equal(t, 25.0, product.Taux)
	assert.Equal(t, 250_000.0, product.MontantProd)

	statuses := []int64{}
	for _, e := range logs.FilterMessage("request").All() {
		statuses = append(statuses, e.ContextMap()["status"].(int64))
	}
	assert.Equal(t, []int64{http.StatusOK, http.StatusCreated}, statuses)
}
