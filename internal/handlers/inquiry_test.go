package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zedmarley2/pars-tabela-sub000/internal/database"
	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupInquiryTest(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.QuoteRequest{}, &models.Inquiry{}, &models.Notification{},
		&models.Category{}, &models.Product{}, &models.User{}, &models.AuditLog{},
	))
	database.DB = db
	database.Redis = nil

	h := NewInquiryHandler()
	app := fiber.New()
	app.Post("/public/quote", h.SubmitQuote)
	app.Post("/public/contact", h.SubmitContact)
	app.Get("/quotes", h.ListQuotes)
	app.Put("/quotes/:id", h.UpdateQuote)
	app.Get("/notifications", h.ListNotifications)
	app.Post("/notifications/read", h.MarkNotificationsRead)

	return app
}

func TestSubmitQuoteCreatesRowAndNotification(t *testing.T) {
	app := setupInquiryTest(t)

	resp := postJSON(t, app, "/public/quote",
		`{"name": "Ayşe Yılmaz", "email": "ayse@example.com", "message": "Dükkan için tabela istiyorum"}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Contains(t, decodeBody(t, resp)["message"], "Talebiniz alındı")

	var quote models.QuoteRequest
	require.NoError(t, database.DB.First(&quote).Error)
	assert.Equal(t, "new", quote.Status)
	assert.Nil(t, quote.ProductID)

	var notifCount int64
	database.DB.Model(&models.Notification{}).Count(&notifCount)
	assert.Equal(t, int64(1), notifCount)
}

func TestSubmitQuoteValidation(t *testing.T) {
	app := setupInquiryTest(t)

	resp := postJSON(t, app, "/public/quote", `{"name": "  ", "email": "a@b.c", "message": "x"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, app, "/public/quote", `{"name": "Ali", "email": "not-an-email", "message": "x"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid email address", decodeBody(t, resp)["message"])
}

func TestSubmitQuoteDropsUnknownProduct(t *testing.T) {
	app := setupInquiryTest(t)

	resp := postJSON(t, app, "/public/quote",
		`{"name": "Ali", "email": "ali@example.com", "message": "fiyat?", "product_id": 42}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var quote models.QuoteRequest
	require.NoError(t, database.DB.First(&quote).Error)
	assert.Nil(t, quote.ProductID, "a dangling product reference must not be persisted")
}

func TestUpdateQuoteRejectsUnknownStatus(t *testing.T) {
	app := setupInquiryTest(t)
	quote := models.QuoteRequest{Name: "Ali", Email: "ali@example.com", Message: "m", Status: "new"}
	require.NoError(t, database.DB.Create(&quote).Error)

	resp := postPut(t, app, fmt.Sprintf("/quotes/%d", quote.ID), `{"status": "bogus"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid status", decodeBody(t, resp)["message"])

	resp = postPut(t, app, fmt.Sprintf("/quotes/%d", quote.ID), `{"status": "won"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var reloaded models.QuoteRequest
	require.NoError(t, database.DB.First(&reloaded, quote.ID).Error)
	assert.Equal(t, "won", reloaded.Status)
}

func TestSubmitContactAndNotificationLifecycle(t *testing.T) {
	app := setupInquiryTest(t)

	resp := postJSON(t, app, "/public/contact",
		`{"name": "Mehmet", "email": "mehmet@example.com", "subject": "Soru", "message": "Çalışma saatleriniz?"}`)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = getPath(t, app, "/notifications?unread=true")
	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["unread"])

	req := httptest.NewRequest(http.MethodPost, "/notifications/read", nil)
	markResp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, markResp.StatusCode)

	resp = getPath(t, app, "/notifications?unread=true")
	body = decodeBody(t, resp)
	assert.Equal(t, float64(0), body["unread"])
	assert.Empty(t, body["data"])
}

func postPut(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}
