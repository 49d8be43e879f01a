package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/zedmarley2/pars-tabela-sub000/internal/database"
	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
)

// writeAudit records an admin action. Failures are swallowed; auditing must
// never block the action it describes.
func writeAudit(c *fiber.Ctx, user *models.User, action models.AuditAction, entityType string, entityID uint, entityName, description string) {
	entry := models.AuditLog{
		UserID:      user.ID,
		Username:    user.Username,
		UserType:    user.UserType,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		EntityName:  entityName,
		Description: description,
		IPAddress:   c.IP(),
		UserAgent:   c.Get("User-Agent"),
		CreatedAt:   time.Now(),
	}
	database.DB.Create(&entry)
}

// AuditHandler serves the audit trail to admins
type AuditHandler struct{}

func NewAuditHandler() *AuditHandler {
	return &AuditHandler{}
}

// List returns paginated audit log entries with optional filters
func (h *AuditHandler) List(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := (page - 1) * limit

	query := database.DB.Model(&models.AuditLog{})
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if entityType := c.Query("entity_type"); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if username := c.Query("username"); username != "" {
		query = query.Where("username = ?", username)
	}

	var total int64
	query.Count(&total)

	var entries []models.AuditLog
	query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&entries)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    entries,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}
