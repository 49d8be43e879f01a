package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/zedmarley2/pars-tabela-sub000/internal/database"
	"github.com/zedmarley2/pars-tabela-sub000/internal/middleware"
	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
)

// InquiryHandler handles storefront quote requests and contact messages
type InquiryHandler struct{}

func NewInquiryHandler() *InquiryHandler {
	return &InquiryHandler{}
}

var quoteStatuses = map[string]bool{
	"new":    true,
	"quoted": true,
	"won":    true,
	"lost":   true,
}

// SubmitQuote accepts a public quote request
func (h *InquiryHandler) SubmitQuote(c *fiber.Ctx) error {
	var req struct {
		Name      string `json:"name"`
		Company   string `json:"company"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		ProductID *uint  `json:"product_id"`
		Message   string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)
	if req.Name == "" || req.Email == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Name, email and message are required",
		})
	}
	if !strings.Contains(req.Email, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid email address",
		})
	}

	if req.ProductID != nil {
		var product models.Product
		if err := database.DB.First(&product, *req.ProductID).Error; err != nil {
			req.ProductID = nil
		}
	}

	quote := models.QuoteRequest{
		Name:      req.Name,
		Company:   req.Company,
		Email:     req.Email,
		Phone:     req.Phone,
		ProductID: req.ProductID,
		Message:   req.Message,
		Status:    "new",
		IPAddress: c.IP(),
	}
	if err := database.DB.Create(&quote).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to save quote request",
		})
	}

	database.DB.Create(&models.Notification{
		Title:   "Yeni teklif talebi",
		Message: req.Name + " yeni bir teklif talebi gönderdi",
		Type:    "info",
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Talebiniz alındı, en kısa sürede dönüş yapacağız",
	})
}

// SubmitContact accepts a public contact form message
func (h *InquiryHandler) SubmitContact(c *fiber.Ctx) error {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Subject string `json:"subject"`
		Message string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)
	if req.Name == "" || req.Email == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Name, email and message are required",
		})
	}

	inquiry := models.Inquiry{
		Name:      req.Name,
		Email:     req.Email,
		Subject:   req.Subject,
		Message:   req.Message,
		IPAddress: c.IP(),
	}
	if err := database.DB.Create(&inquiry).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to save message",
		})
	}

	database.DB.Create(&models.Notification{
		Title:   "Yeni iletişim mesajı",
		Message: req.Name + " iletişim formundan mesaj gönderdi",
		Type:    "info",
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Mesajınız alındı",
	})
}

// ListQuotes returns quote requests for the back office
func (h *InquiryHandler) ListQuotes(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := database.DB.Model(&models.QuoteRequest{}).Preload("Product")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var quotes []models.QuoteRequest
	query.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&quotes)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    quotes,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// UpdateQuote updates a quote request's status or admin note
func (h *InquiryHandler) UpdateQuote(c *fiber.Ctx) error {
	var quote models.QuoteRequest
	if err := database.DB.First(&quote, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Quote request not found",
		})
	}

	var req struct {
		Status    string `json:"status"`
		AdminNote string `json:"admin_note"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	updates := map[string]interface{}{}
	if req.Status != "" {
		if !quoteStatuses[req.Status] {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid status",
			})
		}
		updates["status"] = req.Status
	}
	if req.AdminNote != "" {
		updates["admin_note"] = req.AdminNote
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&quote).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to update quote request",
			})
		}
		if user := middleware.GetCurrentUser(c); user != nil {
			writeAudit(c, user, models.AuditActionUpdate, "quote_request", quote.ID, quote.Name,
				"Updated quote request")
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": quote})
}

// ListInquiries returns contact messages for the back office
func (h *InquiryHandler) ListInquiries(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := database.DB.Model(&models.Inquiry{})
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	query.Count(&total)

	var inquiries []models.Inquiry
	query.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&inquiries)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    inquiries,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// MarkInquiryRead marks a contact message as read
func (h *InquiryHandler) MarkInquiryRead(c *fiber.Ctx) error {
	var inquiry models.Inquiry
	if err := database.DB.First(&inquiry, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Inquiry not found",
		})
	}

	database.DB.Model(&inquiry).Update("is_read", true)
	return c.JSON(fiber.Map{"success": true})
}

// ListNotifications returns back office notifications
func (h *InquiryHandler) ListNotifications(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := database.DB.Model(&models.Notification{})
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	var notifications []models.Notification
	query.Order("created_at DESC").Limit(limit).Find(&notifications)

	var unread int64
	database.DB.Model(&models.Notification{}).Where("is_read = ?", false).Count(&unread)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    notifications,
		"unread":  unread,
	})
}

// MarkNotificationsRead marks all notifications as read
func (h *InquiryHandler) MarkNotificationsRead(c *fiber.Ctx) error {
	database.DB.Model(&models.Notification{}).Where("is_read = ?", false).Update("is_read", true)
	return c.JSON(fiber.Map{"success": true})
}
