package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/zedmarley2/pars-tabela-sub000/internal/database"
	"github.com/zedmarley2/pars-tabela-sub000/internal/middleware"
	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
)

// CatalogHandler serves the signage catalog: public storefront reads plus
// the back office CRUD.
type CatalogHandler struct{}

func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

// PublicCategories returns active categories with their active products,
// cached in Redis for the storefront.
func (h *CatalogHandler) PublicCategories(c *fiber.Ctx) error {
	if database.Redis != nil {
		var cached []models.Category
		if err := database.CacheGet(database.CacheKeyCategories, &cached); err == nil {
			return c.JSON(fiber.Map{"success": true, "data": cached, "cached": true})
		}
	}

	var categories []models.Category
	database.DB.Where("is_active = ?", true).
		Preload("Products", "is_active = ?", true).
		Order("sort_order ASC, name ASC").
		Find(&categories)

	if database.Redis != nil {
		database.CacheSet(database.CacheKeyCategories, categories, database.CacheTTLCatalog)
	}

	return c.JSON(fiber.Map{"success": true, "data": categories})
}

// PublicProducts returns active products, optionally filtered by category slug
func (h *CatalogHandler) PublicProducts(c *fiber.Ctx) error {
	categorySlug := c.Query("category")
	featuredOnly := c.Query("featured") == "true"

	// Only the unfiltered listing is cached; filters are cheap enough
	cacheable := categorySlug == "" && !featuredOnly
	if cacheable && database.Redis != nil {
		var cached []models.Product
		if err := database.CacheGet(database.CacheKeyProducts, &cached); err == nil {
			return c.JSON(fiber.Map{"success": true, "data": cached, "cached": true})
		}
	}

	query := database.DB.Where("products.is_active = ?", true).Preload("Category")
	if categorySlug != "" {
		query = query.Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", categorySlug)
	}
	if featuredOnly {
		query = query.Where("products.is_featured = ?", true)
	}

	var products []models.Product
	query.Order("products.sort_order ASC, products.name ASC").Find(&products)

	if cacheable && database.Redis != nil {
		database.CacheSet(database.CacheKeyProducts, products, database.CacheTTLCatalog)
	}

	return c.JSON(fiber.Map{"success": true, "data": products})
}

// PublicProduct returns one active product by slug
func (h *CatalogHandler) PublicProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := database.DB.Where("slug = ? AND is_active = ?", c.Params("slug"), true).
		Preload("Category").First(&product).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Product not found",
		})
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// ListCategories returns all categories for the back office
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	var categories []models.Category
	database.DB.Order("sort_order ASC, name ASC").Find(&categories)
	return c.JSON(fiber.Map{"success": true, "data": categories})
}

type categoryRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	SortOrder   int    `json:"sort_order"`
	IsActive    *bool  `json:"is_active"`
}

// CreateCategory creates a category
func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	if req.Name == "" || req.Slug == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Name and slug are required",
		})
	}

	category := models.Category{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		SortOrder:   req.SortOrder,
		IsActive:    true,
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if err := database.DB.Create(&category).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create category (slug may already exist)",
		})
	}

	database.InvalidateCatalogCache()
	if user := middleware.GetCurrentUser(c); user != nil {
		writeAudit(c, user, models.AuditActionCreate, "category", category.ID, category.Name, "Created category")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": category})
}

// UpdateCategory updates a category
func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	var category models.Category
	if err := database.DB.First(&category, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Category not found",
		})
	}

	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Slug != "" {
		updates["slug"] = req.Slug
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	updates["sort_order"] = req.SortOrder
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := database.DB.Model(&category).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update category",
		})
	}

	database.InvalidateCatalogCache()
	if user := middleware.GetCurrentUser(c); user != nil {
		writeAudit(c, user, models.AuditActionUpdate, "category", category.ID, category.Name, "Updated category")
	}

	return c.JSON(fiber.Map{"success": true, "data": category})
}

// DeleteCategory soft-deletes a category
func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	var category models.Category
	if err := database.DB.First(&category, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Category not found",
		})
	}

	var productCount int64
	database.DB.Model(&models.Product{}).Where("category_id = ?", category.ID).Count(&productCount)
	if productCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Category has products. Move or delete them first",
		})
	}

	database.DB.Delete(&category)
	database.InvalidateCatalogCache()
	if user := middleware.GetCurrentUser(c); user != nil {
		writeAudit(c, user, models.AuditActionDelete, "category", category.ID, category.Name, "Deleted category")
	}

	return c.JSON(fiber.Map{"success": true, "message": "Category deleted"})
}

// ListProducts returns all products for the back office
func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := database.DB.Model(&models.Product{}).Preload("Category")
	if categoryID := c.Query("category_id"); categoryID != "" {
		query = query.Where("category_id = ?", categoryID)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}

	var total int64
	query.Count(&total)

	var products []models.Product
	query.Order("sort_order ASC, name ASC").Offset((page - 1) * limit).Limit(limit).Find(&products)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

type productRequest struct {
	CategoryID  uint   `json:"category_id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	IsFeatured  *bool  `json:"is_featured"`
	IsActive    *bool  `json:"is_active"`
	SortOrder   int    `json:"sort_order"`
}

// CreateProduct creates a product
func (h *CatalogHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	if req.Name == "" || req.Slug == "" || req.CategoryID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Name, slug and category_id are required",
		})
	}

	var category models.Category
	if err := database.DB.First(&category, req.CategoryID).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Category not found",
		})
	}

	product := models.Product{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Slug:        req.Slug,
		Summary:     req.Summary,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		SortOrder:   req.SortOrder,
		IsActive:    true,
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := database.DB.Create(&product).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create product (slug may already exist)",
		})
	}

	database.InvalidateCatalogCache()
	if user := middleware.GetCurrentUser(c); user != nil {
		writeAudit(c, user, models.AuditActionCreate, "product", product.ID, product.Name, "Created product")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct updates a product
func (h *CatalogHandler) UpdateProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := database.DB.First(&product, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Product not found",
		})
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	updates := map[string]interface{}{}
	if req.CategoryID != 0 {
		updates["category_id"] = req.CategoryID
	}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Slug != "" {
		updates["slug"] = req.Slug
	}
	if req.Summary != "" {
		updates["summary"] = req.Summary
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.ImageURL != "" {
		updates["image_url"] = req.ImageURL
	}
	updates["sort_order"] = req.SortOrder
	if req.IsFeatured != nil {
		updates["is_featured"] = *req.IsFeatured
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := database.DB.Model(&product).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update product",
		})
	}

	database.InvalidateCatalogCache()
	if user := middleware.GetCurrentUser(c); user != nil {
		writeAudit(c, user, models.AuditActionUpdate, "product", product.ID, product.Name, "Updated product")
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct soft-deletes a product
func (h *CatalogHandler) DeleteProduct(c *fiber.Ctx) error {
	var product models.Product
	if err := database.DB.First(&product, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Product not found",
		})
	}

	database.DB.Delete(&product)
	database.InvalidateCatalogCache()
	if user := middleware.GetCurrentUser(c); user != nil {
		writeAudit(c, user, models.AuditActionDelete, "product", product.ID, product.Name, "Deleted product")
	}

	return c.JSON(fiber.Map{"success": true, "message": "Product deleted"})
}
