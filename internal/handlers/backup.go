package handlers

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/zedmarley2/pars-tabela-sub000/internal/config"
	"github.com/zedmarley2/pars-tabela-sub000/internal/database"
	"github.com/zedmarley2/pars-tabela-sub000/internal/middleware"
	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
	"github.com/zedmarley2/pars-tabela-sub000/internal/services"
)

// BackupHandler manages deployment backup artifacts
type BackupHandler struct {
	cfg     *config.Config
	offsite *services.OffsiteService
}

func NewBackupHandler(cfg *config.Config, offsite *services.OffsiteService) *BackupHandler {
	return &BackupHandler{cfg: cfg, offsite: offsite}
}

// List returns backups, newest first
func (h *BackupHandler) List(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var backups []models.Backup
	var total int64

	database.DB.Model(&models.Backup{}).Count(&total)
	database.DB.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&backups)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    backups,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// Get returns one backup with on-disk existence flags so the UI can warn
// before offering a rollback.
func (h *BackupHandler) Get(c *fiber.Ctx) error {
	var backup models.Backup
	if err := database.DB.First(&backup, "id = ?", c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Backup not found",
		})
	}

	_, archiveErr := os.Stat(backup.Path)
	dumpExists := backup.DBPath != ""
	if dumpExists {
		_, err := os.Stat(backup.DBPath)
		dumpExists = err == nil
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"data":           backup,
		"archive_exists": archiveErr == nil,
		"dump_exists":    dumpExists,
	})
}

// Download streams the backup archive
func (h *BackupHandler) Download(c *fiber.Ctx) error {
	var backup models.Backup
	if err := database.DB.First(&backup, "id = ?", c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Backup not found",
		})
	}

	if _, err := os.Stat(backup.Path); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Backup archive is missing on disk",
		})
	}

	filename := filepath.Base(filepath.Dir(backup.Path)) + ".tar.gz"
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.SendFile(backup.Path)
}

// Delete removes the backup record and its directory
func (h *BackupHandler) Delete(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var backup models.Backup
	if err := database.DB.First(&backup, "id = ?", c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Backup not found",
		})
	}

	// Remove the artifact directory, but only if it actually lives under
	// the configured backup dir.
	dir := filepath.Dir(backup.Path)
	if rel, err := filepath.Rel(h.cfg.BackupDir, dir); err == nil && !strings.HasPrefix(rel, "..") && rel != "." {
		os.RemoveAll(dir)
	}

	if err := database.DB.Delete(&backup).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete backup",
		})
	}

	if user != nil {
		writeAudit(c, user, models.AuditActionDelete, "backup", 0, backup.ID,
			"Deleted backup v"+backup.Version)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Backup deleted",
	})
}

// Upload mirrors one backup to the offsite FTP server
func (h *BackupHandler) Upload(c *fiber.Ctx) error {
	var backup models.Backup
	if err := database.DB.First(&backup, "id = ?", c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Backup not found",
		})
	}

	if err := h.offsite.UploadBackup(&backup); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Backup uploaded to offsite storage",
		"data":    backup,
	})
}

// TestOffsite checks FTP credentials without uploading anything
func (h *BackupHandler) TestOffsite(c *fiber.Ctx) error {
	var req struct {
		Host     string `json:"host"`
		Port     int    `json:"port"`
		Username string `json:"username"`
		Password string `json:"password"`
		Path     string `json:"path"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	// Fall back to the configured server so the UI can test current settings
	if req.Host == "" {
		req.Host = h.cfg.FTPHost
		req.Port = h.cfg.FTPPort
		req.Username = h.cfg.FTPUsername
		req.Password = h.cfg.FTPPassword
		req.Path = h.cfg.FTPPath
	}
	if req.Host == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "host is required",
		})
	}
	if req.Port == 0 {
		req.Port = 21
	}

	if err := services.TestFTPConnection(req.Host, req.Port, req.Username, req.Password, req.Path); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "FTP connection successful",
	})
}
