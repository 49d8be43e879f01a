package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pquerna/otp/totp"
	"github.com/zedmarley2/pars-tabela-sub000/internal/config"
	"github.com/zedmarley2/pars-tabela-sub000/internal/database"
	"github.com/zedmarley2/pars-tabela-sub000/internal/middleware"
	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
	"github.com/zedmarley2/pars-tabela-sub000/internal/updater"
	"golang.org/x/crypto/bcrypt"
)

// SystemUpdateHandler exposes the self-update/rollback orchestrator
type SystemUpdateHandler struct {
	cfg *config.Config
	orc *updater.Orchestrator
}

func NewSystemUpdateHandler(cfg *config.Config, orc *updater.Orchestrator) *SystemUpdateHandler {
	return &SystemUpdateHandler{cfg: cfg, orc: orc}
}

// GetVersion returns the currently deployed version info
func (h *SystemUpdateHandler) GetVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.orc.CurrentVersion(),
	})
}

// checkResponse is the cached shape of an update check
type checkResponse struct {
	UpdateAvailable  bool                   `json:"update_available"`
	CurrentVersion   string                 `json:"current_version"`
	Ahead            int                    `json:"ahead"`
	Commits          []updater.RemoteCommit `json:"commits"`
	LatestRemoteHash string                 `json:"latest_remote_hash"`
}

// CheckUpdate compares the local checkout against the remote repository.
// Read-only with respect to the working tree, so the UI may poll it; results
// are cached briefly in Redis to spare the remote.
func (h *SystemUpdateHandler) CheckUpdate(c *fiber.Ctx) error {
	repoURL := c.Query("repo_url", h.cfg.RepoURL)
	branch := c.Query("branch", h.cfg.RepoBranch)

	if repoURL == "" {
		return c.JSON(fiber.Map{
			"success":          true,
			"update_available": false,
			"message":          "Update source not configured",
		})
	}

	cacheKey := database.CacheKeyUpdateCheck + ":" + repoURL + "#" + branch
	if database.Redis != nil {
		var cached checkResponse
		if err := database.CacheGet(cacheKey, &cached); err == nil {
			return c.JSON(fiber.Map{"success": true, "data": cached, "cached": true})
		}
	}

	status, err := h.orc.FetchRemoteCommits(repoURL, branch)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": fmt.Sprintf("Could not reach update source: %v", err),
		})
	}

	resp := checkResponse{
		UpdateAvailable:  status.Ahead > 0,
		CurrentVersion:   h.orc.CurrentVersion().Version,
		Ahead:            status.Ahead,
		Commits:          status.Commits,
		LatestRemoteHash: status.LatestRemoteHash,
	}

	if database.Redis != nil {
		database.CacheSet(cacheKey, resp, database.CacheTTLUpdateCheck)
	}

	return c.JSON(fiber.Map{"success": true, "data": resp})
}

// GetStatus returns the gate state and the most recent run. Runs the stale
// sweep first so an abandoned run cannot block the UI forever.
func (h *SystemUpdateHandler) GetStatus(c *fiber.Ctx) error {
	h.orc.SweepStale()

	var latest models.UpdateLog
	var latestPtr *models.UpdateLog
	if err := database.DB.Order("started_at DESC").First(&latest).Error; err == nil {
		latestPtr = &latest
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"in_progress": h.orc.Gate().Held(),
			"latest":      latestPtr,
		},
	})
}

// ListLogs returns paginated update/rollback run records
func (h *SystemUpdateHandler) ListLogs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	var logs []models.UpdateLog
	var total int64

	query := database.DB.Model(&models.UpdateLog{})
	if kind := c.Query("kind"); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	query.Count(&total)
	query.Order("started_at DESC").Offset(offset).Limit(limit).Find(&logs)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    logs,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// verifyAdminCredentials re-verifies the password (and TOTP code when the
// account has a second factor) before a destructive action. A stolen session
// alone must not be enough to rewrite the deployment.
func verifyAdminCredentials(user *models.User, password, totpCode string) (int, string) {
	if password == "" {
		return fiber.StatusBadRequest, "admin_password is required"
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return fiber.StatusUnauthorized, "Incorrect password"
	}
	if user.TwoFactorEnabled {
		if totpCode == "" || !totp.Validate(totpCode, user.TwoFactorSecret) {
			return fiber.StatusUnauthorized, "Invalid two-factor code"
		}
	}
	return 0, ""
}

// StartUpdate validates the request, takes the gate, creates the run record,
// and answers with the run's event stream.
func (h *SystemUpdateHandler) StartUpdate(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req struct {
		RepoURL       string `json:"repo_url"`
		Branch        string `json:"branch"`
		AdminPassword string `json:"admin_password"`
		TOTPCode      string `json:"totp_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.RepoURL == "" {
		req.RepoURL = h.cfg.RepoURL
	}
	if req.RepoURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "repo_url is required",
		})
	}
	if req.Branch == "" {
		req.Branch = h.cfg.RepoBranch
	}

	if code, msg := verifyAdminCredentials(user, req.AdminPassword, req.TOTPCode); code != 0 {
		return c.Status(code).JSON(fiber.Map{"success": false, "message": msg})
	}

	// Clear abandoned runs before competing for the gate
	h.orc.SweepStale()

	if !h.orc.Gate().TryAcquire() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "An update or rollback is already in progress",
		})
	}

	current := h.orc.CurrentVersion()
	logRow := models.UpdateLog{
		Kind:        "update",
		Version:     current.Version,
		CommitHash:  current.CommitHash,
		PrevHash:    current.CommitHash,
		Branch:      req.Branch,
		Status:      models.RunInProgress,
		StartedAt:   time.Now(),
		Steps:       updater.MarshalSteps(updater.PendingSteps(updater.UpdateStepNames)),
		TriggeredBy: user.Username,
	}
	if err := database.DB.Create(&logRow).Error; err != nil {
		h.orc.Gate().Release()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create update log",
		})
	}

	writeAudit(c, user, models.AuditActionDeploy, "update", logRow.ID, req.Branch,
		fmt.Sprintf("Started system update from %s (%s)", req.RepoURL, req.Branch))

	updateReq := updater.UpdateRequest{RepoURL: req.RepoURL, Branch: req.Branch}
	return h.streamRun(c, func(b *updater.Broadcaster) {
		h.orc.RunUpdate(updateReq, &logRow, b)
	})
}

// StartRollback validates the chosen backup and answers with the rollback
// run's event stream.
func (h *SystemUpdateHandler) StartRollback(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req struct {
		BackupID      string `json:"backup_id"`
		AdminPassword string `json:"admin_password"`
		TOTPCode      string `json:"totp_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.BackupID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "backup_id is required",
		})
	}

	var backup models.Backup
	if err := database.DB.First(&backup, "id = ?", req.BackupID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Backup not found",
		})
	}

	if code, msg := verifyAdminCredentials(user, req.AdminPassword, req.TOTPCode); code != 0 {
		return c.Status(code).JSON(fiber.Map{"success": false, "message": msg})
	}

	h.orc.SweepStale()

	if !h.orc.Gate().TryAcquire() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "An update or rollback is already in progress",
		})
	}

	current := h.orc.CurrentVersion()
	logRow := models.UpdateLog{
		Kind:       "rollback",
		Version:    backup.Version,
		CommitHash: backup.CommitHash,
		PrevHash:   current.CommitHash,
		Branch:     current.Branch,
		Status:     models.RunInProgress,
		StartedAt:  time.Now(),
		Steps:      updater.MarshalSteps(updater.PendingSteps(updater.RollbackStepNames)),
		// Provenance note: which backup triggered this run. Overwritten by
		// the real error text if the run fails.
		Error:       "backup:" + backup.ID,
		TriggeredBy: user.Username,
	}
	if err := database.DB.Create(&logRow).Error; err != nil {
		h.orc.Gate().Release()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create update log",
		})
	}

	writeAudit(c, user, models.AuditActionRollback, "backup", 0, backup.ID,
		fmt.Sprintf("Started rollback to backup %s (v%s)", backup.ID, backup.Version))

	return h.streamRun(c, func(b *updater.Broadcaster) {
		h.orc.RunRollback(&backup, &logRow, b)
	})
}

// streamRun turns a pipeline run into a server-sent event response. The
// pipeline publishes to the broadcaster; this side only frames and flushes.
func (h *SystemUpdateHandler) streamRun(c *fiber.Ctx, start func(*updater.Broadcaster)) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		b := updater.NewBroadcaster()
		go start(b)

		for ev := range b.Events() {
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\n", ev.Kind) //nolint
			fmt.Fprintf(w, "data: %s\n\n", data)   //nolint
			w.Flush()                              //nolint
		}
	})

	return nil
}
