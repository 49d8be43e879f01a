package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/zedmarley2/pars-tabela-sub000/internal/config"
	"github.com/zedmarley2/pars-tabela-sub000/internal/database"
	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
)

// OffsiteService mirrors deployment backups to an FTP server
type OffsiteService struct {
	cfg *config.Config
}

func NewOffsiteService(cfg *config.Config) *OffsiteService {
	return &OffsiteService{cfg: cfg}
}

// Enabled reports whether offsite upload is configured
func (s *OffsiteService) Enabled() bool {
	return s.cfg.FTPHost != ""
}

func (s *OffsiteService) dial() (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.FTPHost, s.cfg.FTPPort)
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("FTP connection failed: %v", err)
	}

	if err := conn.Login(s.cfg.FTPUsername, s.cfg.FTPPassword); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("FTP login failed: %v", err)
	}

	return conn, nil
}

// ensureDir changes into dir, creating it when missing
func ensureDir(conn *ftp.ServerConn, dir string) error {
	if dir == "" || dir == "/" {
		return nil
	}
	if err := conn.ChangeDir(dir); err != nil {
		conn.MakeDir(dir)
		if err := conn.ChangeDir(dir); err != nil {
			return fmt.Errorf("FTP directory change failed: %v", err)
		}
	}
	return nil
}

func storFile(conn *ftp.ServerConn, localPath, remoteName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %v", err)
	}
	defer file.Close()

	if err := conn.Stor(remoteName, file); err != nil {
		return fmt.Errorf("FTP upload failed: %v", err)
	}
	return nil
}

// UploadBackup mirrors one backup's artifacts into a per-backup remote
// directory and stamps the row on success.
func (s *OffsiteService) UploadBackup(backup *models.Backup) error {
	if !s.Enabled() {
		return fmt.Errorf("offsite backup is not configured")
	}

	conn, err := s.dial()
	if err != nil {
		return err
	}
	defer conn.Quit()

	if err := ensureDir(conn, s.cfg.FTPPath); err != nil {
		return err
	}

	remoteDir := filepath.Base(filepath.Dir(backup.Path))
	if err := ensureDir(conn, remoteDir); err != nil {
		return err
	}

	if err := storFile(conn, backup.Path, filepath.Base(backup.Path)); err != nil {
		return err
	}
	if backup.DBPath != "" {
		if err := storFile(conn, backup.DBPath, filepath.Base(backup.DBPath)); err != nil {
			return err
		}
	}

	now := time.Now()
	database.DB.Model(backup).Update("uploaded_at", now)
	backup.UploadedAt = &now

	log.Printf("Offsite: uploaded backup %s to %s/%s", backup.ID, s.cfg.FTPHost, remoteDir)
	return nil
}

// UploadPending uploads every backup not yet mirrored. Runs nightly from the
// scheduler; failures skip the row so one bad archive cannot stall the rest.
func (s *OffsiteService) UploadPending() {
	if !s.Enabled() {
		return
	}

	var backups []models.Backup
	if err := database.DB.Where("uploaded_at IS NULL").Order("created_at ASC").Find(&backups).Error; err != nil {
		log.Printf("Offsite: failed to load pending backups: %v", err)
		return
	}

	for i := range backups {
		if err := s.UploadBackup(&backups[i]); err != nil {
			log.Printf("Offsite: upload failed for %s: %v", backups[i].ID, err)
		}
	}
}

// TestFTPConnection tests FTP connection with given credentials
func TestFTPConnection(host string, port int, username, password, path string) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(10*time.Second))
	if err != nil {
		return fmt.Errorf("connection failed: %v", err)
	}
	defer conn.Quit()

	if err := conn.Login(username, password); err != nil {
		return fmt.Errorf("login failed: %v", err)
	}

	if path != "" && path != "/" {
		if err := conn.ChangeDir(path); err != nil {
			if err := conn.MakeDir(path); err != nil {
				return fmt.Errorf("cannot access or create directory %s: %v", path, err)
			}
		}
	}

	return nil
}
