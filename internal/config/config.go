package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// JWT
	JWTSecret      string
	JWTExpireHours int

	// API
	APIPort int

	// Deployment (self-update / rollback)
	ProjectRoot string
	BackupDir   string
	RepoURL     string
	RepoBranch  string

	// Offsite backup (FTP)
	FTPHost     string
	FTPPort     int
	FTPUsername string
	FTPPassword string
	FTPPath     string
}

// generateSecureSecret generates a cryptographically secure random secret
func generateSecureSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a hostname-based value if crypto/rand fails
		return hex.EncodeToString([]byte(os.Getenv("HOSTNAME") + string(rune(length))))
	}
	return hex.EncodeToString(bytes)
}

func Load() *Config {
	// JWT Secret - generate random if not provided
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = generateSecureSecret(32) // 64 character hex string
		log.Println("WARNING: JWT_SECRET not set - generated random secret. Sessions will not persist across restarts.")
	}

	// Database password - warn if using default
	dbPassword := getEnv("DB_PASSWORD", "")
	if dbPassword == "" {
		log.Println("WARNING: DB_PASSWORD not set - this is insecure for production!")
		dbPassword = "changeme"
	}

	// Redis password - warn if using default
	redisPassword := getEnv("REDIS_PASSWORD", "")
	if redisPassword == "" {
		log.Println("WARNING: REDIS_PASSWORD not set - Redis is not secured!")
	}

	projectRoot := getEnv("PROJECT_ROOT", "/opt/parstabela")

	return &Config{
		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "parstabela"),
		DBPassword: dbPassword,
		DBName:     getEnv("DB_NAME", "parstabela"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: redisPassword,

		// JWT
		JWTSecret:      jwtSecret,
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 168), // 7 days default

		// API
		APIPort: getEnvInt("API_PORT", 8080),

		// Deployment
		ProjectRoot: projectRoot,
		BackupDir:   getEnv("BACKUP_DIR", filepath.Join(projectRoot, "backups")),
		RepoURL:     getEnv("REPO_URL", ""),
		RepoBranch:  getEnv("REPO_BRANCH", "main"),

		// Offsite backup
		FTPHost:     getEnv("OFFSITE_FTP_HOST", ""),
		FTPPort:     getEnvInt("OFFSITE_FTP_PORT", 21),
		FTPUsername: getEnv("OFFSITE_FTP_USER", ""),
		FTPPassword: getEnv("OFFSITE_FTP_PASSWORD", ""),
		FTPPath:     getEnv("OFFSITE_FTP_PATH", "/backups"),
	}
}

// DatabaseDSN builds the Postgres connection string used by GORM and the
// dump/restore tooling shares the same credentials via PGPASSWORD.
func (c *Config) DatabaseDSN() string {
	return "host=" + c.DBHost +
		" port=" + strconv.Itoa(c.DBPort) +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" sslmode=disable TimeZone=UTC"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
