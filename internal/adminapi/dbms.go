package adminapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/celenkdiyari/storefront/internal/backup"
	"github.com/celenkdiyari/storefront/internal/domain"
	"github.com/celenkdiyari/storefront/internal/webserver"
)

// DBMSTableInfo represents table metadata
type DBMSTableInfo struct {
	Name     string `json:"name"`
	RowCount int64  `json:"rowCount"`
}

// DBMSServerInfo represents database server information
type DBMSServerInfo struct {
	DatabaseType    string          `json:"databaseType"`
	DatabaseVersion string          `json:"databaseVersion"`
	DatabaseName    string          `json:"databaseName"`
	DatabaseSize    string          `json:"databaseSize"`
	Encoding        string          `json:"encoding"`
	ServerTime      string          `json:"serverTime"`
	TableCount      int             `json:"tableCount"`
	Tables          []DBMSTableInfo `json:"tables"`
}

func registerDbmsRoutes() {
	webserver.ApiGET("/system/database", dbmsGetServerInfo, webserver.RequireRole(domain.RoleAdmin))
}

func humanSize(sizeBytes int64) string {
	switch {
	case sizeBytes < 1024:
		return fmt.Sprintf("%d B", sizeBytes)
	case sizeBytes < 1024*1024:
		return fmt.Sprintf("%.2f KB", float64(sizeBytes)/1024)
	case sizeBytes < 1024*1024*1024:
		return fmt.Sprintf("%.2f MB", float64(sizeBytes)/(1024*1024))
	}
	return fmt.Sprintf("%.2f GB", float64(sizeBytes)/(1024*1024*1024))
}

// collectionCounts row counts of the application tables, including the backup log
func collectionCounts(db *gorm.DB) ([]DBMSTableInfo, error) {
	names := append(backup.Collections(), domain.Backup{}.TableName())
	tables := make([]DBMSTableInfo, 0, len(names))
	for _, name := range names {
		var count int64
		if err := db.Table(name).Count(&count).Error; err != nil {
			return nil, err
		}
		tables = append(tables, DBMSTableInfo{Name: name, RowCount: count})
	}
	return tables, nil
}

// dbmsGetServerInfo returns database server information
func dbmsGetServerInfo(c echo.Context) error {
	db := GetDB(c)
	dbType := db.Dialector.Name()

	info := DBMSServerInfo{
		DatabaseType: dbType,
		ServerTime:   time.Now().Format("2006-01-02 15:04:05"),
	}

	tables, err := collectionCounts(db)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count collections", err.Error())
	}
	info.Tables = tables
	info.TableCount = len(tables)

	switch dbType {
	case "postgres":
		db.Raw("SELECT version()").Scan(&info.DatabaseVersion)
		db.Raw("SELECT current_database()").Scan(&info.DatabaseName)
		db.Raw("SELECT pg_size_pretty(pg_database_size(current_database()))").Scan(&info.DatabaseSize)
		db.Raw("SELECT pg_encoding_to_char(encoding) FROM pg_database WHERE datname = current_database()").
			Scan(&info.Encoding)
	case "sqlite":
		var version string
		db.Raw("SELECT sqlite_version()").Scan(&version)
		info.DatabaseVersion = "SQLite " + version
		info.DatabaseName = "SQLite Database"

		// page_count * page_size
		var pageCount, pageSize int64
		db.Raw("PRAGMA page_count").Scan(&pageCount)
		db.Raw("PRAGMA page_size").Scan(&pageSize)
		info.DatabaseSize = humanSize(pageCount * pageSize)
		db.Raw("PRAGMA encoding").Scan(&info.Encoding)
	}
	return ok(c, info)
}
