package handlers

import (
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/planora-dev/planora/db"
	"github.com/planora-dev/planora/internal/models"
	"github.com/planora-dev/planora/internal/types"
	"github.com/planora-dev/planora/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CSVImportHandler bulk-creates projects from a semicolon-delimited upload.
// Rows are inserted one by one; the first failing insert aborts the import
// and is reported as a whole-file failure. The uploaded file is removed
// afterwards no matter how processing went.
type CSVImportHandler struct {
	UploadDir string
	Log       *zap.SugaredLogger
}

func (h *CSVImportHandler) Process(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var user models.User

	if err := db.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "User not found."})
		} else {
			h.Log.Errorw("fetching user", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to process file."})
		}
		return
	}

	if user.Role != types.RoleManager {
		ctx.JSON(http.StatusForbidden, gin.H{"message": insufficientPermissionMessage})
		return
	}

	file, err := ctx.FormFile("file")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "File not sent."})
		return
	}

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		h.Log.Errorw("creating upload directory", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to store file."})
		return
	}

	path := filepath.Join(h.UploadDir, filepath.Base(file.Filename))

	if err := ctx.SaveUploadedFile(file, path); err != nil {
		h.Log.Errorw("saving upload", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to store file."})
		return
	}

	defer func() {
		if err := os.Remove(path); err != nil {
			h.Log.Errorw("removing uploaded file", "path", path, "error", err)
		}
	}()

	f, err := os.Open(path)

	if err != nil {
		h.Log.Errorw("opening upload", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to read file."})
		return
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to parse CSV file."})
		return
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to parse CSV file."})
			return
		}

		start, err := time.Parse(dateLayout, field(record, "start_date"))
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{
				"message": "Failed to insert data into the database.",
				"error":   err.Error(),
			})
			return
		}

		project := models.Project{
			Name:        field(record, "name"),
			Description: field(record, "description"),
			StartDate:   start,
			Status:      field(record, "status"),
		}

		if raw := field(record, "end_date"); raw != "" {
			end, err := time.Parse(dateLayout, raw)
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{
					"message": "Failed to insert data into the database.",
					"error":   err.Error(),
				})
				return
			}
			project.EndDate = &end
		}

		if err := db.DB.Create(&project).Error; err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{
				"message": "Failed to insert data into the database.",
				"error":   err.Error(),
			})
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "File processed and data inserted successfully!"})
}
