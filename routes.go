package main

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sleuth-ingest/config"
	"sleuth-ingest/services"
	"sleuth-ingest/sleuth"
)

// maxUploadSize bounds a single Sleuth file.
const maxUploadSize = 10 << 20

type fileValidation struct {
	FileName     string `json:"file_name"`
	IsValid      bool   `json:"is_valid"`
	ErrorMessage string `json:"error_message,omitempty"`
	Space        string `json:"space,omitempty"`
	StubCount    int    `json:"stub_count"`
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// readUploads parses every file of the multipart field "files". The second
// return value is false when at least one file failed validation.
func readUploads(c *gin.Context) ([]services.Upload, []fileValidation, bool, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, false, fmt.Errorf("invalid multipart form: %w", err)
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return nil, nil, false, errors.New("no files uploaded")
	}

	names := make([]string, len(headers))
	for i, fh := range headers {
		names[i] = fh.Filename
	}
	if err := sleuth.CheckFileKeys(names); err != nil {
		return nil, nil, false, err
	}

	var (
		uploads []services.Upload
		results []fileValidation
		allOK   = true
	)
	for _, fh := range headers {
		raw, err := readFile(fh)
		if err != nil {
			return nil, nil, false, err
		}
		text, err := sleuth.DecodeText(raw)
		if err != nil {
			return nil, nil, false, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		upload, res := sleuth.ParseUpload(fh.Filename, text)
		v := fileValidation{FileName: fh.Filename, IsValid: res.IsValid, ErrorMessage: res.ErrorMessage}
		if upload != nil {
			v.Space = upload.Space
			v.StubCount = len(upload.SleuthStubs)
			uploads = append(uploads, services.Upload{File: upload, Raw: raw})
		} else {
			allOK = false
		}
		results = append(results, v)
	}
	return uploads, results, allOK, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxUploadSize {
		return nil, fmt.Errorf("file %q exceeds %d bytes", fh.Filename, maxUploadSize)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadSize))
}

func setupSleuthRoutes(router *gin.Engine, logging *zap.Logger) {
	router.POST("/sleuth/validate", func(c *gin.Context) {
		_, results, ok, err := readUploads(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.Debug("Validated Sleuth files", zap.Int("files", len(results)), zap.Bool("valid", ok))
		c.JSON(http.StatusOK, gin.H{"is_valid": ok, "files": results})
	})
}

func setupImportRoutes(router *gin.Engine, runner *services.Runner, logging *zap.Logger) {
	router.POST("/imports", func(c *gin.Context) {
		name := c.PostForm("name")
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		uploads, results, ok, err := readUploads(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "one or more files are invalid", "files": results})
			return
		}

		run, err := runner.Launch(c.Request.Context(), name, c.PostForm("description"), uploads)
		if err != nil {
			logging.Error("Failed to start import", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start import"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"run_id": run.ID})
	})

	router.GET("/imports/:id", func(c *gin.Context) {
		run, err := runner.Tracker.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, services.ErrRunNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "import run not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, run)
	})
}
