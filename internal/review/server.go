package review

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*
var templatesFs embed.FS

type captionRequest struct {
	Caption string `json:"caption" binding:"required"`
}

// NewRouter wires the review pages and the caption API onto a gin engine.
// Pass release=true to silence gin's debug output.
func NewRouter(store *Store, trigger string, release bool) *gin.Engine {
	if release {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	templ := template.Must(template.New("").ParseFS(templatesFs, "templates/*.html"))
	r.SetHTMLTemplate(templ)

	r.GET("/healthcheck", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	r.GET("/", func(c *gin.Context) {
		items := store.List()
		total, captioned := store.Counts()
		c.HTML(http.StatusOK, "index.html", gin.H{
			"items":     items,
			"total":     humanize.Comma(int64(total)),
			"captioned": humanize.Comma(int64(captioned)),
			"trigger":   trigger,
		})
	})

	r.GET("/images/:file", func(c *gin.Context) {
		file := c.Param("file")
		if _, err := store.Get(file); err != nil {
			c.String(http.StatusNotFound, "image not found")
			return
		}
		c.File(filepath.Join(store.Dir(), file))
	})

	api := r.Group("/api")
	api.GET("/captions", func(c *gin.Context) {
		c.JSON(http.StatusOK, store.List())
	})
	api.GET("/captions/:file", func(c *gin.Context) {
		item, err := store.Get(c.Param("file"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, item)
	})
	api.PUT("/captions/:file", func(c *gin.Context) {
		var req captionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
			return
		}

		file := c.Param("file")
		item, err := store.Set(file, req.Caption)
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		case errors.Is(err, ErrEmptyCaption):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			slog.Error("Unable to save caption", "file", file, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		slog.Info("Caption updated", "file", file)
		c.JSON(http.StatusOK, item)
	})

	return r
}
