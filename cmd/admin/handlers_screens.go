package main

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mechanicbano/admin/internal/audit"
	"github.com/mechanicbano/admin/internal/notify"
	"github.com/mechanicbano/admin/pkg/models"
)

// formFile opens the multipart "file" field. A missing file yields an
// empty reader so the upload validator reports it as a toast.
func formFile(c *gin.Context) (filename string, r io.Reader, size int64, closeFn func()) {
	header, err := c.FormFile("file")
	if err != nil {
		return "", strings.NewReader(""), 0, func() {}
	}
	f, err := header.Open()
	if err != nil {
		return header.Filename, strings.NewReader(""), 0, func() {}
	}
	return header.Filename, f, header.Size, func() { f.Close() }
}

// uploadPDF stores a PDF and returns the link for the create form
func (api *API) uploadPDF(c *gin.Context) {
	filename, r, size, closeFn := formFile(c)
	defer closeFn()

	n := api.notifier()
	link, ok := api.pdfs.Upload(c.Request.Context(), n, filename, r, size)
	c.JSON(http.StatusOK, gin.H{
		"ok":     ok,
		"link":   link,
		"toasts": n.Toasts(),
	})
}

func (api *API) uploadQR(c *gin.Context) {
	filename, r, size, closeFn := formFile(c)
	defer closeFn()

	n := api.notifier()
	ok := api.upi.UploadQR(c.Request.Context(), n, filename, r, size)
	respondItem[models.UPIConfig](c, api.upi, n, ok)
}

func (api *API) uploadLogo(c *gin.Context) {
	filename, r, size, closeFn := formFile(c)
	defer closeFn()

	n := api.notifier()
	ok := api.site.UploadLogo(c.Request.Context(), n, filename, r, size)
	respondItem[models.SiteConfig](c, api.site, n, ok)
}

type previewRequest struct {
	Message string `json:"message"`
}

// previewWelcome renders the welcome message markdown as HTML
func (api *API) previewWelcome(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	html, err := api.welcome.Preview(req.Message)
	if err != nil {
		n := api.notifier()
		n.FromError(err, "Failed to render preview")
		c.JSON(http.StatusOK, gin.H{"ok": false, "html": "", "toasts": n.Toasts()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "html": html, "toasts": []notify.Notification{}})
}

func (api *API) togglePage(c *gin.Context) {
	n := api.notifier()
	ok := api.pages.Toggle(c.Request.Context(), n, idParam(c))
	respondList[models.PageVisibility](c, api.pages, n, ok)
}

// navigation returns the links of enabled pages and the raw visibility map
func (api *API) navigation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"links":      api.shell.Links(),
		"visibility": api.shell.Visibility(),
	})
}

func (api *API) refreshNavigation(c *gin.Context) {
	n := api.notifier()
	if err := api.shell.Refresh(c.Request.Context()); err != nil {
		api.logger.WithError(err).Warn("Failed to refresh navigation")
		n.FromError(err, "Failed to load page settings")
	}
	c.JSON(http.StatusOK, gin.H{
		"links":      api.shell.Links(),
		"visibility": api.shell.Visibility(),
		"toasts":     n.Toasts(),
	})
}

// requirePage hides screens whose page is disabled
func (api *API) requirePage(page string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !api.shell.Enabled(page) {
			c.JSON(http.StatusNotFound, gin.H{"error": "This page is disabled"})
			c.Abort()
			return
		}
		c.Next()
	}
}

type auditQuery struct {
	Limit int `form:"limit"`
}

// listAudit returns the most recent admin actions
func (api *API) listAudit(c *gin.Context) {
	var q auditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "limit must be a number")
		return
	}

	entries, err := api.recorder.Recent(c.Request.Context(), audit.NormalizeLimit(q.Limit))
	if err != nil {
		api.logger.WithError(err).Error("Failed to list audit entries")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit trail"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
