package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mechanicbano/admin/internal/pdfview"
)

type openViewerRequest struct {
	URL string `json:"url" binding:"required"`
}

type pageRequestBody struct {
	Action string `json:"action" binding:"required,oneof=first prev next last goto"`
	Page   int    `json:"page"`
}

type zoomRequest struct {
	Action string `json:"action" binding:"required,oneof=in out reset"`
}

type keyRequest struct {
	Key string `json:"key" binding:"required"`
}

type focusRequest struct {
	Focused bool `json:"focused"`
}

type fullscreenRequest struct {
	// Active reports an external fullscreen change; nil toggles
	Active *bool `json:"active"`
}

// respondViewer renders the viewer state and turns err into a toast
func (api *API) respondViewer(c *gin.Context, v *pdfview.Viewer, err error) {
	n := api.notifier()
	snap := v.Snapshot()
	switch {
	case err == nil:
	case errors.Is(err, pdfview.ErrNotReady):
		n.Warning("The PDF is not loaded yet")
	case snap.Error != "":
		n.Error(snap.Error)
	default:
		n.FromError(err, pdfview.MessageRenderFailed)
	}
	c.JSON(http.StatusOK, gin.H{
		"viewer": snap,
		"ok":     err == nil,
		"toasts": n.Toasts(),
	})
}

// viewer resolves :id or answers 404
func (api *API) viewer(c *gin.Context) (*pdfview.Viewer, bool) {
	v, err := api.viewers.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Viewer not found"})
		return nil, false
	}
	return v, true
}

func (api *API) openViewer(c *gin.Context) {
	var req openViewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "url is required")
		return
	}

	v, err := api.viewers.Open(c.Request.Context(), req.URL)
	if errors.Is(err, pdfview.ErrSourceNotAllowed) {
		badRequest(c, "PDF links must point to the site's own file storage")
		return
	}
	api.respondViewer(c, v, err)
}

func (api *API) getViewer(c *gin.Context) {
	v, ok := api.viewer(c)
	if !ok {
		return
	}
	api.respondViewer(c, v, nil)
}

func (api *API) viewerPage(c *gin.Context) {
	var req pageRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "action must be one of first, prev, next, last, goto")
		return
	}
	v, ok := api.viewer(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var err error
	switch req.Action {
	case "first":
		err = v.First(ctx)
	case "prev":
		err = v.Prev(ctx)
	case "next":
		err = v.Next(ctx)
	case "last":
		err = v.Last(ctx)
	case "goto":
		err = v.GoTo(ctx, req.Page)
	}
	api.respondViewer(c, v, err)
}

func (api *API) viewerZoom(c *gin.Context) {
	var req zoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "action must be one of in, out, reset")
		return
	}
	v, ok := api.viewer(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var err error
	switch req.Action {
	case "in":
		err = v.ZoomIn(ctx)
	case "out":
		err = v.ZoomOut(ctx)
	case "reset":
		err = v.ResetZoom(ctx)
	}
	api.respondViewer(c, v, err)
}

func (api *API) viewerKey(c *gin.Context) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "key is required")
		return
	}
	v, ok := api.viewer(c)
	if !ok {
		return
	}
	api.respondViewer(c, v, v.HandleKey(c.Request.Context(), req.Key))
}

func (api *API) viewerFocus(c *gin.Context) {
	var req focusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	v, ok := api.viewer(c)
	if !ok {
		return
	}
	v.SetFocus(req.Focused)
	api.respondViewer(c, v, nil)
}

func (api *API) viewerFullscreen(c *gin.Context) {
	var req fullscreenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	v, ok := api.viewer(c)
	if !ok {
		return
	}

	if req.Active != nil {
		v.FullscreenChanged(*req.Active)
		api.respondViewer(c, v, nil)
		return
	}
	api.respondViewer(c, v, v.ToggleFullscreen())
}

// viewerImage serves the latest drawn page as PNG
func (api *API) viewerImage(c *gin.Context) {
	v, ok := api.viewer(c)
	if !ok {
		return
	}

	surface, ok := v.Surface().(interface{ PNG() ([]byte, error) })
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Viewer surface cannot be exported"})
		return
	}

	data, err := surface.PNG()
	if errors.Is(err, pdfview.ErrNothingDrawn) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No page has been rendered yet"})
		return
	}
	if err != nil {
		api.logger.WithViewerID(v.ID()).WithError(err).Error("Failed to encode page")
		c.JSON(http.StatusInternalServerError, gin.H{"error": pdfview.MessageRenderFailed})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", data)
}

func (api *API) closeViewer(c *gin.Context) {
	if err := api.viewers.Close(c.Param("id")); err != nil {
		if errors.Is(err, pdfview.ErrViewerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Viewer not found"})
			return
		}
		api.logger.WithViewerID(c.Param("id")).WithError(err).Warn("Failed to close viewer")
	}
	c.Status(http.StatusNoContent)
}
