package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mechanicbano/admin/internal/audit"
	"github.com/mechanicbano/admin/internal/logging"
	"github.com/mechanicbano/admin/internal/nav"
	"github.com/mechanicbano/admin/internal/notify"
	"github.com/mechanicbano/admin/internal/pdfview"
	"github.com/mechanicbano/admin/internal/screens"
	"github.com/mechanicbano/admin/pkg/models"
)

// API holds every screen the console serves
type API struct {
	shell    *nav.Shell
	videos   *screens.Screen[models.Video]
	pdfs     *screens.PDFScreen
	plans    *screens.Screen[models.Plan]
	users    *screens.UserScreen
	pending  *screens.PendingScreen
	upi      *screens.UPIScreen
	site     *screens.SiteScreen
	welcome  *screens.WelcomeScreen
	pages    *screens.PageControlScreen
	viewers  *pdfview.Registry
	recorder audit.Recorder
	health   []healthCheck
	notify   notify.Options
	logger   *logging.Logger
}

type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

// listResponse is what a list screen renders
type listResponse[T any] struct {
	screens.View[T]
	OK     bool                  `json:"ok"`
	Toasts []notify.Notification `json:"toasts"`
}

// itemResponse is what a settings screen renders
type itemResponse[T any] struct {
	Item       T                     `json:"item"`
	Processing bool                  `json:"processing"`
	OK         bool                  `json:"ok"`
	Toasts     []notify.Notification `json:"toasts"`
}

type listScreen[T any] interface {
	Refresh(ctx context.Context, n *notify.Notifier) bool
	View(ctx context.Context, req screens.PageRequest) screens.View[T]
}

type editScreen[T any] interface {
	listScreen[T]
	Create(ctx context.Context, n *notify.Notifier, payload T) bool
	Update(ctx context.Context, n *notify.Notifier, id models.ID, payload T) bool
	Delete(ctx context.Context, n *notify.Notifier, id models.ID, confirmed bool) bool
}

type actScreen[T any] interface {
	listScreen[T]
	Act(ctx context.Context, n *notify.Notifier, id models.ID, action string, confirmed bool) bool
}

type menuScreen interface {
	Menu(ctx context.Context, n *notify.Notifier, id models.ID, req screens.MenuRequest) (screens.MenuView, bool)
}

type settingScreen[T any] interface {
	Refresh(ctx context.Context, n *notify.Notifier) bool
	Value() T
	Processing(ctx context.Context) bool
	Save(ctx context.Context, n *notify.Notifier, value T) bool
}

func (api *API) notifier() *notify.Notifier {
	return notify.New(api.notify, api.logger)
}

// pageRequest reads page, pageSize, prevPageSize, nav and q
func pageRequest(c *gin.Context) screens.PageRequest {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.Query("pageSize"))
	prev, _ := strconv.Atoi(c.Query("prevPageSize"))
	return screens.PageRequest{
		Page:         page,
		PageSize:     size,
		PrevPageSize: prev,
		Nav:          c.Query("nav"),
		Query:        c.Query("q"),
	}
}

func idParam(c *gin.Context) models.ID {
	return models.ID(c.Param("id"))
}

func confirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// respondList renders the screen state after ok. The list is not refetched
// here: mutations refetch on success and keep the prior list on failure.
func respondList[T any](c *gin.Context, s listScreen[T], n *notify.Notifier, ok bool) {
	c.JSON(http.StatusOK, listResponse[T]{
		View:   s.View(c.Request.Context(), pageRequest(c)),
		OK:     ok,
		Toasts: n.Toasts(),
	})
}

func respondItem[T any](c *gin.Context, s settingScreen[T], n *notify.Notifier, ok bool) {
	c.JSON(http.StatusOK, itemResponse[T]{
		Item:       s.Value(),
		Processing: s.Processing(c.Request.Context()),
		OK:         ok,
		Toasts:     n.Toasts(),
	})
}

// listHandler fetches the resource and renders the requested page
func listHandler[T any](api *API, s listScreen[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := api.notifier()
		ok := s.Refresh(c.Request.Context(), n)
		respondList[T](c, s, n, ok)
	}
}

func createHandler[T any](api *API, s editScreen[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload T
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
		n := api.notifier()
		ok := s.Create(c.Request.Context(), n, payload)
		respondList[T](c, s, n, ok)
	}
}

func updateHandler[T any](api *API, s editScreen[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload T
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
		n := api.notifier()
		ok := s.Update(c.Request.Context(), n, idParam(c), payload)
		respondList[T](c, s, n, ok)
	}
}

func deleteHandler[T any](api *API, s editScreen[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := api.notifier()
		ok := s.Delete(c.Request.Context(), n, idParam(c), confirmed(c))
		respondList[T](c, s, n, ok)
	}
}

// actionHandler runs a row menu action on the item named by :id
func actionHandler[T any](api *API, s actScreen[T], action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := api.notifier()
		ok := s.Act(c.Request.Context(), n, idParam(c), action, confirmed(c))
		respondList[T](c, s, n, ok)
	}
}

// menuHandler positions the row menu of the item named by :id
func menuHandler(api *API, s menuScreen) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req screens.MenuRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
		n := api.notifier()
		menu, ok := s.Menu(c.Request.Context(), n, idParam(c), req)
		c.JSON(http.StatusOK, gin.H{
			"menu":   menu,
			"ok":     ok,
			"toasts": n.Toasts(),
		})
	}
}

func getSettingHandler[T any](api *API, s settingScreen[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := api.notifier()
		ok := s.Refresh(c.Request.Context(), n)
		respondItem[T](c, s, n, ok)
	}
}

func saveSettingHandler[T any](api *API, s settingScreen[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		var value T
		if err := c.ShouldBindJSON(&value); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
		n := api.notifier()
		ok := s.Save(c.Request.Context(), n, value)
		respondItem[T](c, s, n, ok)
	}
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	for _, h := range api.health {
		if err := h.check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"check":  h.name,
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}
