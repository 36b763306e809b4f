package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"CivicScanner/internal/domain"
	"CivicScanner/internal/infrastructure/locations"
	"CivicScanner/internal/ports"
	"CivicScanner/internal/usecase"
)

// smokeTestPrefix short-circuits /summarize without fetching or calling a model.
const smokeTestPrefix = "[TEST]"

type handlers struct {
	deps Deps
}

type summarizeRequest struct {
	URL    string `json:"url"`
	Text   string `json:"text"`
	UserID string `json:"user_id"`
}

type summarizeResponse struct {
	Saved    bool                  `json:"saved"`
	Item     domain.SummaryResult  `json:"item"`
	Document *domain.CivicDocument `json:"document,omitempty"`
}

type userRequest struct {
	Name    *string  `json:"name"`
	City    string   `json:"city"`
	Region  string   `json:"region"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

type runRequest struct {
	UserID string   `json:"user_id"`
	URLs   []string `json:"urls"`
	Seeds  []string `json:"seeds"`
}

func (h *handlers) register(r *gin.Engine) {
	r.GET("/", h.root)
	r.GET("/healthz", h.health)
	r.POST("/summarize", h.summarize)
	r.POST("/summarize/upload", h.upload)
	r.GET("/feed", h.feed)
	r.PUT("/users/:id", h.upsertUser)
	r.GET("/users/:id", h.getUser)
	r.POST("/agent/run-once", h.runOnce)
	if h.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.deps.Metrics.Handler()))
	}
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "service": serviceName})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) summarize(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if strings.HasPrefix(req.Text, smokeTestPrefix) {
		c.JSON(http.StatusOK, summarizeResponse{Item: smokeTestItem(req.Text)})
		return
	}

	url := strings.TrimSpace(req.URL)
	if url == "" && strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide url or text"})
		return
	}

	var (
		item domain.SummaryResult
		doc  domain.CivicDocument
		err  error
	)
	if url != "" {
		item, doc, err = h.deps.Pipeline.ProcessURL(c.Request.Context(), url, req.UserID)
	} else {
		item, doc, err = h.deps.Pipeline.ProcessText(c.Request.Context(), req.Text, "", req.UserID)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summarizeResponse{Saved: true, Item: item, Document: &doc})
}

func (h *handlers) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.deps.MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}

	item, doc, err := h.deps.Pipeline.ProcessUpload(
		c.Request.Context(), data, header.Filename, header.Header.Get("Content-Type"), c.PostForm("user_id"),
	)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summarizeResponse{Saved: true, Item: item, Document: &doc})
}

func (h *handlers) feed(c *gin.Context) {
	if h.deps.Feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feed store not configured"})
		return
	}

	q := ports.FeedQuery{UserID: c.Query("user_id")}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		q.Limit = limit
	}

	items, err := h.deps.Feed.Feed(c.Request.Context(), q)
	if err != nil {
		h.deps.Logger.Error("read feed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read feed"})
		return
	}
	if items == nil {
		items = []domain.CivicDocument{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *handlers) upsertUser(c *gin.Context) {
	if h.deps.Users == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user store not configured"})
		return
	}

	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.City) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city is required"})
		return
	}

	user, err := h.deps.Users.UpsertUser(c.Request.Context(), domain.User{
		ID:      c.Param("id"),
		Name:    req.Name,
		City:    strings.TrimSpace(req.City),
		Region:  strings.TrimSpace(req.Region),
		Country: strings.TrimSpace(req.Country),
		Lat:     req.Lat,
		Lon:     req.Lon,
	})
	if err != nil {
		h.deps.Logger.Error("upsert user", "user_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) getUser(c *gin.Context) {
	if h.deps.Users == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user store not configured"})
		return
	}

	user, ok, err := h.deps.Users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.deps.Logger.Error("get user", "user_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) runOnce(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	ctx := c.Request.Context()
	if len(req.Seeds) > 0 {
		req.Seeds = locations.ExpandSeeds(req.Seeds)
	}
	if len(req.URLs) == 0 && len(req.Seeds) == 0 && h.deps.Seeds != nil {
		var city, region, country string
		if req.UserID != "" && h.deps.Users != nil {
			user, ok, err := h.deps.Users.GetUser(ctx, req.UserID)
			if err != nil {
				h.deps.Logger.Error("get user", "user_id", req.UserID, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
				return
			}
			if ok {
				city, region, country = user.City, user.Region, user.Country
			}
		}
		req.Seeds = h.deps.Seeds.SeedsFor(city, region, country)
	}

	results := h.deps.Pipeline.Run(ctx, usecase.RunRequest{
		URLs:   req.URLs,
		Seeds:  req.Seeds,
		UserID: req.UserID,
	})
	c.JSON(http.StatusOK, usecase.BuildReport(results))
}

// fail maps pipeline errors onto HTTP statuses.
func (h *handlers) fail(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.deps.Logger.Error("summarize request failed", "status", status, "error", err)
	} else {
		h.deps.Logger.Warn("summarize request rejected", "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": message})
}

func statusFor(err error) (int, string) {
	var fetchErr *domain.FetchError
	switch {
	case errors.Is(err, domain.ErrInsufficientContent):
		return http.StatusUnprocessableEntity, "Not enough text extracted to summarize."
	case errors.Is(err, domain.ErrRobotsDisallowed):
		return http.StatusForbidden, err.Error()
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, fetchErr.Error()
	case errors.Is(err, domain.ErrSummarization):
		return http.StatusBadGateway, "summarization failed"
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError, "failed to save document"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func smokeTestItem(text string) domain.SummaryResult {
	return domain.SummaryResult{
		Title:      "Civic Update (test)",
		Date:       "2025-01-01",
		Highlights: []string{"Stub path OK"},
		WhyMatters: "Endpoint and JSON binding are good.",
		CreatedAt:  "2025-01-01T00:00:00Z",
		Body:       text,
	}
}
