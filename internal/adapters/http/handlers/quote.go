package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

const exportFilename = "quotes.json"

// QuoteHandler serves the quote, category and preference endpoints.
type QuoteHandler struct {
	service *app.QuoteService
}

// NewQuoteHandler creates a quote handler.
func NewQuoteHandler(service *app.QuoteService) *QuoteHandler {
	return &QuoteHandler{service: service}
}

// List handles GET /quotes. Results are ordered by id and cursor-paginated.
func (h *QuoteHandler) List(c *gin.Context) {
	var req dto.ListQuotesRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		dto.RespondBindError(c, err)
		return
	}

	quotes := h.service.List(c.Request.Context(), req.Category)

	page, err := dto.Paginate(quotes, req.PageRequest,
		func(q domain.Quote) string { return q.ID },
		dto.NewQuoteResponse,
	)
	if err != nil {
		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, page)
}

// Get handles GET /quotes/:id.
func (h *QuoteHandler) Get(c *gin.Context) {
	q, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(q))
}

// Random handles GET /quotes/random. Without ?category the saved
// preference applies.
func (h *QuoteHandler) Random(c *gin.Context) {
	q, err := h.service.Random(c.Request.Context(), c.Query("category"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(q))
}

// LastViewed handles GET /quotes/last-viewed.
func (h *QuoteHandler) LastViewed(c *gin.Context) {
	q, err := h.service.LastViewed(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuoteResponse(q))
}

// Create handles POST /quotes.
func (h *QuoteHandler) Create(c *gin.Context) {
	var req dto.CreateQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondBindError(c, err)
		return
	}

	q, err := h.service.Add(c.Request.Context(), req.Text, req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Location", c.FullPath()+"/"+q.ID)
	c.JSON(http.StatusCreated, dto.NewQuoteResponse(q))
}

// Categories handles GET /categories.
func (h *QuoteHandler) Categories(c *gin.Context) {
	categories := h.service.Categories(c.Request.Context())
	if categories == nil {
		categories = []string{}
	}

	c.JSON(http.StatusOK, dto.CategoriesResponse{Categories: categories})
}

// GetCategoryPreference handles GET /preferences/category.
func (h *QuoteHandler) GetCategoryPreference(c *gin.Context) {
	c.JSON(http.StatusOK, dto.CategoryPreference{Category: h.service.SelectedCategory(c.Request.Context())})
}

// SetCategoryPreference handles PUT /preferences/category.
func (h *QuoteHandler) SetCategoryPreference(c *gin.Context) {
	var req dto.CategoryPreference
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondBindError(c, err)
		return
	}

	selected, err := h.service.SelectCategory(c.Request.Context(), req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CategoryPreference{Category: selected})
}

// Import handles POST /quotes/import. The JSON array is either the request
// body or a multipart "file" field.
func (h *QuoteHandler) Import(c *gin.Context) {
	body, err := importBody(c)
	if err != nil {
		dto.RespondWithCode(c, dto.ErrorCodeBadRequest, err.Error())
		return
	}
	defer body.Close()

	result, err := h.service.Import(c.Request.Context(), body)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewImportResponse(result))
}

func importBody(c *gin.Context) (io.ReadCloser, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return c.Request.Body, nil
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return nil, errors.New("multipart import requires a \"file\" field")
	}

	return fh.Open()
}

// Export handles GET /quotes/export as a file download.
func (h *QuoteHandler) Export(c *gin.Context) {
	var buf bytes.Buffer
	if _, err := h.service.Export(c.Request.Context(), &buf); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}

// Archive handles POST /quotes/export/archive.
func (h *QuoteHandler) Archive(c *gin.Context) {
	location, err := h.service.ArchiveSnapshot(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ArchiveResponse{Location: location})
}

// RegisterRoutes registers the read routes on rg and the mutating ones on
// write, which carries the auth guard.
func (h *QuoteHandler) RegisterRoutes(rg, write *gin.RouterGroup) {
	rg.GET("/quotes", h.List)
	rg.GET("/quotes/random", h.Random)
	rg.GET("/quotes/last-viewed", h.LastViewed)
	rg.GET("/quotes/export", h.Export)
	rg.GET("/quotes/:id", h.Get)
	rg.GET("/categories", h.Categories)
	rg.GET("/preferences/category", h.GetCategoryPreference)

	write.POST("/quotes", h.Create)
	write.POST("/quotes/import", h.Import)
	write.POST("/quotes/export/archive", h.Archive)
	write.PUT("/preferences/category", h.SetCategoryPreference)
}
