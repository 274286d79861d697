package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/eventface/internal/search"
	"github.com/your-org/eventface/pkg/dto"
)

type SearchHandler struct {
	svc       *search.Service
	maxUpload int64
}

func NewSearchHandler(svc *search.Service, maxUploadBytes int64) *SearchHandler {
	return &SearchHandler{svc: svc, maxUpload: maxUploadBytes}
}

// Search finds the event photos containing the person in the uploaded selfie.
func (h *SearchHandler) Search(c *gin.Context) {
	eventID := c.Param("eventId")

	var req dto.SearchRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	selfie, ok := readUpload(c, "selfie", h.maxUpload)
	if !ok {
		return
	}

	threshold := search.UseDefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	results, err := h.svc.FindMyPhotos(c.Request.Context(), eventID, selfie, threshold)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}

	resp := dto.SearchResponse{EventID: eventID, Results: make([]dto.MatchResponse, 0, len(results))}
	for _, r := range results {
		resp.Results = append(resp.Results, dto.MatchResponse{
			MediaID:     r.MediaID,
			Confidence:  r.Confidence,
			BoundingBox: r.BoundingBox,
		})
	}
	resp.Total = len(resp.Results)
	c.JSON(http.StatusOK, resp)
}

// readUpload reads a multipart file field, enforcing maxBytes. It writes the
// error response itself and reports whether the caller should continue.
func readUpload(c *gin.Context, field string, maxBytes int64) ([]byte, bool) {
	file, _, err := c.Request.FormFile(field)
	if err != nil {
		badRequest(c, field+" file required")
		return nil, false
	}
	defer file.Close()

	var r io.Reader = file
	if maxBytes > 0 {
		r = io.LimitReader(file, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		badRequest(c, "read "+field+" failed")
		return nil, false
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: field + " too large", Code: "too_large"})
		return nil, false
	}
	if len(data) == 0 {
		badRequest(c, field+" is empty")
		return nil, false
	}
	return data, true
}
