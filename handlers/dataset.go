package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"noshow-prediction-api/dataset"
	"noshow-prediction-api/models"
)

type DatasetHandler struct {
	store *dataset.Store
}

func NewDatasetHandler(store *dataset.Store) *DatasetHandler {
	return &DatasetHandler{store: store}
}

// GetRange reports the appointment date bounds used for the date pickers.
// Start and End are null for an empty dataset.
func (h *DatasetHandler) GetRange(c *gin.Context) {
	resp := models.DatasetRange{
		Records:     h.store.Len(),
		Fingerprint: h.store.Fingerprint(),
	}
	if minDate, maxDate, ok := h.store.Bounds(); ok {
		resp.Start, resp.End = &minDate, &maxDate
	}
	c.JSON(http.StatusOK, resp)
}
