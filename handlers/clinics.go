package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"noshow-prediction-api/dataset"
	"noshow-prediction-api/models"
)

type ClinicsHandler struct {
	store *dataset.Store
}

func NewClinicsHandler(store *dataset.Store) *ClinicsHandler {
	return &ClinicsHandler{store: store}
}

// GetClinics lists the clinics in the dataset for the selector. Name is the
// exact value to send back in clinic_selector.
func (h *ClinicsHandler) GetClinics(c *gin.Context) {
	counts := h.store.Clinics()
	title := cases.Title(language.English)

	clinics := make([]models.Clinic, len(counts))
	for i, cc := range counts {
		clinics[i] = models.Clinic{
			Name:         cc.Name,
			DisplayName:  title.String(cc.Name),
			Appointments: cc.Appointments,
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": clinics})
}
