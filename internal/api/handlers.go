package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medsafe-server/internal/domain"
)

// analyzeRequest is the body for the analyze and validate endpoints.
// Exactly one of Text or Prescription must be set.
type analyzeRequest struct {
	Text         string                         `json:"text,omitempty"`
	Prescription *domain.PrescriptionScanResult `json:"prescription,omitempty"`
	UserID       string                         `json:"user_id,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	payload := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	}
	if s.health != nil {
		payload["breakers"] = s.health.BreakerStates()
	}
	if s.database != nil {
		status := http.StatusOK
		if err := s.database.Health(c.Request.Context()); err != nil {
			payload["status"] = "degraded"
			payload["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			payload["database"] = "healthy"
		}
		c.JSON(status, payload)
		return
	}
	c.JSON(http.StatusOK, payload)
}

// handleMedicineSearch resolves a medicine name and checks it against
// the caller's health profile.
func (s *Server) handleMedicineSearch(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "query parameter 'name' is required", "")
		return
	}

	healthProfile, ok := s.loadProfile(c, c.Query("user_id"))
	if !ok {
		return
	}

	result, err := s.analyzer.AnalyzeMedicine(c.Request.Context(), name, healthProfile)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyMedicineName) {
			s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, err.Error(), "")
			return
		}
		s.logger.WithError(err).Error("Medicine analysis failed")
		s.respondError(c, http.StatusBadGateway, domain.ErrCodeExternalAPI, "medicine lookup failed", err.Error())
		return
	}
	if result == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrCodeNotFound, "medicine not found", "")
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleDrugLabel returns the openFDA product label for a medicine.
func (s *Server) handleDrugLabel(c *gin.Context) {
	if s.labels == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrCodeExternalAPI, "label lookups are not configured", "")
		return
	}

	label, err := s.labels.GetDrugLabel(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.logger.WithError(err).Error("Label lookup failed")
		s.respondError(c, http.StatusBadGateway, domain.ErrCodeExternalAPI, "label lookup failed", err.Error())
		return
	}
	if label == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrCodeNotFound, "no label found", "")
		return
	}

	c.JSON(http.StatusOK, label)
}

// handleAnalyze analyzes prescription text or a parsed prescription.
func (s *Server) handleAnalyze(c *gin.Context) {
	analysis, ok := s.runAnalysis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// handleValidate analyzes a prescription and reports whether it is safe
// against the caller's profile.
func (s *Server) handleValidate(c *gin.Context) {
	analysis, ok := s.runAnalysis(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analysis":   analysis,
		"validation": s.analyzer.ValidatePrescription(analysis),
	})
}

func (s *Server) runAnalysis(c *gin.Context) (*domain.PrescriptionAnalysis, bool) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body", err.Error())
		return nil, false
	}
	if req.Text == "" && req.Prescription == nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "either 'text' or 'prescription' is required", "")
		return nil, false
	}

	healthProfile, ok := s.loadProfile(c, req.UserID)
	if !ok {
		return nil, false
	}

	var analysis *domain.PrescriptionAnalysis
	var err error
	if req.Prescription != nil {
		analysis, err = s.analyzer.AnalyzePrescription(c.Request.Context(), req.Prescription, healthProfile)
	} else {
		analysis, err = s.analyzer.AnalyzeText(c.Request.Context(), req.Text, healthProfile)
	}
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPrescription) {
			s.respondError(c, http.StatusUnprocessableEntity, domain.ErrCodeAnalysis, "no medicines found in prescription", "")
			return nil, false
		}
		s.logger.WithError(err).Error("Prescription analysis failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeAnalysis, "prescription analysis failed", err.Error())
		return nil, false
	}
	return analysis, true
}

// handleScan accepts a prescription image, extracts its contents, and
// analyzes the result.
func (s *Server) handleScan(c *gin.Context) {
	if s.extractor == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrCodeExtraction, "prescription scanning is not configured", "")
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "form file 'image' is required", err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "could not read uploaded image", err.Error())
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "could not read uploaded image", err.Error())
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	healthProfile, ok := s.loadProfile(c, c.PostForm("user_id"))
	if !ok {
		return
	}

	extracted, err := s.extractor.ExtractPrescription(c.Request.Context(), image, mimeType)
	if err != nil {
		s.logger.WithError(err).Error("Prescription extraction failed")
		s.respondError(c, http.StatusBadGateway, domain.ErrCodeExtraction, "prescription extraction failed", err.Error())
		return
	}

	analysis, err := s.analyzer.AnalyzeExtracted(c.Request.Context(), extracted, healthProfile)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPrescription) {
			s.respondError(c, http.StatusUnprocessableEntity, domain.ErrCodeAnalysis, "no medicines found in scanned prescription", "")
			return
		}
		s.logger.WithError(err).Error("Scan analysis failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeAnalysis, "scan analysis failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// handleListProfiles returns stored profiles with pagination.
func (s *Server) handleListProfiles(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	profiles, err := s.profiles.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("Profile list failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to list profiles", "")
		return
	}

	count, err := s.profiles.Count(c.Request.Context())
	if err != nil {
		s.logger.WithError(err).Error("Profile count failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to count profiles", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profiles": profiles,
		"total":    count,
		"limit":    limit,
		"offset":   offset,
	})
}

// handleGetProfile returns the profile for a user.
func (s *Server) handleGetProfile(c *gin.Context) {
	p, err := s.profiles.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			s.respondError(c, http.StatusNotFound, domain.ErrCodeNotFound, "profile not found", "")
			return
		}
		s.logger.WithError(err).Error("Profile read failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to read profile", "")
		return
	}

	c.JSON(http.StatusOK, p)
}

// handleSaveProfile creates or updates the profile for a user. The user
// ID in the path wins over any ID in the body.
func (s *Server) handleSaveProfile(c *gin.Context) {
	var p domain.HealthProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid profile body", err.Error())
		return
	}
	p.UserID = c.Param("user_id")

	if err := s.profiles.Save(c.Request.Context(), &p); err != nil {
		s.logger.WithError(err).Error("Profile save failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to save profile", "")
		return
	}

	c.JSON(http.StatusOK, &p)
}

// handleDeleteProfile removes the profile for a user.
func (s *Server) handleDeleteProfile(c *gin.Context) {
	if err := s.profiles.Delete(c.Request.Context(), c.Param("user_id")); err != nil {
		s.logger.WithError(err).Error("Profile delete failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to delete profile", "")
		return
	}
	c.Status(http.StatusNoContent)
}

// handleExportProfiles streams a full profile export as a JSON
// attachment.
func (s *Server) handleExportProfiles(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.profiles.ExportJSON(c.Request.Context(), &buf); err != nil {
		s.logger.WithError(err).Error("Profile export failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to export profiles", "")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="profiles.json"`)
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}

// handleImportProfiles ingests a profile export. Profiles for user IDs
// that already exist are skipped, not overwritten.
func (s *Server) handleImportProfiles(c *gin.Context) {
	imported, skipped, err := s.profiles.ImportJSON(c.Request.Context(), c.Request.Body)
	if err != nil {
		s.logger.WithError(err).Error("Profile import failed")
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeValidation, "failed to import profiles", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"imported": imported,
		"skipped":  skipped,
	})
}

// loadProfile fetches the profile for a user ID, if one was supplied.
// A missing profile is not an error; the analysis simply runs without
// personal context. Returns false if the response has been written.
func (s *Server) loadProfile(c *gin.Context, userID string) (*domain.HealthProfile, bool) {
	if userID == "" || s.profiles == nil {
		return nil, true
	}

	p, err := s.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return nil, true
		}
		s.logger.WithError(err).Error("Profile read failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to read profile", "")
		return nil, false
	}
	return p, true
}

func (s *Server) respondError(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, c.GetString("correlation_id")))
}
