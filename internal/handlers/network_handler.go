package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/aosanya/waterguard/internal/analysis"
	"github.com/aosanya/waterguard/internal/api"
	"github.com/aosanya/waterguard/internal/detection"
	"github.com/aosanya/waterguard/internal/localization"
	"github.com/aosanya/waterguard/internal/models"
	"github.com/aosanya/waterguard/internal/network"
	"github.com/aosanya/waterguard/internal/sensitivity"
	"github.com/aosanya/waterguard/internal/waterr"
)

// NetworkHandler serves spec.md §6's HTTP surface: import, sensor
// placement, readings ingest, detection, localization and the one-shot
// analyze endpoint. It composes the domain services the way
// AgencyHandler composes agency.Service.
type NetworkHandler struct {
	network     *network.Service
	matrix      *sensitivity.Engine
	detector    *detection.Detector
	localizer   *localization.Localizer
	orchestrator *analysis.Orchestrator
	repo        network.Repository
	logger      *log.Logger
}

// NewNetworkHandler constructs a NetworkHandler.
func NewNetworkHandler(
	netSvc *network.Service,
	matrix *sensitivity.Engine,
	detector *detection.Detector,
	localizer *localization.Localizer,
	orchestrator *analysis.Orchestrator,
	repo network.Repository,
	logger *log.Logger,
) *NetworkHandler {
	return &NetworkHandler{
		network:      netSvc,
		matrix:       matrix,
		detector:     detector,
		localizer:    localizer,
		orchestrator: orchestrator,
		repo:         repo,
		logger:       logger,
	}
}

// RegisterRoutes registers every route from spec.md §6 under rg (expected
// to be the router's "/api" group).
func (h *NetworkHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/network/import/epanet", h.ImportEpanet)
	rg.POST("/network/sensitivity-matrix/generate", h.GenerateMatrix)
	rg.GET("/network/sensitivity-matrix/status", h.MatrixStatus)
	rg.POST("/sensors/auto-place", h.AutoPlaceSensors)
	rg.POST("/readings", h.RecordReading)
	rg.POST("/readings/batch", h.RecordReadingsBatch)
	rg.POST("/leaks/detect", h.DetectLeaks)
	rg.POST("/leaks/localize", h.LocalizeLeaks)
	rg.POST("/leaks/analyze", h.AnalyzeLeaks)
}

// ImportEpanet handles POST /api/network/import/epanet.
func (h *NetworkHandler) ImportEpanet(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		api.RespondValidationError(c, "multipart field \"file\" is required")
		return
	}
	data, err := readMultipartFile(fileHeader)
	if err != nil {
		api.RespondError(c, waterr.Wrap(waterr.InvalidInput, "failed to read uploaded file", err))
		return
	}

	result, err := h.network.ImportEpanet(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.RespondOK(c, gin.H{
		"status":         "ok",
		"networkId":      result.NetworkID,
		"nodesImported":  result.NodesImported,
		"linksImported":  result.LinksImported,
		"dmAsCreated":    result.DMAsCreated,
	})
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// GenerateMatrix handles POST /api/network/sensitivity-matrix/generate.
func (h *NetworkHandler) GenerateMatrix(c *gin.Context) {
	networkID := c.Query("networkId")
	if networkID == "" {
		api.RespondValidationError(c, "networkId query parameter is required")
		return
	}
	force := c.Query("force") == "true"

	status, err := h.matrix.Generate(c.Request.Context(), networkID, force)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.RespondOK(c, statusBody(status))
}

// MatrixStatus handles GET /api/network/sensitivity-matrix/status.
func (h *NetworkHandler) MatrixStatus(c *gin.Context) {
	networkID := c.Query("networkId")
	if networkID == "" {
		api.RespondValidationError(c, "networkId query parameter is required")
		return
	}
	status, err := h.matrix.Status(c.Request.Context(), networkID)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.RespondOK(c, statusBody(status))
}

func statusBody(status *sensitivity.Status) gin.H {
	body := gin.H{"state": status.State}
	if status.Progress != nil {
		body["progress"] = status.Progress
	}
	if status.Stats != nil {
		body["matrixStats"] = gin.H{"totalEntries": status.Stats.TotalEntries}
	}
	if status.Error != "" {
		body["error"] = status.Error
	}
	return body
}

// autoPlaceRequest is the bound shape of POST /sensors/auto-place's body.
type autoPlaceRequest struct {
	NetworkID   string `json:"networkId"`
	TargetCount int    `json:"targetCount"`
}

// AutoPlaceSensors handles POST /api/sensors/auto-place.
func (h *NetworkHandler) AutoPlaceSensors(c *gin.Context) {
	raw, ok := api.ValidateBody(c, "autoPlace")
	if !ok {
		return
	}
	var req autoPlaceRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		api.RespondValidationError(c, "malformed request body")
		return
	}
	if req.TargetCount == 0 {
		req.TargetCount = 12
	}

	report, err := h.network.AutoPlaceSensors(c.Request.Context(), req.NetworkID, req.TargetCount)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.RespondOK(c, report)
}

// readingRequest is the bound shape of POST /readings's body.
type readingRequest struct {
	NetworkID string  `json:"networkId"`
	SensorID  string  `json:"sensorId"`
	FlowValue float64 `json:"flowValue"`
	Timestamp string  `json:"timestamp"`
}

// RecordReading handles POST /api/readings.
func (h *NetworkHandler) RecordReading(c *gin.Context) {
	raw, ok := api.ValidateBody(c, "reading")
	if !ok {
		return
	}
	var req readingRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		api.RespondValidationError(c, "malformed request body")
		return
	}

	reading := &models.Reading{
		NetworkID: req.NetworkID,
		SensorID:  req.SensorID,
		FlowValue: req.FlowValue,
		Source:    models.ReadingSourceManual,
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			api.RespondValidationError(c, "timestamp must be RFC3339")
			return
		}
		reading.Timestamp = ts
	}

	if err := h.network.RecordReading(c.Request.Context(), reading); err != nil {
		api.RespondError(c, err)
		return
	}
	api.RespondCreated(c, reading)
}

// readingsBatchRequest is the bound shape of POST /readings/batch's body.
type readingsBatchRequest struct {
	NetworkID string           `json:"networkId"`
	Readings  []readingRequest `json:"readings"`
}

// RecordReadingsBatch handles POST /api/readings/batch.
func (h *NetworkHandler) RecordReadingsBatch(c *gin.Context) {
	raw, ok := api.ValidateBody(c, "readingsBatch")
	if !ok {
		return
	}
	var req readingsBatchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		api.RespondValidationError(c, "malformed request body")
		return
	}

	readings := make([]*models.Reading, 0, len(req.Readings))
	for _, r := range req.Readings {
		reading := &models.Reading{SensorID: r.SensorID, FlowValue: r.FlowValue, Source: models.ReadingSourceSensor}
		readings = append(readings, reading)
	}

	if err := h.network.RecordReadingsBatch(c.Request.Context(), req.NetworkID, readings); err != nil {
		api.RespondError(c, err)
		return
	}
	api.RespondCreated(c, gin.H{"count": len(readings), "readings": readings})
}

// detectRequest is the bound shape of POST /leaks/detect's body.
type detectRequest struct {
	NetworkID   string  `json:"networkId"`
	Timestamp   string  `json:"timestamp"`
	Threshold   float64 `json:"threshold"`
	TimeWindow  float64 `json:"timeWindow"`
	NodeID      string  `json:"nodeId"`
	PartitionID string  `json:"partitionId"`
}

// DetectLeaks handles POST /api/leaks/detect.
func (h *NetworkHandler) DetectLeaks(c *gin.Context) {
	raw, ok := api.ValidateBody(c, "detect")
	if !ok {
		return
	}
	var req detectRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		api.RespondValidationError(c, "malformed request body")
		return
	}

	ts := time.Now()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			api.RespondValidationError(c, "timestamp must be RFC3339")
			return
		}
		ts = parsed
	}

	detections, err := h.detector.Detect(c.Request.Context(), detection.Request{
		NetworkID:   req.NetworkID,
		Timestamp:   ts,
		Threshold:   req.Threshold,
		Window:      time.Duration(req.TimeWindow) * time.Second,
		NodeID:      req.NodeID,
		PartitionID: req.PartitionID,
	})
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.RespondOK(c, detections)
}

// localizeRequest is the bound shape of POST /leaks/localize's body.
type localizeRequest struct {
	DetectionID        string   `json:"detectionId"`
	DetectionIDs       []string `json:"detectionIds"`
	BaselineTimeWindow float64  `json:"baselineTimeWindow"`
}

// LocalizeLeaks handles POST /api/leaks/localize.
func (h *NetworkHandler) LocalizeLeaks(c *gin.Context) {
	raw, ok := api.ValidateBody(c, "localize")
	if !ok {
		return
	}
	var req localizeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		api.RespondValidationError(c, "malformed request body")
		return
	}

	ids := req.DetectionIDs
	if req.DetectionID != "" {
		ids = append(ids, req.DetectionID)
	}
	if len(ids) == 0 {
		api.RespondValidationError(c, "detectionId or detectionIds is required")
		return
	}

	baseline := time.Duration(req.BaselineTimeWindow) * time.Second

	results := make([]*localization.Result, 0, len(ids))
	for _, id := range ids {
		det, err := h.lookupDetection(c, id)
		if err != nil {
			api.RespondError(c, err)
			return
		}
		result, err := h.localizer.Localize(c.Request.Context(), det, baseline)
		if err != nil {
			api.RespondError(c, err)
			return
		}
		results = append(results, result)
	}
	api.RespondOK(c, results)
}

// lookupDetection resolves a detection by id across every network known to
// the repository, since spec.md §6 scopes /leaks/localize by detectionId
// alone.
func (h *NetworkHandler) lookupDetection(c *gin.Context, detectionID string) (*models.LeakDetection, error) {
	networks, err := h.repo.ListNetworks(c.Request.Context())
	if err != nil {
		return nil, err
	}
	for _, n := range networks {
		det, err := h.repo.GetLeakDetection(c.Request.Context(), n.ID, detectionID)
		if err == nil && det != nil {
			return det, nil
		}
	}
	return nil, waterr.Newf(waterr.NotFound, "unknown detection id %q", detectionID)
}

// analyzeRequest is the bound shape of POST /leaks/analyze's body.
type analyzeRequest struct {
	NetworkID string           `json:"networkId"`
	Timestamp string           `json:"timestamp"`
	Readings  []readingRequest `json:"readings"`
}

// AnalyzeLeaks handles POST /api/leaks/analyze.
func (h *NetworkHandler) AnalyzeLeaks(c *gin.Context) {
	raw, ok := api.ValidateBody(c, "analyze")
	if !ok {
		return
	}
	var req analyzeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		api.RespondValidationError(c, "malformed request body")
		return
	}
	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		api.RespondValidationError(c, "timestamp must be RFC3339")
		return
	}

	readings := make([]*models.Reading, 0, len(req.Readings))
	for _, r := range req.Readings {
		readings = append(readings, &models.Reading{SensorID: r.SensorID, FlowValue: r.FlowValue})
	}

	report, err := h.orchestrator.Analyze(c.Request.Context(), req.NetworkID, ts, readings)
	if err != nil {
		api.RespondError(c, err)
		return
	}
	api.RespondOK(c, report)
}
