package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/hwr-api/internal/grader"
	"github.com/Brownie44l1/hwr-api/internal/logger"
	"github.com/Brownie44l1/hwr-api/internal/middleware"
	"github.com/Brownie44l1/hwr-api/internal/preprocess"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Handler struct {
	grader      *grader.Grader
	log         *logrus.Logger
	validator   *validator.Validate
	maxUpload   int64
	maxPixels   int
	evalTimeout time.Duration
}

var errImageTooLarge = errors.New("image dimensions exceed the allowed pixel count")

// NewHandler builds the HTTP handlers. maxUpload bounds request bodies in
// bytes and maxPixels bounds decoded images in width*height.
func NewHandler(g *grader.Grader, log *logrus.Logger, maxUpload int64, maxPixels int, evalTimeout time.Duration) *Handler {
	return &Handler{
		grader:      g,
		log:         log,
		validator:   validator.New(),
		maxUpload:   maxUpload,
		maxPixels:   maxPixels,
		evalTimeout: evalTimeout,
	}
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/labels", h.Labels)
	mux.HandleFunc("/prompt", h.Prompt)
	mux.HandleFunc("/predict", h.Predict)
	mux.HandleFunc("/evaluate", h.Evaluate)
	return mux
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", ModelLoaded: h.grader.Ready()}
	if !resp.ModelLoaded {
		resp.Status = "degraded"
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Labels(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, LabelsResponse{Labels: h.grader.Labels()})
}

// Prompt picks a random target label for the next exercise.
func (h *Handler) Prompt(w http.ResponseWriter, r *http.Request) {
	labels := h.grader.Labels()
	if len(labels) == 0 {
		h.writeError(w, r, http.StatusServiceUnavailable, "No labels configured")
		return
	}
	i := rand.Intn(len(labels))
	h.writeJSON(w, http.StatusOK, PromptResponse{Target: labels[i], Index: i})
}

// Predict classifies a caller-built tensor and returns the ranked labels.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var req PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	size := h.grader.Config().Preprocess.TargetSize
	if len(req.Image) != size*size {
		h.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Expected %d values, got %d", size*size, len(req.Image)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.evalTimeout)
	defer cancel()

	tensor := preprocess.Tensor{Height: size, Width: size, Channels: 1, Values: req.Image}
	ranked, err := h.grader.Predict(ctx, tensor)
	if err != nil {
		h.writeEvalError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PredictionResponse{Ranked: ranked})
}

// Evaluate grades an uploaded canvas image against a target label.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, target, status, err := h.readEvaluation(w, r)
	if err != nil {
		h.writeError(w, r, status, err.Error())
		return
	}

	buf := preprocess.FromImage(img)
	h.log.WithFields(logrus.Fields{
		"request_id": middleware.RequestID(r.Context()),
		"width":      buf.Width,
		"height":     buf.Height,
		"target":     target,
	}).Debug("[handlers.Evaluate] canvas received")

	ctx, cancel := context.WithTimeout(r.Context(), h.evalTimeout)
	defer cancel()

	verdict, err := h.grader.Evaluate(ctx, buf, target)
	if err != nil {
		h.writeEvalError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, verdict)
}

func (h *Handler) readEvaluation(w http.ResponseWriter, r *http.Request) (image.Image, string, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req EvaluateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, "", http.StatusBadRequest, errors.New("Invalid JSON")
		}
		if err := h.validator.Struct(req); err != nil {
			return nil, "", http.StatusBadRequest, err
		}
		raw, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return nil, "", http.StatusBadRequest, errors.New("Invalid base64 image")
		}
		img, _, err := h.decodeImage(raw)
		if err != nil {
			return nil, "", imageErrorStatus(err), err
		}
		return img, req.Target, 0, nil
	}

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return nil, "", http.StatusBadRequest, errors.New("Failed to parse form")
	}
	target := strings.TrimSpace(r.FormValue("target"))
	if target == "" {
		return nil, "", http.StatusBadRequest, errors.New("Missing 'target' form field")
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", http.StatusBadRequest, errors.New("No image file provided. Use 'image' as the form field name")
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, "", http.StatusBadRequest, errors.New("Failed to read image file")
	}
	img, format, err := h.decodeImage(raw)
	if err != nil {
		return nil, "", imageErrorStatus(err), err
	}

	h.log.WithFields(logrus.Fields{
		"request_id": middleware.RequestID(r.Context()),
		"file":       header.Filename,
		"size":       header.Size,
		"format":     format,
	}).Debug("[handlers.Evaluate] decoded upload")
	return img, target, 0, nil
}

// decodeImage reads the header first so oversized images are rejected
// before any pixel memory is allocated.
func (h *Handler) decodeImage(raw []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", errors.New("Invalid image format. Supported: JPEG, PNG")
	}
	if h.maxPixels > 0 && cfg.Width > h.maxPixels/cfg.Height {
		return nil, "", fmt.Errorf("%w: %dx%d, limit %d", errImageTooLarge, cfg.Width, cfg.Height, h.maxPixels)
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", errors.New("Invalid image format. Supported: JPEG, PNG")
	}
	return img, format, nil
}

func imageErrorStatus(err error) int {
	if errors.Is(err, errImageTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (h *Handler) writeEvalError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, grader.ErrEmptyCanvas):
		h.writeError(w, r, http.StatusUnprocessableEntity, "Nothing drawn on the canvas. Please write the character.")
	case errors.Is(err, grader.ErrUnknownLabel):
		h.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, grader.ErrClassifierUnavailable):
		h.writeError(w, r, http.StatusServiceUnavailable, "Model is not loaded")
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, r, http.StatusGatewayTimeout, "Evaluation timed out")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing is written back.
		h.log.WithField("request_id", middleware.RequestID(r.Context())).Info("[handlers] evaluation abandoned by client")
	default:
		fields := logger.Fields{"error": err.Error()}
		if id, ok := middleware.RequestIDFrom(r.Context()); ok {
			fields["request_id"] = id
		}
		traceID := logger.ErrorWithTraceID(h.log, fields, "[handlers] evaluation failed")
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Evaluation failed", TraceID: traceID})
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Warn("[handlers] failed to encode response")
	}
}
