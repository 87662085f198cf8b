package handlers

import (
	"bytes"
	"errors"
	"image"
	"mime/multipart"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/modnet-matting/internal/matting"
)

const (
	outputForeground = "foreground"
	outputMatte      = "matte"
)

// Example is a preset input already present on local disk.
type Example struct {
	Name      string `json:"name"`
	Threshold int    `json:"threshold"`
	Path      string `json:"-"`
}

// Options tune the HTTP surface.
type Options struct {
	Examples         []Example
	DefaultThreshold int
	MaxUploadBytes   int64
	Logger           logrus.FieldLogger
	// Ready reports whether the model is loaded; nil means always ready.
	Ready func() bool
}

type Handler struct {
	pipeline         *matting.Pipeline
	examples         []Example
	defaultThreshold int
	maxUploadBytes   int64
	logger           logrus.FieldLogger
	ready            func() bool
}

func NewHandler(pipeline *matting.Pipeline, opts Options) *Handler {
	h := &Handler{
		pipeline:         pipeline,
		examples:         opts.Examples,
		defaultThreshold: opts.DefaultThreshold,
		maxUploadBytes:   opts.MaxUploadBytes,
		logger:           opts.Logger,
		ready:            opts.Ready,
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = 10 << 20
	}
	if h.logger == nil {
		h.logger = logrus.StandardLogger()
	}
	if h.ready == nil {
		h.ready = func() bool { return true }
	}
	return h
}

// Router wires every endpoint onto a fresh gin engine.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(h.logger), enableCORS())
	r.MaxMultipartMemory = h.maxUploadBytes
	r.SetHTMLTemplate(indexTemplate)

	r.GET("/", h.Index)
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.POST("/matte", h.Matte)
	api.GET("/examples", h.ListExamples)
	api.GET("/examples/:name/image", h.ExampleImage)
	api.POST("/examples/:name", h.RunExample)
	return r
}

func (h *Handler) Health(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if !h.ready() {
		status, code = "loading", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status})
}

type matteForm struct {
	Threshold       *int   `form:"threshold" binding:"omitempty,min=0,max=250"`
	BackgroundColor string `form:"background_color" binding:"omitempty,hexcolor"`
	FitBackground   bool   `form:"fit_background"`
	Output          string `form:"output" binding:"omitempty,oneof=foreground matte"`
}

func (f matteForm) threshold(def int) int {
	if f.Threshold != nil {
		return *f.Threshold
	}
	return def
}

// Matte removes the background of the uploaded "image" field.
func (h *Handler) Matte(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	var form matteForm
	if err := c.ShouldBind(&form); err != nil {
		h.writeError(c, bindStatus(err), err)
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		h.writeError(c, http.StatusBadRequest, errors.New("no image file provided, use 'image' as the form field name"))
		return
	}
	h.logger.WithFields(logrus.Fields{
		"request_id": c.GetString(requestIDKey),
		"filename":   file.Filename,
		"size":       file.Size,
	}).Debug("received upload")

	img, err := decodeUpload(file)
	if err != nil {
		h.writeError(c, 0, err)
		return
	}

	h.respond(c, img, form, form.threshold(h.defaultThreshold))
}

// respond builds the background, runs the pipeline and writes a PNG.
func (h *Handler) respond(c *gin.Context, img image.Image, form matteForm, threshold int) {
	var (
		out image.Image
		err error
	)
	if form.Output == outputMatte {
		out, err = h.pipeline.Matte(c.Request.Context(), img)
	} else {
		var bg matting.Background
		bg, err = h.background(c, form, img.Bounds())
		if err != nil {
			h.writeError(c, 0, err)
			return
		}
		out, err = h.pipeline.Run(c.Request.Context(), img, threshold, bg)
	}
	if err != nil {
		h.writeError(c, 0, err)
		return
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		h.writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *Handler) background(c *gin.Context, form matteForm, bounds image.Rectangle) (matting.Background, error) {
	if file, err := c.FormFile("background"); err == nil {
		bgImg, err := decodeUpload(file)
		if err != nil {
			return matting.Background{}, err
		}
		if form.FitBackground {
			return matting.FitImageBackground(bgImg, bounds.Dx(), bounds.Dy())
		}
		return matting.ImageBackground(bgImg), nil
	}
	if form.BackgroundColor != "" {
		col, err := matting.ParseHexColor(form.BackgroundColor)
		if err != nil {
			return matting.Background{}, err
		}
		return matting.SolidColor(col), nil
	}
	return matting.Transparent(), nil
}

func decodeUpload(fh *multipart.FileHeader) (image.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, &matting.InvalidImageError{Msg: "open upload " + fh.Filename, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()
	return matting.Decode(f)
}

func bindStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// writeError reports err verbatim. A zero status is derived from the
// matting error kind.
func (h *Handler) writeError(c *gin.Context, status int, err error) {
	if status == 0 {
		status = statusFor(err)
	}
	entry := h.logger.WithFields(logrus.Fields{
		"request_id": c.GetString(requestIDKey),
		"status":     status,
	})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.WithError(err).Warn("request rejected")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var (
		imageErr     *matting.InvalidImageError
		geometryErr  *matting.InvalidGeometryError
		inferenceErr *matting.InferenceError
	)
	switch {
	case errors.As(err, &imageErr):
		return http.StatusBadRequest
	case errors.As(err, &geometryErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &inferenceErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
