package backend

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/odi-scan/pkg/device"
	"github.com/denysvitali/odi-scan/pkg/pageimage"
	"github.com/denysvitali/odi-scan/pkg/preview"
	"github.com/denysvitali/odi-scan/pkg/session"
	"github.com/denysvitali/odi-scan/pkg/storage/model"
)

// Server drives a scan session over HTTP, for machines without a display.
type Server struct {
	e          *gin.Engine
	controller *session.Controller
	preview    *preview.Cache
	storage    model.Retriever
	quality    int
}

var log = logrus.StandardLogger().WithField("package", "backend")

// New builds the HTTP surface of controller. previewCache and ret are
// optional: the routes they back answer 404 when they are nil.
func New(controller *session.Controller, previewCache *preview.Cache, ret model.Retriever) *Server {
	s := Server{
		e:          gin.New(),
		controller: controller,
		preview:    previewCache,
		storage:    ret,
		quality:    pageimage.DefaultQuality,
	}
	s.initRoutes()
	return &s
}

func (s *Server) Run(addr string) error {
	return s.e.Run(addr)
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) initRoutes() {
	s.e.Use(gin.Logger())
	s.e.Use(gin.Recovery())
	s.e.Use(cors.Default())

	s.e.GET("/metrics", gin.WrapH(promhttp.Handler()))

	g := s.e.Group("/api/v1")
	g.GET("/session", s.handleGetSession)
	g.GET("/devices", s.handleGetDevices)
	g.POST("/devices/select", s.handleSelectDevice)
	g.POST("/scan", s.handleScan)
	g.PUT("/destination", s.handleSetDestination)
	g.POST("/export", s.handleExport)
	g.GET("/preview", s.handleGetPreview)
	g.GET("/pages/:sequenceId", s.handleGetPage)
	g.GET("/archive/:scanId/:name", s.handleGetArchived)
}

var badRequest = gin.H{
	"error": "bad request",
}

var internalServerError = gin.H{
	"error": "internal server error",
}

var notFound = gin.H{
	"error": "not found",
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, device.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, device.ErrNoDevice), errors.Is(err, device.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, device.ErrManagerClosed):
		return http.StatusServiceUnavailable
	case session.IsNoPages(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Status())
}

func (s *Server) handleGetDevices(c *gin.Context) {
	devices, err := s.controller.Devices()
	if err != nil {
		s.fail(c, err)
		return
	}
	if devices == nil {
		devices = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
	})
}

type SelectDeviceRequest struct {
	Device string `json:"device"`
}

func (s *Server) handleSelectDevice(c *gin.Context) {
	var req SelectDeviceRequest
	if err := c.BindJSON(&req); err != nil || req.Device == "" {
		c.JSON(http.StatusBadRequest, badRequest)
		return
	}
	if err := s.controller.SelectDevice(req.Device); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.controller.Status())
}

func (s *Server) handleScan(c *gin.Context) {
	if err := s.controller.Scan(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, s.controller.Status())
}

type DestinationRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleSetDestination(c *gin.Context) {
	var req DestinationRequest
	if err := c.BindJSON(&req); err != nil || req.Path == "" {
		c.JSON(http.StatusBadRequest, badRequest)
		return
	}
	if err := s.controller.SetDestination(req.Path); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.controller.Status())
}

func (s *Server) handleExport(c *gin.Context) {
	doc, err := s.controller.Finish()
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.preview != nil {
		s.preview.Reset()
	}
	c.JSON(http.StatusCreated, doc)
}

func (s *Server) handleGetPreview(c *gin.Context) {
	if s.preview == nil {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	b, id, err := s.preview.Latest()
	if err != nil {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	c.Header("X-Page-Id", id)
	c.Data(http.StatusOK, "image/jpeg", b)
}

func (s *Server) handleGetPage(c *gin.Context) {
	sequenceId, err := strconv.ParseInt(c.Param("sequenceId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, badRequest)
		return
	}
	page, ok := s.controller.Page(int(sequenceId))
	if !ok {
		c.JSON(http.StatusNotFound, notFound)
		return
	}

	img := page.Image
	if w := c.Query("width"); w != "" {
		width, err := strconv.Atoi(w)
		if err != nil || width <= 0 {
			c.JSON(http.StatusBadRequest, badRequest)
			return
		}
		img = pageimage.Thumbnail(img, width)
	}
	b, err := pageimage.JPEGBytes(img, s.quality)
	if err != nil {
		log.Errorf("unable to encode page %s: %v", page.Id(), err)
		c.JSON(http.StatusInternalServerError, internalServerError)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", b)
}

func (s *Server) handleGetArchived(c *gin.Context) {
	if s.storage == nil {
		c.JSON(http.StatusNotFound, notFound)
		return
	}
	scanId := c.Param("scanId")
	name := c.Param("name")
	if scanId == "" || name == "" {
		c.JSON(http.StatusBadRequest, badRequest)
		return
	}

	doc, err := s.storage.Retrieve(scanId, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, notFound)
			return
		}
		log.Errorf("unable to retrieve document: %v", err)
		c.JSON(http.StatusInternalServerError, internalServerError)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Status(http.StatusOK)
	_, err = io.Copy(c.Writer, doc.Reader)
	if err != nil {
		log.Errorf("unable to copy: %v", err)
		return
	}
}
