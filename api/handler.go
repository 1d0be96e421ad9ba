package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"ucode/ucode_go_dynamic_query_service/config"
	"ucode/ucode_go_dynamic_query_service/models"
	"ucode/ucode_go_dynamic_query_service/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	headerUserId    = "X-User-Id"
	headerUserRoles = "X-User-Roles"
)

type EngineI interface {
	Execute(ctx context.Context, subject models.Subject, req *models.QueryRequest) *models.QueryResponse
	CreateTable(ctx context.Context, subject models.Subject, req *models.CreateTableRequest) *models.QueryResponse
	TableSchema(ctx context.Context, subject models.Subject, dbId, table string) *models.QueryResponse
	Suggestions(dbId, table string) []models.IndexSuggestion
	Stats(dbId, table string) models.TableStats
	ClearStatistics(dbId, table string)
	RefreshAliases(ctx context.Context) error
	RefreshPermissions(ctx context.Context) error
}

type ConnectionsI interface {
	Connections() []models.ConnectionConfig
	AddOrUpdate(cfg models.ConnectionConfig) error
	Remove(dbId string) error
	Test(ctx context.Context, cfg models.ConnectionConfig) error
}

type Handler struct {
	cfg         config.Config
	log         logger.LoggerI
	engine      EngineI
	connections ConnectionsI
}

func NewHandler(cfg config.Config, log logger.LoggerI, engine EngineI, connections ConnectionsI) *Handler {
	return &Handler{
		cfg:         cfg,
		log:         log,
		engine:      engine,
		connections: connections,
	}
}

// subject reads the caller from headers that are trusted as-is. They must be
// set by an authenticating upstream that strips client supplied values; the
// connection routes must likewise only be reachable through it.
func subject(c *gin.Context) models.Subject {
	s := models.Subject{Id: strings.TrimSpace(c.GetHeader(headerUserId))}

	for _, role := range strings.Split(c.GetHeader(headerUserRoles), ",") {
		if role = strings.TrimSpace(role); role != "" {
			s.Roles = append(s.Roles, role)
		}
	}

	return s
}

// decode reads a JSON body keeping numbers as json.Number.
func decode(c *gin.Context, dest any) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	return dec.Decode(dest)
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong", "version": h.cfg.Version})
}

// Query always answers 200 with a QueryResponse unless the body is not JSON.
func (h *Handler) Query(c *gin.Context) {
	var req models.QueryRequest

	if err := decode(c, &req); err != nil {
		h.log.Warn("---Query--->>> malformed body", logger.Error(err))
		c.JSON(http.StatusBadRequest, models.Fail("malformed request body: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, h.engine.Execute(c.Request.Context(), subject(c), &req))
}

func (h *Handler) CreateTable(c *gin.Context) {
	var req models.CreateTableRequest

	if err := decode(c, &req); err != nil {
		h.log.Warn("---CreateTable--->>> malformed body", logger.Error(err))
		c.JSON(http.StatusBadRequest, models.Fail("malformed request body: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, h.engine.CreateTable(c.Request.Context(), subject(c), &req))
}

func (h *Handler) TableSchema(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.TableSchema(c.Request.Context(), subject(c), c.Query("dbId"), c.Query("table")))
}

func (h *Handler) Suggestions(c *gin.Context) {
	c.JSON(http.StatusOK, models.Ok(h.engine.Suggestions(c.Query("dbId"), c.Param("table")), ""))
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, models.Ok(h.engine.Stats(c.Query("dbId"), c.Param("table")), ""))
}

func (h *Handler) ClearStatistics(c *gin.Context) {
	h.engine.ClearStatistics(c.Query("dbId"), c.Param("table"))
	c.JSON(http.StatusOK, models.Ok(nil, "statistics cleared"))
}

func (h *Handler) RefreshAliases(c *gin.Context) {
	if err := h.engine.RefreshAliases(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.Fail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.Ok(nil, "table aliases refreshed"))
}

func (h *Handler) RefreshPermissions(c *gin.Context) {
	if err := h.engine.RefreshPermissions(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.Fail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.Ok(nil, "role permissions refreshed"))
}

// Connections lists configured connections without their credentials.
func (h *Handler) Connections(c *gin.Context) {
	list := h.connections.Connections()
	for i := range list {
		list[i].ConnectionString = ""
		list[i].ReadConnectionString = ""
	}
	c.JSON(http.StatusOK, models.Ok(list, ""))
}

func (h *Handler) SaveConnection(c *gin.Context) {
	var cfg models.ConnectionConfig

	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("malformed connection: "+err.Error()))
		return
	}

	if err := h.connections.AddOrUpdate(cfg); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail(err.Error()))
		return
	}

	h.log.Info("---SaveConnection--->>>", logger.String("db", cfg.Id))
	c.JSON(http.StatusOK, models.Ok(nil, "connection saved"))
}

func (h *Handler) RemoveConnection(c *gin.Context) {
	if err := h.connections.Remove(c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail(err.Error()))
		return
	}

	h.log.Info("---RemoveConnection--->>>", logger.String("db", c.Param("id")))
	c.JSON(http.StatusOK, models.Ok(nil, "connection removed"))
}

func (h *Handler) TestConnection(c *gin.Context) {
	var cfg models.ConnectionConfig

	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("malformed connection: "+err.Error()))
		return
	}

	if err := h.connections.Test(c.Request.Context(), cfg); err != nil {
		c.JSON(http.StatusOK, models.Fail("connection test failed: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, models.Ok(nil, "connection test succeeded"))
}
