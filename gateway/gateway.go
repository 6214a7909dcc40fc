package gateway

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/preorder/pkg/config"
	"github.com/example/preorder/pkg/export"
	"github.com/example/preorder/pkg/models"
	"github.com/example/preorder/pkg/orders"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const requestIDHeader = "X-Request-ID"

// OrderService is what the web front-end needs from the order service.
type OrderService interface {
	Submit(ctx context.Context, name, order, notes string) (*models.Order, error)
	List(ctx context.Context, key string) ([]models.Order, error)
	Delete(ctx context.Context, key string, id int) ([]models.Order, error)
	Clear(ctx context.Context, key string) error
	Metrics(ctx context.Context, key string) ([]models.UserSummary, error)
}

type Gateway struct {
	config *config.Config
	orders OrderService
	logger *zap.Logger
	router *gin.Engine
	server *http.Server
}

type formView struct {
	Name  string
	Order string
	Notes string
	Error string
}

func NewGateway(cfg *config.Config, logger *zap.Logger, svc OrderService) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(logger))
	router.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	return &Gateway{
		config: cfg,
		orders: svc,
		logger: logger,
		router: router,
		server: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (g *Gateway) SetupRoutes() {
	// Health check
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	g.router.GET("/", g.orderForm)
	g.router.POST("/", g.submitOrder)
	g.router.GET("/thanks", g.thanks)

	admin := g.router.Group("/admin")
	{
		admin.GET("", g.listOrders)
		admin.GET("/metrics", g.metrics)
		admin.GET("/metrics.json", g.metricsJSON)
		admin.GET("/export.csv", g.exportCSV)
		admin.GET("/export.xlsx", g.exportXLSX)
		admin.POST("/clear", g.clearOrders)
		admin.POST("/delete/:id", g.deleteOrder)
	}
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Start blocks serving HTTP until Shutdown is called.
func (g *Gateway) Start() error {
	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

func (g *Gateway) orderForm(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", formView{})
}

func (g *Gateway) submitOrder(c *gin.Context) {
	form := formView{
		Name:  c.PostForm("name"),
		Order: c.PostForm("order"),
		Notes: c.PostForm("notes"),
	}

	order, err := g.orders.Submit(c.Request.Context(), form.Name, form.Order, form.Notes)
	if errors.Is(err, orders.ErrInvalidOrder) {
		form.Error = "Please enter your name and your order."
		c.HTML(http.StatusOK, "index.html", form)
		return
	}
	if err != nil {
		g.serverError(c, "Failed to submit order", err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/thanks?person="+url.QueryEscape(order.Name))
}

func (g *Gateway) thanks(c *gin.Context) {
	c.HTML(http.StatusOK, "thanks.html", gin.H{"Person": c.Query("person")})
}

func (g *Gateway) listOrders(c *gin.Context) {
	key := c.Query("key")
	list, err := g.orders.List(c.Request.Context(), key)
	if err != nil {
		g.adminPageError(c, err)
		return
	}

	c.HTML(http.StatusOK, "admin.html", gin.H{
		"Orders": list,
		"Total":  len(list),
		"Key":    key,
	})
}

func (g *Gateway) metrics(c *gin.Context) {
	key := c.Query("key")
	summaries, err := g.orders.Metrics(c.Request.Context(), key)
	if err != nil {
		g.adminPageError(c, err)
		return
	}

	c.HTML(http.StatusOK, "metrics.html", gin.H{
		"Summaries": summaries,
		"Key":       key,
	})
}

func (g *Gateway) metricsJSON(c *gin.Context) {
	summaries, err := g.orders.Metrics(c.Request.Context(), c.Query("key"))
	if errors.Is(err, orders.ErrUnauthorized) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		g.logger.Error("Failed to compute metrics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

func (g *Gateway) exportCSV(c *gin.Context) {
	list, err := g.orders.List(c.Request.Context(), c.Query("key"))
	if err != nil {
		g.adminActionError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename="+exportName("csv"))
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, list); err != nil {
		g.logger.Error("Failed to write CSV export", zap.Error(err))
	}
}

func (g *Gateway) exportXLSX(c *gin.Context) {
	list, err := g.orders.List(c.Request.Context(), c.Query("key"))
	if err != nil {
		g.adminActionError(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+exportName("xlsx"))
	c.Status(http.StatusOK)
	if err := export.WriteXLSX(c.Writer, list); err != nil {
		g.logger.Error("Failed to write XLSX export", zap.Error(err))
	}
}

func (g *Gateway) clearOrders(c *gin.Context) {
	key := c.Query("key")
	if err := g.orders.Clear(c.Request.Context(), key); err != nil {
		g.adminActionError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, adminURL(key))
}

func (g *Gateway) deleteOrder(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 {
		c.String(http.StatusNotFound, "Not Found")
		return
	}

	key := c.Query("key")
	if _, err := g.orders.Delete(c.Request.Context(), key, id); err != nil {
		g.adminActionError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, adminURL(key))
}

func (g *Gateway) adminPageError(c *gin.Context, err error) {
	if errors.Is(err, orders.ErrUnauthorized) {
		c.HTML(http.StatusForbidden, "locked.html", nil)
		return
	}
	g.serverError(c, "Admin view failed", err)
}

func (g *Gateway) adminActionError(c *gin.Context, err error) {
	if errors.Is(err, orders.ErrUnauthorized) {
		c.String(http.StatusForbidden, "Unauthorized")
		return
	}
	g.serverError(c, "Admin action failed", err)
}

func (g *Gateway) serverError(c *gin.Context, msg string, err error) {
	g.logger.Error(msg,
		zap.String("request_id", c.GetString(requestIDHeader)),
		zap.Error(err))
	c.String(http.StatusInternalServerError, "Internal Server Error")
}

func adminURL(key string) string {
	return "/admin?key=" + url.QueryEscape(key)
}

func exportName(ext string) string {
	return fmt.Sprintf("orders_%s.%s", time.Now().Format("2006-01-02"), ext)
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := redactKey(c.Request.URL.Query())

		c.Next()

		logger.Info("HTTP request",
			zap.String("request_id", c.GetString(requestIDHeader)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// redactKey keeps the admin secret out of access logs.
func redactKey(q url.Values) string {
	if q.Has("key") {
		q.Set("key", "REDACTED")
	}
	return q.Encode()
}
