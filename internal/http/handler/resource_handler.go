package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/KH1188/juliusos/internal/domain"
	"github.com/KH1188/juliusos/internal/repo"

	"github.com/gin-gonic/gin"
)

// ResourceStore 资源 CRUD，由 service.ResourceService 实现
type ResourceStore interface {
	Create(ctx context.Context, spec domain.ResourceSpec, userID int64, data map[string]any) (*domain.Record, error)
	List(ctx context.Context, spec domain.ResourceSpec, f domain.ListFilter) ([]domain.Record, error)
	Get(ctx context.Context, spec domain.ResourceSpec, id int64) (*domain.Record, error)
	Update(ctx context.Context, spec domain.ResourceSpec, id int64, data map[string]any) (*domain.Record, error)
	Delete(ctx context.Context, spec domain.ResourceSpec, id int64) error
}

type ResourceHandler struct {
	svc         ResourceStore
	defaultUser int64
}

func NewResourceHandler(svc ResourceStore, defaultUser int64) *ResourceHandler {
	return &ResourceHandler{svc: svc, defaultUser: defaultUser}
}

// Register 为每个资源注册 list/create/get/update/delete 路由
func (h *ResourceHandler) Register(rg gin.IRoutes) {
	for _, spec := range domain.Resources {
		item := spec.Path + "/:" + itemParam(spec)
		rg.GET(spec.Path, h.list(spec))
		rg.POST(spec.Path, h.create(spec))
		rg.GET(item, h.get(spec))
		rg.PUT(item, h.update(spec))
		rg.DELETE(item, h.delete(spec))
	}
}

// itemParam 嵌套路由（/habits/:id/logs）的单条记录参数不能与父级同名
func itemParam(spec domain.ResourceSpec) string {
	if strings.Contains(spec.Path, ":id") {
		return "log_id"
	}
	return "id"
}

// parent 嵌套资源的父级过滤字段，例如 habit_logs 的 habit_id
func parent(spec domain.ResourceSpec, c *gin.Context) (string, string, bool) {
	if !strings.Contains(spec.Path, ":id") || len(spec.Filters) == 0 {
		return "", "", false
	}
	return spec.Filters[0], c.Param("id"), true
}

// GET /api/v1/<resource>?user_id&start&end&limit&<filter>=
func (h *ResourceHandler) list(spec domain.ResourceSpec) gin.HandlerFunc {
	return func(c *gin.Context) {
		start, err := timeQuery(c, "start")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start", "detail": err.Error()})
			return
		}
		end, err := timeQuery(c, "end")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end", "detail": err.Error()})
			return
		}
		f := domain.ListFilter{
			UserID: userID(c, h.defaultUser),
			Start:  start,
			End:    end,
			Equals: map[string]string{},
			Limit:  intQuery(c, "limit", 0),
		}
		for _, k := range spec.Filters {
			if v := c.Query(k); v != "" {
				f.Equals[k] = v
			}
		}
		if k, v, ok := parent(spec, c); ok {
			f.Equals[k] = v
		}

		records, err := h.svc.List(c.Request.Context(), spec, f)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list " + spec.Name + " failed", "detail": err.Error()})
			return
		}
		out := make([]map[string]any, 0, len(records))
		for _, r := range records {
			out = append(out, r.Flatten())
		}
		c.JSON(http.StatusOK, out)
	}
}

// POST /api/v1/<resource>
func (h *ResourceHandler) create(spec domain.ResourceSpec) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
			return
		}
		uid := userID(c, h.defaultUser)
		if v, ok := body["user_id"].(float64); ok && v > 0 {
			uid = int64(v)
		}
		if k, v, ok := parent(spec, c); ok {
			body[k] = v
		}
		r, err := h.svc.Create(c.Request.Context(), spec, uid, body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "create " + spec.Name + " failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, r.Flatten())
	}
}

// GET /api/v1/<resource>/:id
func (h *ResourceHandler) get(spec domain.ResourceSpec) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := recordID(c, spec)
		if !ok {
			return
		}
		r, err := h.svc.Get(c.Request.Context(), spec, id)
		if err != nil {
			writeRepoError(c, spec.Name, err)
			return
		}
		c.JSON(http.StatusOK, r.Flatten())
	}
}

// PUT /api/v1/<resource>/:id 整体替换 data
func (h *ResourceHandler) update(spec domain.ResourceSpec) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := recordID(c, spec)
		if !ok {
			return
		}
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
			return
		}
		if k, v, ok := parent(spec, c); ok {
			body[k] = v
		}
		r, err := h.svc.Update(c.Request.Context(), spec, id, body)
		if err != nil {
			writeRepoError(c, spec.Name, err)
			return
		}
		c.JSON(http.StatusOK, r.Flatten())
	}
}

// DELETE /api/v1/<resource>/:id
func (h *ResourceHandler) delete(spec domain.ResourceSpec) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := recordID(c, spec)
		if !ok {
			return
		}
		if err := h.svc.Delete(c.Request.Context(), spec, id); err != nil {
			writeRepoError(c, spec.Name, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
	}
}

func recordID(c *gin.Context, spec domain.ResourceSpec) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(itemParam(spec)), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + spec.Name + " id"})
		return 0, false
	}
	return id, true
}

func writeRepoError(c *gin.Context, what string, err error) {
	if errors.Is(err, repo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "detail": err.Error()})
}
