// file: internal/transport/http/router/handlers.go
package router

import (
	"SnowAegis/internal/aegobserve"
	"SnowAegis/internal/core/domain"
	"SnowAegis/internal/core/port"
	"SnowAegis/internal/service"
	"SnowAegis/internal/service/config_editor"
	"SnowAegis/internal/service/query_adapter"
	"SnowAegis/internal/transport/http/middleware"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type handlers struct {
	deps Dependencies
}

// bindError 保留 validator 的错误类型，其他绑定错误归为 ErrBadRequest
func bindError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return fmt.Errorf("%w: %v", middleware.ErrBadRequest, err)
}

// backendError 把执行器返回的错误归类：查询错误和格式错误原样返回，其余视为后端不可用
func backendError(err error) error {
	var qe *port.QueryExecutionError
	if errors.As(err, &qe) || errors.Is(err, port.ErrMalformedResponse) {
		return err
	}
	return fmt.Errorf("%w: %v", middleware.ErrBackendUnavailable, err)
}

func auditLog(c *gin.Context, action, uid string) {
	subject := "anonymous"
	if claims := service.ClaimFrom(c.Request.Context()); claims != nil {
		subject = claims.Subject
	}
	slog.Info("审计日志", "subject", subject, "action", action, "uid", uid, "ip", c.ClientIP())
}

// --- 控制平面处理器 ---

type createRequest struct {
	Name       string                  `json:"name" binding:"required"`
	JSONData   domain.ConnectionConfig `json:"jsonData"`
	Password   string                  `json:"password"`
	PrivateKey string                  `json:"privateKey"`
}

// createDataSource 新建数据源。密钥字段经过配置编辑器处理，与界面编辑的语义一致。
func (h *handlers) createDataSource(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	s := domain.DataSourceSettings{Name: req.Name, JSONData: req.JSONData}
	s = config_editor.SetAccount(s, req.JSONData.Account)
	switch {
	case req.PrivateKey != "":
		s = config_editor.SetBasicAuth(s, true)
		s = config_editor.SetPrivateKey(s, req.PrivateKey)
	case req.Password != "":
		s = config_editor.SetPassword(s, req.Password)
	}

	created, err := h.deps.Store.Create(c.Request.Context(), s)
	if err != nil {
		_ = c.Error(err)
		return
	}
	auditLog(c, "create", created.UID)
	c.JSON(http.StatusCreated, gin.H{"data": created})
}

func (h *handlers) deleteDataSource(c *gin.Context) {
	uid := c.Param("uid")
	if err := h.deps.Store.Delete(c.Request.Context(), uid); err != nil {
		_ = c.Error(err)
		return
	}
	auditLog(c, "delete", uid)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// applyEdits 按顺序应用编辑事件后保存
func (h *handlers) applyEdits(c *gin.Context) {
	var req struct {
		Events []config_editor.Event `json:"events" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	uid := c.Param("uid")
	current, err := h.deps.Store.Get(c.Request.Context(), uid)
	if err != nil {
		_ = c.Error(err)
		return
	}
	edited, err := config_editor.ApplyAll(*current, req.Events)
	if err != nil {
		_ = c.Error(err)
		return
	}
	saved, err := h.deps.Store.Save(c.Request.Context(), edited)
	if err != nil {
		_ = c.Error(err)
		return
	}
	auditLog(c, "edit", uid)
	c.JSON(http.StatusOK, gin.H{"data": saved})
}

func (h *handlers) resetSecret(c *gin.Context) {
	uid := c.Param("uid")
	current, err := h.deps.Store.Get(c.Request.Context(), uid)
	if err != nil {
		_ = c.Error(err)
		return
	}
	edited, err := config_editor.Reset(*current, c.Param("field"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	saved, err := h.deps.Store.Save(c.Request.Context(), edited)
	if err != nil {
		_ = c.Error(err)
		return
	}
	auditLog(c, "reset-"+c.Param("field"), uid)
	c.JSON(http.StatusOK, gin.H{"data": saved})
}

// --- 元数据平面处理器 ---

func (h *handlers) listDataSources(c *gin.Context) {
	all, err := h.deps.Store.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": all})
}

func (h *handlers) getDataSource(c *gin.Context) {
	s, err := h.deps.Store.Get(c.Request.Context(), c.Param("uid"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s})
}

// --- 数据平面处理器 ---

// adapterFor 读取解密后的设置并创建查询适配器
func (h *handlers) adapterFor(c *gin.Context) (*query_adapter.Adapter, bool) {
	settings, err := h.deps.Store.Decrypted(c.Request.Context(), c.Param("uid"))
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}
	adapter, err := query_adapter.New(*settings, h.deps.Expander, h.deps.Executor)
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}
	return adapter, true
}

type queryRequest struct {
	domain.QueryRequest
	ScopedVars domain.Bindings `json:"scopedVars"`
}

func (h *handlers) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	adapter, ok := h.adapterFor(c)
	if !ok {
		return
	}
	resp, err := adapter.Query(c.Request.Context(), req.QueryRequest, req.ScopedVars)
	if err != nil {
		_ = c.Error(backendError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// search 返回变量的候选值。请求里带有 scopedVars 时先替换搜索文本中的变量。
func (h *handlers) search(c *gin.Context) {
	var req struct {
		Query      string          `json:"query"`
		ScopedVars domain.Bindings `json:"scopedVars"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	adapter, ok := h.adapterFor(c)
	if !ok {
		return
	}
	text := adapter.Interpolate(domain.Query{QueryText: req.Query}, req.ScopedVars).QueryText
	values, err := adapter.SearchValues(c.Request.Context(), text)
	if err != nil {
		aegobserve.VariableSearches.WithLabelValues("error").Inc()
		_ = c.Error(backendError(err))
		return
	}
	aegobserve.VariableSearches.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"data": values})
}

func (h *handlers) health(c *gin.Context) {
	settings, err := h.deps.Store.Decrypted(c.Request.Context(), c.Param("uid"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.deps.HealthChecker.CheckHealth(c.Request.Context(), *settings); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ERROR", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "数据源连接正常"})
}
