package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/iurnickita/sellerdesk/internal/auth"
	"github.com/iurnickita/sellerdesk/internal/backendclient"
	"github.com/iurnickita/sellerdesk/internal/handler/config"
	"github.com/iurnickita/sellerdesk/internal/logger"
	"github.com/iurnickita/sellerdesk/internal/metrics"
	"github.com/iurnickita/sellerdesk/internal/model"
	"github.com/iurnickita/sellerdesk/internal/pipeline"
	"github.com/iurnickita/sellerdesk/internal/service"
	"github.com/iurnickita/sellerdesk/internal/store"
	"github.com/iurnickita/sellerdesk/internal/table"
	"github.com/iurnickita/sellerdesk/internal/workflow"
)

var errBadRequest = errors.New("bad request")

// Serve runs the HTTP server until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, cfg config.Config, auth auth.Auth, service service.Service, mtr *metrics.Metrics, zaplog *zap.Logger) error {
	h := newHandler(auth, service, mtr, zaplog)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      h.newRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		h.zaplog.Info("server started", zap.String("addr", cfg.ServerAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	h.zaplog.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type handler struct {
	auth     auth.Auth
	service  service.Service
	metrics  *metrics.Metrics
	validate *validator.Validate
	zaplog   *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, mtr *metrics.Metrics, zaplog *zap.Logger) *handler {
	if zaplog == nil {
		zaplog = zap.NewNop()
	}
	return &handler{
		auth:     auth,
		service:  service,
		metrics:  mtr,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		zaplog:   zaplog,
	}
}

func (h *handler) newRouter() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(logger.RequestLogMdlw(h.zaplog))
	if h.metrics != nil {
		router.Use(h.metrics.Middleware)
		router.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Get("/session", h.GetSession)
		r.Post("/session/marketplace", h.PostMarketplace)
		r.Get("/legal-entities", h.GetLegalEntities)
		r.Get("/panels", h.GetPanels)
		r.Get("/history", h.GetHistory)
		r.Get("/artifacts/{id}", h.GetArtifact)

		r.Route("/{marketplace}", func(r chi.Router) {
			r.Post("/orders/refresh", h.PostRefresh)
			r.Get("/orders", h.GetOrders)
			r.Get("/orders/selection", h.GetSelection)
			r.Post("/orders/selection", h.PostToggle)
			r.Post("/orders/selection/all", h.PostSelectAll)
			r.Delete("/orders/selection", h.DeleteSelection)
			r.Post("/orders/advance", h.PostAdvance)
			r.Post("/reports", h.PostReports)
		})
	})

	return router
}

func (h *handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Session(r.Context(), auth.UserCode(r.Context())))
}

type PostMarketplaceJSONRequest struct {
	Marketplace string `json:"marketplace" validate:"required"`
}

func (h *handler) PostMarketplace(w http.ResponseWriter, r *http.Request) {
	var req PostMarketplaceJSONRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	mp, err := model.ParseMarketplace(req.Marketplace)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	info, err := h.service.SwitchMarketplace(r.Context(), auth.UserCode(r.Context()), mp)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *handler) GetLegalEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.service.LegalEntities(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entities == nil {
		entities = []model.LegalEntity{}
	}
	h.writeJSON(w, http.StatusOK, entities)
}

type PostRefreshJSONRequest struct {
	// 0 - перезагрузить текущее юрлицо
	LegalEntityID int64 `json:"legalEntityId" validate:"gte=0"`
}

type PostRefreshJSONResponse struct {
	Orders int `json:"orders"`
}

func (h *handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	mp, err := marketplaceParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req PostRefreshJSONRequest
	if err := h.decode(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.service.LoadOrders(r.Context(), auth.UserCode(r.Context()), mp, req.LegalEntityID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PostRefreshJSONResponse{Orders: n})
}

type getOrdersQuery struct {
	Status    string
	Query     string
	SortField string
	SortDir   string `validate:"omitempty,oneof=asc desc"`
	Page      int    `validate:"gte=0"`
	PageSize  int    `validate:"gte=0,lte=500"`
}

// GetOrders returns the visible table page. Without query parameters the
// operator's last view is reused.
func (h *handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	mp, err := marketplaceParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	query, err := h.tableQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.service.Table(r.Context(), auth.UserCode(r.Context()), mp, query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if view.Items == nil {
		view.Items = []model.Order{}
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *handler) tableQuery(values url.Values) (*service.TableQuery, error) {
	if len(values) == 0 {
		return nil, nil
	}
	q := getOrdersQuery{
		Status:    values.Get("status"),
		Query:     values.Get("q"),
		SortField: values.Get("sort"),
		SortDir:   values.Get("dir"),
	}
	var err error
	if q.Page, err = intParam(values, "page"); err != nil {
		return nil, err
	}
	if q.PageSize, err = intParam(values, "pageSize"); err != nil {
		return nil, err
	}
	if err := h.validate.Struct(q); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return &service.TableQuery{
		Status:    q.Status,
		Query:     q.Query,
		SortField: q.SortField,
		SortDir:   table.SortDirection(q.SortDir),
		Page:      q.Page,
		PageSize:  q.PageSize,
	}, nil
}

func (h *handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	mp, err := marketplaceParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sel, err := h.service.Selection(r.Context(), auth.UserCode(r.Context()), mp)
	h.writeSelection(w, r, sel, err)
}

type PostToggleJSONRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

func (h *handler) PostToggle(w http.ResponseWriter, r *http.Request) {
	mp, err := marketplaceParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req PostToggleJSONRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	sel, err := h.service.Toggle(r.Context(), auth.UserCode(r.Context()), mp, req.OrderID)
	h.writeSelection(w, r, sel, err)
}

func (h *handler) PostSelectAll(w http.ResponseWriter, r *http.Request) {
	mp, err := marketplaceParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sel, err := h.service.SelectAll(r.Context(), auth.UserCode(r.Context()), mp)
	h.writeSelection(w, r, sel, err)
}

func (h *handler) DeleteSelection(w http.ResponseWriter, r *http.Request) {
	mp, err := marketplaceParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sel, err := h.service.ClearSelection(r.Context(), auth.UserCode(r.Context()), mp)
	h.writeSelection(w, r, sel, err)
}

type PostAdvanceJSONRequest struct {
	SupplyID string `json:"supplyId" validate:"omitempty,max=128"`
}

func (h *handler) PostAdvance(w http.ResponseWriter, r *http.Request) {
	mp, err := marketplaceParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req PostAdvanceJSONRequest
	if err := h.decode(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.service.Advance(r.Context(), auth.UserCode(r.Context()), mp, service.AdvanceRequest{SupplyID: req.SupplyID})
	if err != nil {
		code, resp := h.errorResponse(r, err)
		// часть шагов могла пройти, оператор должен это видеть
		var stepErr *pipeline.StepError
		if errors.As(err, &stepErr) {
			resp.Step = stepErr.Step
			resp.Completed = res.Completed
		}
		h.writeJSON(w, code, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *handler) PostReports(w http.ResponseWriter, r *http.Request) {
	mp, err := marketplaceParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.service.GenerateReports(r.Context(), auth.UserCode(r.Context()), mp)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Artifact(r.Context(), auth.UserCode(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(a.Data)
}

func (h *handler) GetPanels(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Panels(r.Context(), auth.UserCode(r.Context())))
}

func (h *handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query(), "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	history, err := h.service.History(r.Context(), auth.UserCode(r.Context()), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, history)
}

func (h *handler) writeSelection(w http.ResponseWriter, r *http.Request, sel any, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sel)
}

// decode reads a JSON body into dst and validates it. An empty body is
// accepted when optional is set.
func (h *handler) decode(r *http.Request, dst any, optional bool) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(body) == 0 && !optional {
		return fmt.Errorf("%w: empty body", errBadRequest)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func marketplaceParam(r *http.Request) (model.Marketplace, error) {
	return model.ParseMarketplace(chi.URLParam(r, "marketplace"))
}

func intParam(values url.Values, name string) (int, error) {
	v := values.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", errBadRequest, name)
	}
	return n, nil
}

type ErrorJSONResponse struct {
	Error     string   `json:"error"`
	Statuses  []string `json:"statuses,omitempty"`
	Step      string   `json:"step,omitempty"`
	Completed []string `json:"completed,omitempty"`
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, resp := h.errorResponse(r, err)
	h.writeJSON(w, code, resp)
}

func (h *handler) errorResponse(r *http.Request, err error) (int, ErrorJSONResponse) {
	code := statusCode(err)
	resp := ErrorJSONResponse{Error: err.Error()}

	var verr *workflow.ValidationError
	if errors.As(err, &verr) {
		resp.Statuses = verr.Statuses
	}
	var terr *backendclient.TransportError
	if errors.As(err, &terr) {
		// оператору показываем текст бэкенда без обёрток
		resp.Error = terr.Message
	}

	if code >= http.StatusInternalServerError {
		h.zaplog.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Int("code", code),
			zap.Error(err),
		)
	}
	return code, resp
}

func statusCode(err error) int {
	var verr *workflow.ValidationError
	var terr *backendclient.TransportError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrUnknownMarketplace),
		errors.Is(err, service.ErrLegalEntityRequired),
		errors.Is(err, service.ErrSupplyNotSupported),
		errors.Is(err, store.ErrLimitIncorrect):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrArtifactNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, backendclient.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &terr),
		errors.Is(err, backendclient.ErrUnexpectedShape):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(responseJSON)
}
