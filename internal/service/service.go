package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/sellerdesk/internal/backendclient"
	"github.com/iurnickita/sellerdesk/internal/metrics"
	"github.com/iurnickita/sellerdesk/internal/model"
	"github.com/iurnickita/sellerdesk/internal/panel"
	"github.com/iurnickita/sellerdesk/internal/pipeline"
	"github.com/iurnickita/sellerdesk/internal/report"
	"github.com/iurnickita/sellerdesk/internal/service/config"
	"github.com/iurnickita/sellerdesk/internal/session"
	"github.com/iurnickita/sellerdesk/internal/store"
	"github.com/iurnickita/sellerdesk/internal/table"
	"github.com/iurnickita/sellerdesk/internal/workflow"
)

type Service interface {
	LegalEntities(ctx context.Context) ([]model.LegalEntity, error)
	Session(ctx context.Context, operator string) SessionInfo
	SwitchMarketplace(ctx context.Context, operator string, mp model.Marketplace) (SessionInfo, error)
	LoadOrders(ctx context.Context, operator string, mp model.Marketplace, legalEntityID int64) (int, error)
	Table(ctx context.Context, operator string, mp model.Marketplace, query *TableQuery) (TableView, error)
	Toggle(ctx context.Context, operator string, mp model.Marketplace, orderID string) (session.Selection, error)
	SelectAll(ctx context.Context, operator string, mp model.Marketplace) (session.Selection, error)
	ClearSelection(ctx context.Context, operator string, mp model.Marketplace) (session.Selection, error)
	Selection(ctx context.Context, operator string, mp model.Marketplace) (session.Selection, error)
	Advance(ctx context.Context, operator string, mp model.Marketplace, req AdvanceRequest) (AdvanceResult, error)
	GenerateReports(ctx context.Context, operator string, mp model.Marketplace) (ReportsResult, error)
	Artifact(ctx context.Context, operator string, id string) (report.Artifact, error)
	Panels(ctx context.Context, operator string) []panel.Panel
	History(ctx context.Context, operator string, limit int) (History, error)
	// Sweep drops expired artifacts and idle sessions.
	Sweep()
}

var (
	ErrBusy                = errors.New("operation is already running")
	ErrLegalEntityRequired = errors.New("legal entity is required")
	ErrArtifactNotFound    = errors.New("artifact not found or already downloaded")
	ErrOrderNotFound       = errors.New("order not found")
	ErrSupplyNotSupported  = errors.New("supplies exist only for wildberries")
)

type SessionInfo struct {
	Operator      string                      `json:"operator"`
	Active        model.Marketplace           `json:"active"`
	LegalEntities map[model.Marketplace]int64 `json:"legalEntities"`
}

// TableQuery replaces the persisted view of the table.
type TableQuery struct {
	Status    string
	Query     string
	SortField string
	SortDir   table.SortDirection
	Page      int
	PageSize  int
}

type TableView struct {
	table.Page
	View      session.View      `json:"view"`
	Selection session.Selection `json:"selection"`
}

type AdvanceRequest struct {
	// Поставка Wildberries, в которую добавить заказы при переводе в ready_to_shipment
	SupplyID string
}

type AdvanceResult struct {
	From      string          `json:"from"`
	To        workflow.Target `json:"to"`
	OrderIDs  []string        `json:"orderIds"`
	Completed []string        `json:"completed"`
	Reports   *ReportsResult  `json:"reports,omitempty"`
}

type ReportsResult struct {
	Artifacts []ArtifactInfo `json:"artifacts"`
	Warnings  []string       `json:"warnings,omitempty"`
	Skipped   int            `json:"skipped"`
}

type History struct {
	StatusChanges []model.StatusChange `json:"statusChanges"`
	Exports       []model.ReportExport `json:"exports"`
}

const (
	stepValidate     = "validate"
	stepAddToSupply  = "add_to_supply"
	stepChangeStatus = "change_status"
	stepUpdateOrders = "update_orders"
	stepReports      = "reports"
)

type service struct {
	cfg       config.Config
	client    backendclient.Client
	reports   *report.Generator
	store     store.Store
	sessions  *session.Manager
	artifacts *artifacts
	metrics   *metrics.Metrics
	zaplog    *zap.Logger
	now       func() time.Time
}

func NewService(cfg config.Config, client backendclient.Client, reports *report.Generator, store store.Store, mtr *metrics.Metrics, zaplog *zap.Logger) Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.ArtifactTTL <= 0 {
		cfg.ArtifactTTL = 15 * time.Minute
	}
	if cfg.SessionIdle <= 0 {
		cfg.SessionIdle = 12 * time.Hour
	}
	if zaplog == nil {
		zaplog = zap.NewNop()
	}
	return &service{
		cfg:       cfg,
		client:    client,
		reports:   reports,
		store:     store,
		sessions:  session.NewManager(),
		artifacts: newArtifacts(cfg.ArtifactTTL),
		metrics:   mtr,
		zaplog:    zaplog,
		now:       time.Now,
	}
}

func (service *service) LegalEntities(ctx context.Context) ([]model.LegalEntity, error) {
	return service.client.LegalEntities(ctx)
}

func (service *service) Session(_ context.Context, operator string) SessionInfo {
	sess := service.sessions.Get(operator)
	info := SessionInfo{
		Operator:      operator,
		Active:        sess.Active(),
		LegalEntities: make(map[model.Marketplace]int64),
	}
	for _, mp := range model.Marketplaces() {
		if id, ok := sess.LegalEntity(mp); ok {
			info.LegalEntities[mp] = id
		}
	}
	return info
}

func (service *service) SwitchMarketplace(ctx context.Context, operator string, mp model.Marketplace) (SessionInfo, error) {
	sess := service.sessions.Get(operator)
	prev := sess.Active()
	switched, err := sess.SetActive(mp)
	if err != nil {
		return SessionInfo{}, err
	}
	// итоги операций прошлого маркетплейса больше не актуальны
	if switched {
		sess.Panels.Reset(prev)
	}
	return service.Session(ctx, operator), nil
}

// LoadOrders fetches the marketplace orders of a legal entity into the
// operator session. A zero legalEntityID reloads the current one.
func (service *service) LoadOrders(ctx context.Context, operator string, mp model.Marketplace, legalEntityID int64) (int, error) {
	if _, err := workflow.For(mp); err != nil {
		return 0, err
	}
	sess := service.sessions.Get(operator)
	if legalEntityID == 0 {
		id, ok := sess.LegalEntity(mp)
		if !ok {
			return 0, ErrLegalEntityRequired
		}
		legalEntityID = id
	}
	if !sess.Panels.Start(mp, panel.OperationLoadOrders) {
		return 0, ErrBusy
	}

	orders, err := service.client.Orders(ctx, mp, legalEntityID, service.cfg.IncludeUnconfirmed)
	if err == nil {
		err = sess.SetOrders(mp, legalEntityID, orders, service.now())
	}
	sess.Panels.Finish(mp, panel.OperationLoadOrders, err, fmt.Sprintf("%d orders", len(orders)), 0)
	if err != nil {
		service.zaplog.Warn("load orders failed",
			zap.String("operator", operator),
			zap.String("marketplace", string(mp)),
			zap.Error(err),
		)
		return 0, err
	}
	return len(sess.Orders(mp)), nil
}

// Table derives the visible page: dedupe, filter, sort, paginate. A page that
// no longer exists is clamped to the first one and persisted.
func (service *service) Table(_ context.Context, operator string, mp model.Marketplace, query *TableQuery) (TableView, error) {
	wf, err := workflow.For(mp)
	if err != nil {
		return TableView{}, err
	}
	sess := service.sessions.Get(operator)

	view := sess.View(mp)
	if query != nil {
		view = session.View{
			Filter:    table.Filter{Status: query.Status, Query: query.Query},
			SortField: query.SortField,
			SortDir:   query.SortDir,
			Page:      query.Page,
			PageSize:  query.PageSize,
		}
	}
	if view.PageSize <= 0 {
		view.PageSize = service.cfg.DefaultPageSize
	}
	if view.Page <= 0 {
		view.Page = 1
	}

	rows := view.Filter.Apply(sess.Orders(mp), wf.StatusOf)
	if view.SortField != "" {
		rows = table.Sort(rows, view.SortField, view.SortDir)
	}
	page := table.Paginate(rows, view.Page, view.PageSize)
	view.Page = page.Page
	sess.SetView(mp, view)

	sel, err := sess.Selection(mp)
	if err != nil {
		return TableView{}, err
	}
	return TableView{Page: page, View: view, Selection: sel}, nil
}

func (service *service) Toggle(_ context.Context, operator string, mp model.Marketplace, orderID string) (session.Selection, error) {
	sess := service.sessions.Get(operator)
	if !hasOrder(sess.Orders(mp), orderID) {
		return session.Selection{}, ErrOrderNotFound
	}
	if _, err := sess.Toggle(mp, orderID); err != nil {
		return session.Selection{}, err
	}
	return sess.Selection(mp)
}

// SelectAll selects the whole filtered set, not only the visible page.
func (service *service) SelectAll(_ context.Context, operator string, mp model.Marketplace) (session.Selection, error) {
	wf, err := workflow.For(mp)
	if err != nil {
		return session.Selection{}, err
	}
	sess := service.sessions.Get(operator)
	pool := sess.View(mp).Filter.Apply(sess.Orders(mp), wf.StatusOf)
	if err := sess.SelectAll(mp, pool); err != nil {
		return session.Selection{}, err
	}
	return sess.Selection(mp)
}

func (service *service) ClearSelection(_ context.Context, operator string, mp model.Marketplace) (session.Selection, error) {
	sess := service.sessions.Get(operator)
	if err := sess.ClearSelection(mp); err != nil {
		return session.Selection{}, err
	}
	return sess.Selection(mp)
}

func (service *service) Selection(_ context.Context, operator string, mp model.Marketplace) (session.Selection, error) {
	return service.sessions.Get(operator).Selection(mp)
}

// Advance moves the selected orders to their next status as an ordered
// pipeline. Validation failures never reach the backend.
func (service *service) Advance(ctx context.Context, operator string, mp model.Marketplace, req AdvanceRequest) (AdvanceResult, error) {
	wf, err := workflow.For(mp)
	if err != nil {
		return AdvanceResult{}, err
	}
	if req.SupplyID != "" && mp != model.MarketplaceWildberries {
		return AdvanceResult{}, ErrSupplyNotSupported
	}
	sess := service.sessions.Get(operator)
	sel, err := sess.Selection(mp)
	if err != nil {
		return AdvanceResult{}, err
	}
	if !sess.Panels.Start(mp, panel.OperationAdvance) {
		return AdvanceResult{}, ErrBusy
	}

	target := sel.Next
	ids := make([]string, 0, len(sel.Orders))
	for _, o := range sel.Orders {
		ids = append(ids, o.Identity())
	}
	result := AdvanceResult{From: sel.EffectiveStatus, To: target, OrderIDs: ids}
	var updated []model.Order

	steps := []pipeline.Step{
		{
			Name: stepValidate,
			Run: func(context.Context) error {
				return validate(wf, sel)
			},
		},
		{
			Name: stepAddToSupply,
			Skip: func() bool {
				return req.SupplyID == "" || target.Status != workflow.StatusReadyToShipment
			},
			Run: func(ctx context.Context) error {
				return service.client.AddToSupply(ctx, req.SupplyID, ids)
			},
		},
		{
			Name: stepChangeStatus,
			Run: func(ctx context.Context) error {
				return service.client.ChangeStatus(ctx, mp, backendclient.StatusChangeRequest{
					OrderIDs:           ids,
					NewStatus:          target.Status,
					NewSubStatus:       target.SubStatus,
					MarketplaceTokenID: commonToken(sel.Orders),
				})
			},
		},
		{
			Name: stepUpdateOrders,
			Run: func(ctx context.Context) error {
				updated = applyTarget(wf, sel.Orders, target, req.SupplyID)
				sess.UpdateOrders(mp, ids, func(o *model.Order) {
					*o = applyTarget(wf, []model.Order{*o}, target, req.SupplyID)[0]
				})
				service.metrics.StatusChanged(string(mp), target.Key(), len(ids))
				service.journalStatus(ctx, model.StatusChange{
					Operator:    operator,
					Marketplace: mp,
					OrderIDs:    ids,
					FromStatus:  sel.EffectiveStatus,
					ToStatus:    target.Key(),
					ChangedAt:   service.now(),
				})
				return sess.ClearSelection(mp)
			},
		},
		{
			Name: stepReports,
			Skip: func() bool {
				return !service.cfg.ReportsOnAdvance || !wf.ReportsOn(target)
			},
			Run: func(ctx context.Context) error {
				res, err := service.generate(ctx, sess, mp, updated)
				if err != nil {
					return err
				}
				result.Reports = &res
				return nil
			},
		},
	}

	result.Completed, err = pipeline.Run(ctx, steps...)
	message := fmt.Sprintf("%d orders → %s", len(ids), target.Key())
	sess.Panels.Finish(mp, panel.OperationAdvance, err, message, skippedOf(result.Reports))
	if err != nil {
		service.zaplog.Warn("advance failed",
			zap.String("operator", operator),
			zap.String("marketplace", string(mp)),
			zap.Strings("completed", result.Completed),
			zap.Error(err),
		)
		return result, err
	}
	return result, nil
}

func validate(wf workflow.Workflow, sel session.Selection) error {
	if err := workflow.Guard(wf, sel.Orders); err != nil {
		return err
	}
	if workflow.IsTerminal(wf, sel.EffectiveStatus) {
		return &workflow.ValidationError{Err: workflow.ErrTerminalStatus, Statuses: []string{sel.EffectiveStatus}}
	}
	return nil
}

// applyTarget returns copies of orders moved to target. Orders of
// marketplaces with an internal status only change that one.
func applyTarget(wf workflow.Workflow, orders []model.Order, target workflow.Target, supplyID string) []model.Order {
	res := make([]model.Order, len(orders))
	for i, o := range orders {
		if wf.TracksInternal() {
			o.InternalStatus = target.Key()
		} else {
			o.Status = target.Status
			o.SubStatus = target.SubStatus
		}
		if supplyID != "" && target.Status == workflow.StatusReadyToShipment {
			o.SupplyID = supplyID
		}
		res[i] = o
	}
	return res
}

// commonToken returns the marketplace token shared by all orders, or 0.
func commonToken(orders []model.Order) int64 {
	var token int64
	for i, o := range orders {
		if i == 0 {
			token = o.TokenID
			continue
		}
		if o.TokenID != token {
			return 0
		}
	}
	return token
}

func hasOrder(orders []model.Order, id string) bool {
	for _, o := range orders {
		if o.Identity() == id {
			return true
		}
	}
	return false
}

func skippedOf(res *ReportsResult) int {
	if res == nil {
		return 0
	}
	return res.Skipped
}

func (service *service) GenerateReports(ctx context.Context, operator string, mp model.Marketplace) (ReportsResult, error) {
	if _, err := workflow.For(mp); err != nil {
		return ReportsResult{}, err
	}
	sess := service.sessions.Get(operator)
	sel, err := sess.Selection(mp)
	if err != nil {
		return ReportsResult{}, err
	}
	if len(sel.Orders) == 0 {
		return ReportsResult{}, &workflow.ValidationError{Err: workflow.ErrEmptySelection}
	}
	return service.generate(ctx, sess, mp, sel.Orders)
}

func (service *service) generate(ctx context.Context, sess *session.Session, mp model.Marketplace, orders []model.Order) (ReportsResult, error) {
	if !sess.Panels.Start(mp, panel.OperationReports) {
		return ReportsResult{}, ErrBusy
	}
	set, err := service.reports.Generate(ctx, mp, orders)
	if errors.Is(err, report.ErrEmptySelection) {
		err = &workflow.ValidationError{Err: workflow.ErrEmptySelection}
	}
	if err != nil {
		sess.Panels.Fail(mp, panel.OperationReports, err)
		return ReportsResult{}, err
	}

	res := ReportsResult{Warnings: set.Warnings, Skipped: len(set.Skipped)}
	for _, a := range set.Artifacts {
		res.Artifacts = append(res.Artifacts, service.artifacts.put(sess.Operator, a))
		service.journalExport(ctx, model.ReportExport{
			Operator:    sess.Operator,
			Marketplace: mp,
			Kind:        string(a.Kind),
			Filename:    a.Filename,
			Items:       a.Items,
			Skipped:     a.Skipped,
			ExportedAt:  service.now(),
		})
	}
	sess.Panels.Succeed(mp, panel.OperationReports, fmt.Sprintf("%d files", len(res.Artifacts)), res.Skipped)
	return res, nil
}

// Artifact hands out a generated file once.
func (service *service) Artifact(_ context.Context, operator string, id string) (report.Artifact, error) {
	a, ok := service.artifacts.take(operator, id)
	if !ok {
		return report.Artifact{}, ErrArtifactNotFound
	}
	return a, nil
}

func (service *service) Panels(_ context.Context, operator string) []panel.Panel {
	return service.sessions.Get(operator).Panels.Snapshot()
}

func (service *service) History(ctx context.Context, operator string, limit int) (History, error) {
	changes, err := service.store.StatusChangeGet(ctx, operator, limit)
	if err != nil {
		return History{}, err
	}
	exports, err := service.store.ExportGet(ctx, operator, limit)
	if err != nil {
		return History{}, err
	}
	return History{StatusChanges: changes, Exports: exports}, nil
}

func (service *service) Sweep() {
	artifacts := service.artifacts.sweep()
	sessions := service.sessions.Evict(service.cfg.SessionIdle)
	if artifacts > 0 || sessions > 0 {
		service.zaplog.Debug("swept",
			zap.Int("artifacts", artifacts),
			zap.Int("sessions", sessions),
		)
	}
}

// Журнал не должен ронять уже выполненную операцию

func (service *service) journalStatus(ctx context.Context, change model.StatusChange) {
	if err := service.store.StatusChangePost(ctx, change); err != nil {
		service.zaplog.Error("journal status change", zap.Error(err))
	}
}

func (service *service) journalExport(ctx context.Context, export model.ReportExport) {
	if err := service.store.ExportPost(ctx, export); err != nil {
		service.zaplog.Error("journal export", zap.Error(err))
	}
}
