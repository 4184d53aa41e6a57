package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/optsim/execution"
	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/scanner"
	"github.com/rustyeddy/optsim/sim"
)

type Handler struct {
	sim  *sim.Engine
	opts Options
}

func NewHandler(e *sim.Engine, opts Options) *Handler {
	return &Handler{sim: e, opts: opts}
}

// StartRequest is the body of POST /api/start. Omitted fields take the
// server defaults.
type StartRequest struct {
	Symbol      string  `json:"symbol"`
	Date        string  `json:"date"`
	InitialCash float64 `json:"initial_cash"`
	FillModel   string  `json:"fill_model"`
}

// DefaultStepMinutes is used when a step request names no duration.
const DefaultStepMinutes = 15

type StepRequest struct {
	Minutes int `json:"minutes"`
}

// statusFor maps a failure kind to an HTTP status.
func statusFor(err error) int {
	switch market.KindOf(err) {
	case market.KindInvalidContractSymbol, market.KindInvalidOrder, market.KindInvalidInput:
		return http.StatusBadRequest
	case market.KindUnknownContract, market.KindNoDataForSymbol:
		return http.StatusNotFound
	case market.KindInvalidState:
		return http.StatusConflict
	case market.KindEndOfData:
		return http.StatusGone
	case market.KindLimitNotMarketable, market.KindNoLiquidity, market.KindInsufficientFunds, market.KindConvergence:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), sim.ErrorRecord(err))
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"code": 0, "data": data})
}

func badRequest(c *gin.Context, format string, args ...any) {
	fail(c, market.Errorf(market.KindInvalidInput, format, args...))
}

// persist saves the session after a mutation. A failure is logged; the
// mutation itself already happened.
func (h *Handler) persist() {
	if h.opts.Persist == nil {
		return
	}
	st, err := h.sim.Snapshot()
	if err != nil {
		return
	}
	if err := h.opts.Persist(st); err != nil {
		h.opts.Logger.Printf("[API] save session: %v", err)
	}
}

func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "bad start request: %v", err)
			return
		}
	}

	d := h.opts.Defaults
	if req.Symbol == "" {
		req.Symbol = d.Symbol
	}
	if req.InitialCash == 0 {
		req.InitialCash = d.InitialCash
	}
	if req.FillModel == "" {
		req.FillModel = d.FillModel
	}
	date := d.Date
	if req.Date != "" {
		t, err := time.Parse(market.DateLayout, req.Date)
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD, got %q", req.Date)
			return
		}
		date = t
	}

	st, err := h.sim.Start(c.Request.Context(), req.Symbol, date, req.InitialCash, execution.FillModel(req.FillModel))
	if err != nil {
		fail(c, err)
		return
	}
	h.persist()
	ok(c, http.StatusCreated, st.Record())
}

func (h *Handler) Status(c *gin.Context) {
	st, err := h.sim.Status()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, st.Record())
}

func (h *Handler) chain(c *gin.Context) (sim.Chain, bool) {
	var expiry time.Time
	if s := c.Query("expiry"); s != "" {
		t, err := time.Parse(market.DateLayout, s)
		if err != nil {
			badRequest(c, "expiry must be YYYY-MM-DD, got %q", s)
			return sim.Chain{}, false
		}
		expiry = t
	}
	ch, err := h.sim.Chain(expiry)
	if err != nil {
		fail(c, err)
		return sim.Chain{}, false
	}
	return ch, true
}

func (h *Handler) Chain(c *gin.Context) {
	ch, good := h.chain(c)
	if !good {
		return
	}
	ok(c, http.StatusOK, ch.Record())
}

func (h *Handler) SubmitOrder(c *gin.Context) {
	var req sim.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad order request: %v", err)
		return
	}
	tr, err := h.sim.SubmitOrder(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	h.persist()
	ok(c, http.StatusCreated, tr.Record())
}

func (h *Handler) Step(c *gin.Context) {
	req := StepRequest{Minutes: DefaultStepMinutes}
	if s := c.Query("minutes"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			badRequest(c, "minutes must be an integer, got %q", s)
			return
		}
		req.Minutes = n
	} else if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "bad step request: %v", err)
			return
		}
	}

	st, err := h.sim.Step(c.Request.Context(), req.Minutes)
	if err != nil {
		fail(c, err)
		return
	}
	h.persist()
	ok(c, http.StatusOK, st.Record())
}

func (h *Handler) Positions(c *gin.Context) {
	ps, err := h.sim.Positions()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":  0,
		"count": len(ps),
		"data":  sim.Records(ps, sim.PositionRecord),
	})
}

func (h *Handler) Account(c *gin.Context) {
	a, err := h.sim.Account()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, a.Record())
}

func (h *Handler) History(c *gin.Context) {
	hist, err := h.sim.History()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":        0,
		"count":       len(hist),
		"data":        sim.Records(hist, sim.Trade.Record),
		"settlements": sim.Records(h.sim.Settlements(), sim.SettlementRecord),
	})
}

func (h *Handler) Reset(c *gin.Context) {
	h.sim.Reset()
	ok(c, http.StatusOK, gin.H{"state": h.sim.State()})
}

func (h *Handler) Scan(c *gin.Context) {
	kind, err := scanner.ParseKind(strings.TrimPrefix(c.Param("kind"), "/"))
	if err != nil {
		fail(c, err)
		return
	}
	var opts scanner.Options
	for name, dst := range map[string]*float64{
		"percentile":      &opts.Percentile,
		"volume_oi_ratio": &opts.VolumeOIRatio,
		"range_pct":       &opts.RangePct,
		"min_theta":       &opts.MinTheta,
	} {
		if s := c.Query(name); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				badRequest(c, "%s must be a number, got %q", name, s)
				return
			}
			*dst = v
		}
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			badRequest(c, "limit must be an integer, got %q", s)
			return
		}
		opts.Limit = n
	}

	ch, good := h.chain(c)
	if !good {
		return
	}
	rs, err := scanner.Run(kind, ch, opts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":  0,
		"scan":  kind,
		"count": len(rs),
		"data":  sim.Records(rs, scanner.Result.Record),
	})
}
