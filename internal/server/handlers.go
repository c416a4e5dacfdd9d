package server

import (
	"encoding/json"
	"net/http"
	"slices"

	"marketchart/internal/apperrors"
	"marketchart/internal/chart"
	"marketchart/internal/market"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type chartQuery struct {
	Kind string `form:"kind" binding:"omitempty,oneof=ohlc simple"`
}

// chartJSON serves GET /json/:symbol?kind=ohlc|simple.
func (s *Server) chartJSON(c *gin.Context) {
	var q chartQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(apperrors.Wrap(apperrors.ErrInvalidKind, err))
		return
	}
	kind := market.KindOHLC
	if q.Kind != "" {
		kind = market.Kind(q.Kind)
	}

	payload, err := s.charts.Payload(c.Request.Context(), c.Param("symbol"), kind)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

func (s *Server) tickers(c *gin.Context) {
	tickers, err := s.charts.Tickers(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tickers)
}

func (s *Server) health(c *gin.Context) {
	if p, ok := s.storage.(pinger); ok {
		if err := p.Ping(c.Request.Context()); err != nil {
			_ = c.Error(apperrors.Wrap(apperrors.ErrUnavailable, err))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "live_sessions": s.live.Active()})
}

type pageData struct {
	Title   string
	Tickers string // JSON array, empty for the element defaults
	Kinds   string
}

// page serves the chart element. /chart/:ticker selects ticker first.
func (s *Server) page(c *gin.Context) {
	tickers, err := s.pageTickers(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	title := "Stock charts"
	if t := c.Param("ticker"); t != "" {
		title = t
		tickers = append([]string{t}, slices.DeleteFunc(tickers, func(x string) bool { return x == t })...)
	}

	data := pageData{Title: title}
	if len(tickers) > 0 {
		raw, _ := json.Marshal(tickers)
		data.Tickers = string(raw)
	}
	if len(s.cfg.Kinds) > 0 {
		raw, _ := json.Marshal(s.cfg.Kinds)
		data.Kinds = string(raw)
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(c.Writer, data); err != nil {
		s.logger.Error("failed to render page", zap.Error(err))
	}
}

// pageTickers lists the configured tickers, or the stored ones, or nothing
// when the element defaults apply.
func (s *Server) pageTickers(c *gin.Context) ([]string, error) {
	if len(s.cfg.Tickers) > 0 {
		return slices.Clone(s.cfg.Tickers), nil
	}
	tickers, err := s.charts.Tickers(c.Request.Context())
	if err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return slices.Clone(chart.DefaultSymbols), nil
	}
	return tickers, nil
}
