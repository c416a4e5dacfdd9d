package server

import (
	"net/http"

	"marketchart/internal/apperrors"
	"marketchart/internal/market"

	"github.com/gin-gonic/gin"
)

type valuesQuery struct {
	Kind  string `form:"kind" binding:"required,oneof=ohlc simple"`
	Limit *int   `form:"limit" binding:"omitempty,min=0"`
}

// values serves GET /values/:ticker?kind=ohlc|simple[&limit=n], the stored
// values most recent first. limit defaults to market.DefaultLimit; 0 returns
// every value.
func (s *Server) values(c *gin.Context) {
	var q valuesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		if c.Query("kind") == "" || !market.Kind(c.Query("kind")).IsValid() {
			_ = c.Error(apperrors.Wrap(apperrors.ErrInvalidKind, err))
		} else {
			_ = c.Error(apperrors.Wrap(apperrors.ErrInvalidLimit, err))
		}
		return
	}

	limit := market.DefaultLimit
	if q.Limit != nil {
		limit = *q.Limit
		if limit == 0 {
			limit = -1
		}
	}

	values, err := s.storage.GetValues(c.Request.Context(), c.Param("ticker"), market.Kind(q.Kind), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if values == nil {
		values = []market.StockValue{}
	}
	c.JSON(http.StatusOK, values)
}

// companyInfos serves GET /company_infos[?tickers=A&tickers=B], keyed by
// symbol. Without tickers every known company is returned.
func (s *Server) companyInfos(c *gin.Context) {
	ctx := c.Request.Context()
	tickers := c.QueryArray("tickers")
	if len(tickers) == 0 {
		all, err := s.storage.GetAllTickers(ctx)
		if err != nil {
			_ = c.Error(err)
			return
		}
		tickers = all
	}

	infos, err := s.storage.GetCompanyInfos(ctx, tickers)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if infos == nil {
		infos = map[string]market.CompanyInfo{}
	}
	c.JSON(http.StatusOK, infos)
}

func (s *Server) companyInfo(c *gin.Context) {
	ticker := c.Param("ticker")
	infos, err := s.storage.GetCompanyInfos(c.Request.Context(), []string{ticker})
	if err != nil {
		_ = c.Error(err)
		return
	}
	info, ok := infos[ticker]
	if !ok {
		_ = c.Error(apperrors.WithMessage(apperrors.ErrNotFound, "No company info for "+ticker))
		return
	}
	c.JSON(http.StatusOK, info)
}
