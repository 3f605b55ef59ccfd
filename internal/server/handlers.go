package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/walletd/marketsync/internal/syncer"
)

// MarketHandler serves the published read surface.
type MarketHandler struct {
	price    *syncer.PriceSync
	rates    *syncer.RatesSync
	history  *syncer.HistorySync
	notifier *syncer.Notifier
}

func NewMarketHandler(price *syncer.PriceSync, rates *syncer.RatesSync, history *syncer.HistorySync, notifier *syncer.Notifier) *MarketHandler {
	return &MarketHandler{
		price:    price,
		rates:    rates,
		history:  history,
		notifier: notifier,
	}
}

func (h *MarketHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *MarketHandler) GetPrice(c *gin.Context) {
	st := h.price.State()

	resp := gin.H{
		"price":        nil,
		"change_24h":   nil,
		"loading":      st.Loading,
		"error":        nullableString(st.Err),
		"last_updated": nullableTime(st.LastUpdated),
	}
	if st.Snapshot != nil {
		resp["price"] = st.Snapshot.Price
		resp["change_24h"] = st.Snapshot.Change24h
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MarketHandler) GetRates(c *gin.Context) {
	st := h.rates.State()

	c.JSON(http.StatusOK, gin.H{
		"rates":        st.Rates,
		"loading":      st.Loading,
		"error":        nullableString(st.Err),
		"last_updated": nullableTime(st.LastUpdated),
	})
}

// RefreshRates is the manual trigger: it bypasses the freshness gate
// but still honors the active flag and in-flight guard.
func (h *MarketHandler) RefreshRates(c *gin.Context) {
	h.rates.ForceRefresh(c.Request.Context(), h.rates.Active())

	st := h.rates.State()
	c.JSON(http.StatusOK, gin.H{
		"rates":        st.Rates,
		"error":        nullableString(st.Err),
		"last_updated": nullableTime(st.LastUpdated),
	})
}

func (h *MarketHandler) GetHistory(c *gin.Context) {
	st := h.history.State()

	c.JSON(http.StatusOK, gin.H{
		"series":       st.Series,
		"loading":      st.Loading,
		"error":        nullableString(st.Err),
		"last_updated": nullableTime(st.LastUpdated),
	})
}

func (h *MarketHandler) GetHistoryForCurrency(c *gin.Context) {
	code := c.Param("currency")

	series := h.history.HistoryFor(code)
	if series == nil {
		c.JSON(http.StatusOK, gin.H{"currency": code, "series": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": code, "series": series})
}

// PostVisibility maps the host's foreground/background transition onto
// the visibility event the schedulers consume.
func (h *MarketHandler) PostVisibility(c *gin.Context) {
	var body struct {
		State string `json:"state" binding:"required,oneof=foreground background"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev := syncer.Background
	if body.State == "foreground" {
		ev = syncer.Foreground
	}
	h.notifier.Notify(ev)

	c.JSON(http.StatusOK, gin.H{"state": body.State})
}

// PostScreen records whether the rate-sensitive (home) view is current.
func (h *MarketHandler) PostScreen(c *gin.Context) {
	var body struct {
		Home *bool `json:"home" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.rates.SetActive(*body.Home)

	c.JSON(http.StatusOK, gin.H{"home": *body.Home})
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
