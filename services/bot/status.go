package bot

import (
	"fmt"
	"net/http"
	"time"

	"fanfan-translator/pkg/cache"

	"github.com/gin-gonic/gin"
)

type Capacity interface {
	InFlight() int
	Capacity() int
}

type CacheReporter interface {
	CacheStats() cache.Stats
}

type cacheSummary struct {
	Size   int    `json:"size"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

type Status struct {
	Status              string                  `json:"status"`
	Uptime              string                  `json:"uptime"`
	UptimeSeconds       int64                   `json:"uptime_seconds"`
	TranslationCapacity int                     `json:"translation_capacity"`
	TranslationInFlight int                     `json:"translation_in_flight"`
	Cache               map[string]cacheSummary `json:"cache"`
}

type StatusHandler struct {
	handler *Handler
	pool    Capacity
	caches  map[string]CacheReporter
}

func NewStatusHandler(h *Handler, pool Capacity, caches map[string]CacheReporter) *StatusHandler {
	return &StatusHandler{handler: h, pool: pool, caches: caches}
}

func (s *StatusHandler) Snapshot() Status {
	up := s.handler.Uptime()
	out := Status{
		Status:        "ok",
		Uptime:        fmt.Sprintf("%dh %dm %ds", int(up.Hours()), int(up.Minutes())%60, int(up.Seconds())%60),
		UptimeSeconds: int64(up / time.Second),
		Cache:         make(map[string]cacheSummary, len(s.caches)),
	}
	if s.pool != nil {
		out.TranslationCapacity = s.pool.Capacity()
		out.TranslationInFlight = s.pool.InFlight()
	}
	for name, c := range s.caches {
		st := c.CacheStats()
		out.Cache[name] = cacheSummary{Size: st.Size, Hits: st.Hits, Misses: st.Misses}
	}
	return out
}

func (s *StatusHandler) Serve(c *gin.Context) {
	c.JSON(http.StatusOK, s.Snapshot())
}
