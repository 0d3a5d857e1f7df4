package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/codenerix/payments/internal/config"
	"github.com/codenerix/payments/internal/http/middleware"
	"github.com/codenerix/payments/internal/modules/currencies"
)

// PlatformHandler exposes the configured platforms and the currency reference
// table so merchant frontends can build their payment forms.
type PlatformHandler struct {
	Cfg        *config.Config
	Currencies *currencies.Repo
}

func NewPlatformHandler(cfg *config.Config, repo *currencies.Repo) *PlatformHandler {
	return &PlatformHandler{Cfg: cfg, Currencies: repo}
}

type platformInfo struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Real     bool   `json:"real"`
}

// GET /payments/platforms
func (h *PlatformHandler) List(c *gin.Context) {
	platforms := make([]platformInfo, 0, len(h.Cfg.Platforms))
	for key, p := range h.Cfg.Platforms {
		real := h.Cfg.Meta.Real
		if p.Real != nil {
			real = *p.Real
		}
		name := p.Name
		if name == "" {
			name = key
		}
		platforms = append(platforms, platformInfo{
			Key:      key,
			Name:     name,
			Protocol: p.Protocol,
			Real:     real,
		})
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i].Key < platforms[j].Key })

	c.JSON(http.StatusOK, gin.H{"platforms": platforms})
}

// GET /payments/currencies
func (h *PlatformHandler) ListCurrencies(c *gin.Context) {
	list, err := h.Currencies.List(c.Request.Context())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currencies": list})
}
