package http

import (
	"context"
	"errors"
	"fmt"
	gohttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/quote-engine/internal/config"
	"github.com/hxuan190/quote-engine/internal/http/httputil"
	"github.com/hxuan190/quote-engine/internal/http/middlewares"
	"github.com/hxuan190/quote-engine/internal/services/market"
	"github.com/hxuan190/quote-engine/internal/services/quoter"
)

const (
	API_VERSION  = "v1"
	HTTP_SERVICE = "http-service"
)

type HTTPService struct {
	container.BaseDIInstance

	quoterSvc *quoter.Service
	marketSvc *market.Service
	server    *gohttp.Server
	conf      *config.GeneralConfig
}

func (svc *HTTPService) ID() string {
	return HTTP_SERVICE
}

func (svc *HTTPService) Start() error {
	svc.server = &gohttp.Server{
		Addr:    svc.conf.HTTPHost + ":" + svc.conf.HTTPPort,
		Handler: NewRouter(svc.conf, svc.quoterSvc, svc.marketSvc),
	}
	log.Info().Str("host", svc.conf.HTTPHost).Str("port", svc.conf.HTTPPort).Msg("http server started")

	if err := svc.server.ListenAndServe(); err != nil && err != gohttp.ErrServerClosed {
		return err
	}

	return nil
}

func (svc *HTTPService) Configure(c container.IContainer) error {
	svc.conf = c.GetConfig(config.GENERAL_CONFIG_KEY).(*config.GeneralConfig)
	if svc.conf == nil {
		return errors.New("invalid server config")
	}

	svc.quoterSvc = c.Instance(quoter.QUOTER_SERVICE).(*quoter.Service)
	svc.marketSvc = c.Instance(market.ServiceName).(*market.Service)
	return nil
}

func (svc *HTTPService) Stop() error {
	if svc.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
		return err
	}
	log.Info().Msg("http server stopped gracefully")
	return nil
}

// NewRouter wires middlewares and every handler onto a gin engine.
func NewRouter(conf *config.GeneralConfig, quotes QuoteService, pools PoolService) *gin.Engine {
	if conf.Env == config.ProdEnv {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	corsConf.AddAllowHeaders(middlewares.AdminTokenHeader)
	r.Use(cors.New(corsConf))

	r.Use(middlewares.MetricsMiddleware())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(gohttp.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("api")
	pub := api.Group(API_VERSION)
	if conf.RateLimitPerSecond > 0 {
		pub.Use(middlewares.NewRateLimiter(conf.RateLimitPerSecond, 2*conf.RateLimitPerSecond).RateLimitMiddleware())
	}
	priv := api.Group(API_VERSION)
	admin := api.Group(fmt.Sprintf("%s/admin", API_VERSION))
	admin.Use(middlewares.AdminAuth(conf.AdminToken))

	setupHandlers(pub, priv, admin, []httputil.IHttpHandler{
		NewQuoteHandler(quotes),
		NewPoolHandler(pools),
	})
	return r
}

func setupHandlers(
	rootPub *gin.RouterGroup,
	rootPriv *gin.RouterGroup,
	rootAdmin *gin.RouterGroup,
	handlers []httputil.IHttpHandler,
) {
	for _, h := range handlers {
		pub := rootPub.Group(h.Root())
		priv := rootPriv.Group(h.Root())
		admin := rootAdmin.Group(h.Root())
		h.SetRoutes(pub, priv, admin)
	}
}
