package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/pratik1719/landinglens-segmentation-CV/config"
	"github.com/pratik1719/landinglens-segmentation-CV/handler"
	"github.com/pratik1719/landinglens-segmentation-CV/middleware"
	"github.com/pratik1719/landinglens-segmentation-CV/service"
	"github.com/pratik1719/landinglens-segmentation-CV/utils"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg := config.New()

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting LandingLens segmentation server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch))

	if !cfg.LandingAI.HasCredentials() {
		utils.Logger.Warn("landingai credentials missing, segmentation requests will be rejected",
			zap.Bool("api_key_found", cfg.LandingAI.APIKey != ""),
			zap.Bool("endpoint_id_found", cfg.LandingAI.EndpointID != ""))
	}

	colors, err := service.NewColorMap(cfg.Overlay.Colors, cfg.Overlay.DefaultColor)
	if err != nil {
		utils.Logger.Fatal("invalid overlay colors", zap.Error(err))
	}

	segmentService := service.NewSegmentationService(cfg, colors, nil)
	segmentHandler := handler.NewSegmentHandler(cfg, segmentService)

	r := NewRouter(cfg, segmentHandler)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		utils.Logger.Fatal("failed to start server", zap.Error(err))
	}
}

// NewRouter 注册中间件与路由
func NewRouter(cfg *config.Config, segmentHandler *handler.SegmentHandler) *gin.Engine {
	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	// 静态页面
	r.Static("/static", "./static")
	r.StaticFile("/", "./static/index.html")

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	// API路由
	api := r.Group("/api/v1")
	{
		api.GET("/credentials", segmentHandler.Credentials)
		api.POST("/segment", segmentHandler.Segment)
		api.POST("/segment/overlay.png", segmentHandler.Download)
	}

	return r
}
