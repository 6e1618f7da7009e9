package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pratik1719/landinglens-segmentation-CV/utils"
)

// PredictionCountHeader 下载叠加图时返回的实例数量
const PredictionCountHeader = "X-Prediction-Count"

// CORS 允许浏览器前端跨域调用，并暴露请求ID与下载文件名
func CORS() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", utils.RequestIDHeader}
	cfg.ExposeHeaders = []string{utils.RequestIDHeader, "Content-Disposition", PredictionCountHeader}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}
