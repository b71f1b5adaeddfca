package api

import (
	"github.com/fyerfyer/doc2pdf/api/handler"
	"github.com/fyerfyer/doc2pdf/api/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(convHandler *handler.ConversionHandler) *gin.Engine {
	router := gin.New()

	// 追踪ID需要在日志和错误处理之前设置
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(Cors())

	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.ResponseLogger())
	}

	api := router.Group("/api")
	{
		convGroup := api.Group("/conversions")
		{
			// 提交转换 - POST /api/conversions
			convGroup.POST("", convHandler.CreateConversion)

			// 获取转换列表 - GET /api/conversions
			convGroup.GET("", convHandler.ListConversions)

			// 获取转换信息 - GET /api/conversions/:id
			convGroup.GET("/:id", convHandler.GetConversion)

			// 下载PDF - GET /api/conversions/:id/download
			convGroup.GET("/:id/download", convHandler.DownloadConversion)

			// 重新转换 - POST /api/conversions/:id/retry
			convGroup.POST("/:id/retry", convHandler.RetryConversion)

			// 删除转换 - DELETE /api/conversions/:id
			convGroup.DELETE("/:id", convHandler.DeleteConversion)
		}

		api.GET("/health", convHandler.Health)
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Trace-ID, Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
