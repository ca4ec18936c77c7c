package router

import (
	"gdp-bench/internal/handler"
	"gdp-bench/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRouter(svc *service.ServiceContext) *gin.Engine {
	r := gin.Default()

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// 初始化handlers
	experimentHandler := handler.NewExperimentHandler(svc.Store, svc.Config.Experiment)
	batchHandler := handler.NewBatchHandler(svc.Runner, svc.Archives, svc.Config.Experiment.ArchiveDir)

	// API路由
	api := r.Group("/api")
	{
		// 结果分析
		api.GET("/results", experimentHandler.ListResults)
		api.GET("/outcomes", experimentHandler.GetOutcomes)
		api.GET("/profiles", experimentHandler.GetProfiles)
		api.GET("/comparisons", experimentHandler.CompareStrategies)
		api.GET("/strategies/stats", experimentHandler.GetStrategyStats)

		reports := api.Group("/reports")
		{
			reports.GET("/outcomes", experimentHandler.GetOutcomeReport)
			reports.GET("/aggregate", experimentHandler.GetAggregateReport)
		}

		// 批次相关
		batches := api.Group("/batches")
		{
			batches.POST("/generate", batchHandler.GenerateBatch)
			batches.POST("/run", batchHandler.RunBatch)
		}

		api.POST("/archives/process", batchHandler.ProcessArchives)
	}

	return r
}
