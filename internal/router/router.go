package router

import (
	"github.com/blues/fundlock/internal/handler"
	"github.com/blues/fundlock/internal/logic"
	"github.com/blues/fundlock/internal/treasury"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(db *gorm.DB, campaignLogic *logic.CampaignLogic, t *treasury.Treasury) *gin.Engine {
	r := gin.Default()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "fundlock-service",
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	{
		// 活动相关路由
		campaignHandler := handler.NewCampaignHandler(campaignLogic)
		recordHandler := handler.NewRecordHandler(db)
		campaigns := v1.Group("/campaigns")
		{
			campaigns.POST("", campaignHandler.CreateCampaign)
			campaigns.GET("", campaignHandler.GetCampaigns)
			campaigns.GET("/:id", campaignHandler.GetCampaign)
			campaigns.GET("/:id/status", campaignHandler.GetCampaignStatus)
			campaigns.GET("/:id/nonce", campaignHandler.GetNonce)

			// 资金动作
			campaigns.POST("/:id/contribute", campaignHandler.Contribute)
			campaigns.POST("/:id/refund", campaignHandler.Refund)
			campaigns.POST("/:id/claim", campaignHandler.Claim)
			campaigns.POST("/:id/cancel", campaignHandler.Cancel)
			campaigns.POST("/:id/swipe", campaignHandler.Swipe)
			campaigns.GET("/:id/refund/preview", campaignHandler.PreviewRefund)
			campaigns.GET("/:id/claim/preview", campaignHandler.PreviewClaim)

			// 委托授权路径
			campaigns.POST("/:id/delegated/refund", campaignHandler.DelegatedRefund)
			campaigns.POST("/:id/delegated/claim", campaignHandler.DelegatedClaim)

			// 流水与事件查询
			campaigns.GET("/:id/contributions", recordHandler.GetContributions)
			campaigns.GET("/:id/contribute-records", recordHandler.GetContributeRecords)
			campaigns.GET("/:id/refund-records", recordHandler.GetRefundRecords)
			campaigns.GET("/:id/settlement-records", recordHandler.GetSettlementRecords)
			campaigns.GET("/:id/events", recordHandler.GetEvents)
		}

		// 资金账户路由
		accountHandler := handler.NewAccountHandler(t)
		accounts := v1.Group("/accounts")
		{
			accounts.GET("/:address/balance", accountHandler.GetBalance)
			accounts.POST("/:address/credit", accountHandler.Credit)
		}
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
