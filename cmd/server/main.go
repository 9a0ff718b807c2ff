package main

import (
	"log"

	"github.com/blues/fundlock/internal/config"
	"github.com/blues/fundlock/internal/database"
	"github.com/blues/fundlock/internal/ethereum"
	"github.com/blues/fundlock/internal/logger"
	"github.com/blues/fundlock/internal/logic"
	"github.com/blues/fundlock/internal/notifier"
	"github.com/blues/fundlock/internal/router"
	"github.com/blues/fundlock/internal/scheduler"
	"github.com/blues/fundlock/internal/treasury"
	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	level := logger.ParseLogLevel(cfg.Log.Level)
	if cfg.Log.Output == "file" {
		if l, err := logger.NewWithFileRotation(level, cfg.Log.File); err == nil {
			logger.SetDefaultLogger(l)
		}
	} else if l, err := logger.New(level); err == nil {
		logger.SetDefaultLogger(l)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化资金总账
	t := treasury.New(db)

	// 初始化结算链客户端（未启用时委托结算只在库内记账）
	var forwarder treasury.SettlementForwarder
	if cfg.Chain.Enabled {
		client, err := ethereum.Init(cfg.Chain)
		if err != nil {
			log.Fatalf("Failed to initialize settlement client: %v", err)
		}
		forwarder = client
	}

	// 初始化事件分发器
	dispatcher, err := notifier.New(db, cfg.Platform.EventWorkers)
	if err != nil {
		log.Fatalf("Failed to initialize event dispatcher: %v", err)
	}
	defer dispatcher.Close()

	// 初始化活动业务逻辑并重建状态机
	campaignLogic := logic.NewCampaignLogic(db, t, dispatcher, forwarder, cfg.Platform)
	if err := campaignLogic.LoadCampaigns(); err != nil {
		log.Fatalf("Failed to load campaigns: %v", err)
	}

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(db, campaignLogic, t)

	// 启动定时任务
	manager := scheduler.Start(campaignLogic, cfg)
	defer manager.Stop()

	// 启动服务器
	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
