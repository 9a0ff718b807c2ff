package scheduler

import (
	"log"

	"github.com/blues/fundlock/internal/config"
	"github.com/blues/fundlock/internal/logic"
	"github.com/go-co-op/gocron/v2"
)

// Manager 任务管理器
type Manager struct {
	scheduler     gocron.Scheduler
	campaignLogic *logic.CampaignLogic
	config        *config.Config
}

// NewManager 创建新的任务管理器
func NewManager(campaignLogic *logic.CampaignLogic, cfg *config.Config) *Manager {
	s, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	return &Manager{
		scheduler:     s,
		campaignLogic: campaignLogic,
		config:        cfg,
	}
}

// Start 启动任务管理器
func Start(campaignLogic *logic.CampaignLogic, cfg *config.Config) *Manager {
	manager := NewManager(campaignLogic, cfg)

	// 注册所有任务
	manager.RegisterJobs()

	// 启动调度器
	manager.scheduler.Start()

	log.Println("Task manager started successfully")
	return manager
}

// Job 定时任务约定
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() {
	m.register(NewCampaignStatusJob(m.campaignLogic, m.config))
	m.register(NewCampaignSweepJob(m.campaignLogic, m.config))
}

// register 注册单个任务
func (m *Manager) register(job Job) {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		log.Printf("Failed to shutdown scheduler: %v", err)
	}
	log.Println("Task manager stopped")
}
