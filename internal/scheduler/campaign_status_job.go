package scheduler

import (
	"log"
	"time"

	"github.com/blues/fundlock/internal/config"
	"github.com/blues/fundlock/internal/logic"
	"github.com/go-co-op/gocron/v2"
)

// CampaignStatusJob 活动状态镜像刷新任务。派生状态随时间自行迁移，
// 数据库里的镜像列需要定期对齐以支撑按状态过滤的查询。
type CampaignStatusJob struct {
	campaignLogic *logic.CampaignLogic
	config        *config.Config
}

// NewCampaignStatusJob 创建活动状态刷新任务
func NewCampaignStatusJob(campaignLogic *logic.CampaignLogic, cfg *config.Config) *CampaignStatusJob {
	return &CampaignStatusJob{
		campaignLogic: campaignLogic,
		config:        cfg,
	}
}

// GetName 获取任务名称
func (j *CampaignStatusJob) GetName() string {
	return "campaign_status_updater"
}

// GetSchedule 获取调度配置
func (j *CampaignStatusJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Scheduler.Interval) * time.Second)
}

// Execute 执行任务
func (j *CampaignStatusJob) Execute() {
	log.Println("Starting campaign status update task")
	j.campaignLogic.SyncStatuses()
}
