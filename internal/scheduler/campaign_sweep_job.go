package scheduler

import (
	"log"
	"time"

	"github.com/blues/fundlock/internal/config"
	"github.com/blues/fundlock/internal/logic"
	"github.com/go-co-op/gocron/v2"
)

// CampaignSweepJob 过期活动回收任务。两个窗口都过期后仍有托管余额
// 的活动，把剩余资金划到平台兜底地址。
type CampaignSweepJob struct {
	campaignLogic *logic.CampaignLogic
	config        *config.Config
}

// NewCampaignSweepJob 创建过期活动回收任务
func NewCampaignSweepJob(campaignLogic *logic.CampaignLogic, cfg *config.Config) *CampaignSweepJob {
	return &CampaignSweepJob{
		campaignLogic: campaignLogic,
		config:        cfg,
	}
}

// GetName 获取任务名称
func (j *CampaignSweepJob) GetName() string {
	return "campaign_sweeper"
}

// GetSchedule 获取调度配置
func (j *CampaignSweepJob) GetSchedule() gocron.JobDefinition {
	// 回收没有状态刷新那么急迫，间隔放大十倍
	return gocron.DurationJob(time.Duration(j.config.Scheduler.Interval) * 10 * time.Second)
}

// Execute 执行任务
func (j *CampaignSweepJob) Execute() {
	log.Println("Starting campaign sweep task")
	j.campaignLogic.SweepExpired()
}
