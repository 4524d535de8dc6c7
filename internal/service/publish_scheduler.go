package service

import (
	"context"
	"sage_edu_backend/pkg/logger"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PublishScheduler 每分钟发布到期的定时课程
type PublishScheduler struct {
	Courses *CourseService
	cron    *cron.Cron
}

func NewPublishScheduler(courses *CourseService) *PublishScheduler {
	return &PublishScheduler{
		Courses: courses,
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
	}
}

func (p *PublishScheduler) Start() error {
	if _, err := p.cron.AddFunc("@every 1m", p.RunOnce); err != nil {
		return err
	}
	p.cron.Start()
	logger.Log.Info("Course publish scheduler started")
	return nil
}

func (p *PublishScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := p.Courses.PublishDue(ctx, time.Now())
	if err != nil {
		logger.Log.Error("Scheduled publish failed", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Log.Info("Scheduled courses published", zap.Int64("count", n))
	}
}

// Stop 等待正在执行的任务结束
func (p *PublishScheduler) Stop() {
	<-p.cron.Stop().Done()
}
