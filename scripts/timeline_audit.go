// 时间线位置冲突审计脚本
//
// 并发编辑或拖放时没有冲突控制，同一课程可能出现多个模块共享同一个 timeline_position。
// 编辑器会按创建时间把它们叠放在同一个槽位里，此脚本只负责列出这些课程，不做修改。
//
// 用法: go run scripts/timeline_audit.go [-config configs] [-report collisions.yaml]

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sage_edu_backend/internal/config"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/pkg/database"
	"sage_edu_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type auditReport struct {
	GeneratedAt time.Time                      `yaml:"generated_at"`
	Courses     int                            `yaml:"courses"`
	Collisions  []repository.PositionCollision `yaml:"collisions"`
}

func main() {
	configDir := flag.String("config", "configs", "配置文件所在目录")
	reportPath := flag.String("report", "", "可选，YAML 报告输出路径")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	collisions, err := repository.NewCourseModuleRepository(db).FindPositionCollisions(ctx)
	if err != nil {
		log.Fatalf("查询失败: %v", err)
	}

	if len(collisions) == 0 {
		log.Println("未发现位置冲突")
		return
	}

	courses := make(map[string]struct{})
	for _, c := range collisions {
		courses[c.CourseID] = struct{}{}
		fmt.Printf("course=%s position=%d modules=%d\n", c.CourseID, c.TimelinePosition, c.Count)
		logger.Log.Warn("Timeline position collision",
			zap.String("course_id", c.CourseID),
			zap.Int("position", c.TimelinePosition),
			zap.Int("modules", c.Count))
	}
	log.Printf("共 %d 个冲突槽位，涉及 %d 门课程", len(collisions), len(courses))

	if *reportPath == "" {
		return
	}
	data, err := yaml.Marshal(auditReport{
		GeneratedAt: time.Now(),
		Courses:     len(courses),
		Collisions:  collisions,
	})
	if err != nil {
		log.Fatalf("生成报告失败: %v", err)
	}
	if err := os.WriteFile(*reportPath, data, 0644); err != nil {
		log.Fatalf("写入报告失败: %v", err)
	}
	log.Printf("报告已写入 %s", *reportPath)
}
