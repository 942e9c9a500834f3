package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AIEraStack/AIEraStack/internal/adapter/github"
	"github.com/AIEraStack/AIEraStack/internal/adapter/registry"
	"github.com/AIEraStack/AIEraStack/internal/adapter/repository"
	"github.com/AIEraStack/AIEraStack/internal/scoring"
	"github.com/AIEraStack/AIEraStack/internal/server"
	"github.com/AIEraStack/AIEraStack/internal/service"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	// 1. 命令行参数
	port := flag.String("port", "8080", "HTTP 监听端口")
	maxAgeFlag := flag.Duration("max-age", 0, "缓存保鲜期，0 表示用 CACHE_MAX_AGE 或默认 24h")
	refreshCron := flag.String("refresh-cron", "", "定时全量刷新的 cron 表达式，例如 '0 4 * * *'，空表示不开")
	workers := flag.Int("workers", 3, "定时刷新的并发数")
	flag.Parse()

	// 2. 环境变量（.env 可选，线上直接注入）
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=aierastack port=5432 sslmode=disable"
	}
	githubToken := os.Getenv("GITHUB_TOKEN")
	if githubToken == "" {
		fmt.Println("⚠️ 未配置 GITHUB_TOKEN，匿名访问限额只有 60 次/小时")
	}

	maxAge := *maxAgeFlag
	if maxAge == 0 {
		if v := os.Getenv("CACHE_MAX_AGE"); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				log.Fatalf("❌ CACHE_MAX_AGE 格式不对: %v", err)
			}
			maxAge = parsed
		}
	}

	// 3. 组装依赖：采集器 → 评分引擎 → 存储 → 协调服务 → HTTP
	models := scoring.DefaultModels()

	store, err := repository.NewPostgresRepo(dsn, scoring.ModelIDs(models))
	if err != nil {
		log.Fatalf("❌ DB 初始化失败: %v", err)
	}

	collector, err := github.NewCollector(githubToken, logger)
	if err != nil {
		log.Fatalf("❌ GitHub 客户端初始化失败: %v", err)
	}
	npm := registry.NewNpmCollector(logger)

	evaluator := service.NewEvaluationService(
		collector, npm, store, scoring.NewEngine(), models, maxAge, logger)

	srv := &http.Server{
		Addr:              ":" + *port,
		Handler:           server.New(evaluator, store, models, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 4. 可选的定时全量刷新，避免长尾仓库永远过期
	var scheduler *cron.Cron
	if *refreshCron != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(*refreshCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			n := evaluator.RefreshStale(ctx, *workers)
			logger.WithField("refreshed", n).Info("定时刷新完成")
		})
		if err != nil {
			log.Fatalf("❌ cron 表达式不合法: %v", err)
		}
		scheduler.Start()
		fmt.Printf("⏰ 定时刷新已启动: %s\n", *refreshCron)
	}

	// 5. 启动 + 优雅关闭
	go func() {
		fmt.Printf("🚀 AIEraStack 已启动，监听 :%s\n", *port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP 服务异常退出: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n👋 收到停止信号，正在退出...")
	if scheduler != nil {
		scheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("关闭 HTTP 服务超时")
	}
}
