package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/AIEraStack/AIEraStack/internal/adapter/github"
	"github.com/AIEraStack/AIEraStack/internal/adapter/registry"
	"github.com/AIEraStack/AIEraStack/internal/domain"
	"github.com/AIEraStack/AIEraStack/internal/scoring"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// 调试工具：跳过数据库，抓一个仓库直接打印信号和全模型评分
func main() {
	owner := flag.String("owner", "", "仓库 owner")
	name := flag.String("name", "", "仓库名")
	flag.Parse()

	if *owner == "" || *name == "" {
		fmt.Println("用法: debug -owner=gin-gonic -name=gin")
		os.Exit(1)
	}

	_ = godotenv.Load()
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	collector, err := github.NewCollector(os.Getenv("GITHUB_TOKEN"), logger)
	if err != nil {
		log.Fatalf("❌ GitHub 客户端初始化失败: %v", err)
	}
	npm := registry.NewNpmCollector(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	id := domain.RepoIdentity{Owner: *owner, Name: *name}
	fmt.Printf("🔍 调试模式：抓取并评分 %s\n", id.Slug())

	info, err := collector.GetRepoInfo(ctx, id)
	if err != nil {
		log.Fatalf("❌ 获取仓库信息失败: %v", err)
	}
	fmt.Printf("✅ 基础信息就绪 (%d stars, %s)\n", info.Stars, info.Language)

	var (
		releases []domain.ReleaseInfo
		docs     domain.DocSignals
		activity domain.ActivitySignals
		pkg      *domain.PackageInfo
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		releases = collector.ListReleases(egCtx, id)
		activity = collector.GetActivity(egCtx, id, releases)
		return nil
	})
	eg.Go(func() error {
		docs = collector.GetDocSignals(egCtx, id)
		return nil
	})
	eg.Go(func() error {
		pkg = npm.GetPackageInfo(egCtx, id)
		return nil
	})
	_ = eg.Wait()
	fmt.Printf("✅ 信号采集完成: %d 个 release, README %d 字节\n", len(releases), docs.ReadmeBytes)

	signals := domain.RawSignalBundle{
		Repo: info, Releases: releases, Package: pkg, Docs: docs, Activity: activity,
	}

	engine := scoring.NewEngine()
	scores := map[string]domain.RepoScore{}
	for _, model := range scoring.DefaultModels() {
		scores[model.ID] = engine.Score(signals, model)
	}

	out, _ := json.MarshalIndent(map[string]interface{}{
		"signals": signals,
		"scores":  scores,
	}, "", "  ")
	fmt.Println(string(out))
}
