package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/AIEraStack/AIEraStack/internal/adapter/gemini"
	"github.com/AIEraStack/AIEraStack/internal/adapter/repository"
	"github.com/AIEraStack/AIEraStack/internal/domain"
	"github.com/AIEraStack/AIEraStack/internal/scoring"

	"github.com/joho/godotenv"
)

// 离线工具：给一组仓库生成自然语言对比评估并写进 comparison_evaluations 表
// 引擎和 API 对这张表只读，所以这个工具挂了也不影响线上
func main() {
	reposFlag := flag.String("repos", "", "逗号分隔的 owner/name 列表（至少两个）")
	category := flag.String("category", "", "分类标签，写进对比记录")
	flag.Parse()

	slugs := splitSlugs(*reposFlag)
	if len(slugs) < 2 {
		fmt.Println("用法: compare -repos=gin-gonic/gin,labstack/echo [-category=backend]")
		os.Exit(1)
	}

	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		log.Fatal("❌ 未配置 DATABASE_DSN")
	}
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		log.Fatal("❌ 未配置 GEMINI_API_KEY")
	}

	models := scoring.DefaultModels()
	store, err := repository.NewPostgresRepo(dsn, scoring.ModelIDs(models))
	if err != nil {
		log.Fatalf("❌ DB 初始化失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	comparer, err := gemini.NewComparer(ctx, geminiKey)
	if err != nil {
		log.Fatalf("❌ AI 初始化失败: %v", err)
	}
	defer comparer.Close()

	// 1. 从汇总索引里挑出要对比的仓库（必须已经评估过）
	entries, err := store.ListSummaries(ctx, "")
	if err != nil {
		log.Fatalf("❌ 读取汇总索引失败: %v", err)
	}
	wanted := map[string]bool{}
	for _, s := range slugs {
		wanted[strings.ToLower(s)] = true
	}
	var selected []domain.IndexEntry
	for _, e := range entries {
		if wanted[strings.ToLower(e.Identity.Slug())] {
			selected = append(selected, e)
		}
	}
	if len(selected) < 2 {
		log.Fatalf("❌ 只找到 %d 个已评估的仓库，请先通过 API 或 debug 工具评估它们", len(selected))
	}
	fmt.Printf("📚 已加载 %d 个仓库的评分，开始生成对比...\n", len(selected))

	// 2. 调 Gemini 生成评估
	payload, err := comparer.Compare(ctx, selected)
	if err != nil {
		log.Fatalf("❌ 生成对比失败: %v", err)
	}

	// 3. 按内容哈希入库
	hash := domain.ComparisonHash(slugs)
	if err := store.SaveComparison(ctx, hash, *category, payload); err != nil {
		log.Fatalf("❌ 入库失败: %v", err)
	}
	fmt.Printf("🎉 对比评估已保存 (hash=%s)\n", hash[:12])
}

func splitSlugs(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if strings.Count(s, "/") == 1 {
			out = append(out, s)
		}
	}
	return out
}
