package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AIEraStack/AIEraStack/internal/domain"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Comparer 调用 Gemini 生成一组仓库的自然语言对比评估
// 这是离线工具 (cmd/compare) 的依赖，评估引擎本身不感知它的存在
type Comparer struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewComparer(ctx context.Context, apiKey string) (*Comparer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel("gemini-2.5-flash-lite")
	// 强制要求返回 JSON，降低解析错误的概率
	model.ResponseMIMEType = "application/json"

	return &Comparer{client: client, model: model}, nil
}

func (c *Comparer) Close() error {
	return c.client.Close()
}

// Compare 输入一组汇总行，输出可以整体入库的 JSON 评估
func (c *Comparer) Compare(ctx context.Context, entries []domain.IndexEntry) ([]byte, error) {
	var lines []string
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("- %s (%s, %d stars, 最优分 %d/%s, 适配模型 %s): %s",
			e.Identity.Slug(), e.Language, e.Stars, e.BestScore, e.BestGrade, e.BestModel, e.Description))
	}

	prompt := fmt.Sprintf(`
你是一个熟悉大模型训练数据构成的技术顾问。下面是几个开源项目，以及"主流 LLM 对它们的知识覆盖程度"的量化评分：

%s

请对比这些项目，严格按照 JSON 格式返回，包含以下字段：
1. verdict: 一句话结论，指出哪个项目最适合配合 AI 编程助手使用。
2. rationale: 两三句话的中文分析，解释评分差异的来源。
3. per_repo: 一个对象，key 是 "owner/name"，value 是对该项目的一句话点评。

请直接返回 JSON，不要包含 Markdown 格式标记。
`, strings.Join(lines, "\n"))

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("AI 调用失败: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("AI 返回内容为空")
	}

	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return nil, fmt.Errorf("AI 返回格式错误")
	}

	// 即使 AI 包了一层 "```json ... ```"，也精准抠出中间的 { ... }
	raw := string(text)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("无法提取 JSON, AI 原文: %s", raw)
	}
	clean := raw[start : end+1]

	if !json.Valid([]byte(clean)) {
		return nil, fmt.Errorf("AI 返回的 JSON 不合法: %s", clean)
	}
	return []byte(clean), nil
}
