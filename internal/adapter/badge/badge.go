package badge

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// 等级对应的底色，错误徽章用灰色
var gradeColors = map[string]string{
	"A": "#4c1",
	"B": "#97ca00",
	"C": "#dfb317",
	"D": "#fe7d37",
	"F": "#e05d44",
}

const errorColor = "#9f9f9f"

// Render 生成一个 shields 风格的扁平 SVG 徽章
// 左边是模型名，右边是 "等级 · 分数"
func Render(label, message, color string) string {
	labelWidth := textWidth(label)
	messageWidth := textWidth(message)
	total := labelWidth + messageWidth

	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="20" role="img" aria-label="%s: %s">
<linearGradient id="s" x2="0" y2="100%%"><stop offset="0" stop-color="#bbb" stop-opacity=".1"/><stop offset="1" stop-opacity=".1"/></linearGradient>
<clipPath id="r"><rect width="%d" height="20" rx="3" fill="#fff"/></clipPath>
<g clip-path="url(#r)">
<rect width="%d" height="20" fill="#555"/>
<rect x="%d" width="%d" height="20" fill="%s"/>
<rect width="%d" height="20" fill="url(#s)"/>
</g>
<g fill="#fff" text-anchor="middle" font-family="Verdana,Geneva,DejaVu Sans,sans-serif" font-size="11">
<text x="%d" y="14">%s</text>
<text x="%d" y="14">%s</text>
</g>
</svg>`,
		total, escape(label), escape(message),
		total,
		labelWidth,
		labelWidth, messageWidth, color,
		total,
		labelWidth/2, escape(label),
		labelWidth+messageWidth/2, escape(message),
	)
}

// ForScore 渲染正常的评分徽章
func ForScore(modelName, grade string, overall int) string {
	color, ok := gradeColors[grade]
	if !ok {
		color = errorColor
	}
	return Render(modelName, fmt.Sprintf("%s · %d", grade, overall), color)
}

// ForError 渲染降级的错误徽章
// badge 端点对图片消费方永远返回 200，错误就长这样
func ForError(modelName string) string {
	if modelName == "" {
		modelName = "ai-era-stack"
	}
	return Render(modelName, "unavailable", errorColor)
}

// textWidth 估算文本的像素宽度（Verdana 11px 约 7px/字符 + 两侧留白）
// 按字符数而不是字节数算，多字节标签不会把徽章撑宽
func textWidth(s string) int {
	return utf8.RuneCountInString(s)*7 + 14
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
