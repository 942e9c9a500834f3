package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// ComparisonHash 对一组仓库 slug 计算内容哈希，作为对比评估的主键
// 先排序再拼接，所以 slug 集合相同就一定命中同一条
func ComparisonHash(slugs []string) string {
	normalized := make([]string, 0, len(slugs))
	for _, s := range slugs {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			normalized = append(normalized, s)
		}
	}
	sort.Strings(normalized)

	sum := sha256.Sum256([]byte(strings.Join(normalized, ",")))
	return hex.EncodeToString(sum[:])
}
