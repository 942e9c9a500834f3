package domain

import (
	"strconv"
	"strings"
	"time"
)

// ParseVersionTag 解析 "v1.2.3" / "1.2" 这种 release tag
// patch 缺省按 0 处理；带 "-beta" 等后缀或解析失败时 Parsed 为 false 以外的字段保持零值
func ParseVersionTag(tag string) (major, minor, patch int, ok bool) {
	s := strings.TrimPrefix(strings.TrimSpace(tag), "v")
	if s == "" {
		return 0, 0, 0, false
	}
	// "1.2.3-beta.1" 属于预发布命名，不算可解析的稳定版本号
	if strings.ContainsAny(s, "-+") {
		return 0, 0, 0, false
	}

	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, 0, 0, false
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], true
}

// NewRelease 构造 ReleaseInfo 并填好解析出的版本字段
func NewRelease(tag string, prerelease bool, publishedAt time.Time) ReleaseInfo {
	r := ReleaseInfo{
		Tag:         tag,
		Prerelease:  prerelease,
		PublishedAt: publishedAt,
	}
	r.Major, r.Minor, r.Patch, r.Parsed = ParseVersionTag(tag)
	return r
}

// IsStableMinor 稳定小版本：非预发布且 patch 为 0（x.y.0）
func (r ReleaseInfo) IsStableMinor() bool {
	return r.Parsed && !r.Prerelease && r.Patch == 0
}

// IsStableMajor 稳定大版本：非预发布且 minor、patch 均为 0（x.0.0）
func (r ReleaseInfo) IsStableMajor() bool {
	return r.Parsed && !r.Prerelease && r.Minor == 0 && r.Patch == 0
}

// StableMinorReleases 过滤出所有稳定小版本，保持原有顺序
func StableMinorReleases(releases []ReleaseInfo) []ReleaseInfo {
	var out []ReleaseInfo
	for _, r := range releases {
		if r.IsStableMinor() {
			out = append(out, r)
		}
	}
	return out
}

// LatestStableMajor 返回发布时间最新的稳定大版本，没有时 ok 为 false
func LatestStableMajor(releases []ReleaseInfo) (ReleaseInfo, bool) {
	var latest ReleaseInfo
	found := false
	for _, r := range releases {
		if !r.IsStableMajor() {
			continue
		}
		if !found || r.PublishedAt.After(latest.PublishedAt) {
			latest = r
			found = true
		}
	}
	return latest, found
}
