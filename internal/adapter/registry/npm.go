package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AIEraStack/AIEraStack/internal/domain"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	defaultRegistryURL  = "https://registry.npmjs.org"
	defaultDownloadsURL = "https://api.npmjs.org"
)

// NpmCollector 实现了 port.RegistryCollector 接口
// 包名只能靠猜（用仓库名），所以必须用注册表文档里的 repository 字段反向核对，
// 对不上就当没有这个包，返回 nil 哨兵值
type NpmCollector struct {
	client       *retryablehttp.Client
	registryURL  string
	downloadsURL string
	log          *logrus.Logger
}

// NewNpmCollector 初始化 npm 客户端，内置对瞬时错误的有限重试
func NewNpmCollector(log *logrus.Logger) *NpmCollector {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil // 重试日志太吵，统一走 logrus

	return &NpmCollector{
		client:       client,
		registryURL:  defaultRegistryURL,
		downloadsURL: defaultDownloadsURL,
		log:          log,
	}
}

// GetPackageInfo 查 npm 上与仓库同名的包，best-effort
// 查不到、核对失败、网络错误都返回 nil，评分引擎按默认中值降级
func (n *NpmCollector) GetPackageInfo(ctx context.Context, id domain.RepoIdentity) *domain.PackageInfo {
	pkgName := strings.ToLower(id.Name)

	doc, err := n.fetch(ctx, fmt.Sprintf("%s/%s", n.registryURL, pkgName))
	if err != nil {
		n.log.WithField("package", pkgName).WithError(err).Debug("npm 查询失败")
		return nil
	}

	// 核对 repository.url 里是否出现 owner/name，防止同名撞包
	repoURL := strings.ToLower(gjson.GetBytes(doc, "repository.url").String())
	if !strings.Contains(repoURL, strings.ToLower(id.Slug())) {
		n.log.WithFields(logrus.Fields{"package": pkgName, "repository": repoURL}).
			Debug("npm 包与仓库不匹配，忽略")
		return nil
	}

	latest := gjson.GetBytes(doc, "dist-tags.latest").String()
	info := &domain.PackageInfo{
		Name:          pkgName,
		LatestVersion: latest,
		TypesTier:     n.typesTier(ctx, doc, pkgName, latest),
	}

	// 周下载量单独一个接口，失败时保持 0
	if dl, err := n.fetch(ctx, fmt.Sprintf("%s/downloads/point/last-week/%s", n.downloadsURL, pkgName)); err == nil {
		info.WeeklyDownloads = int(gjson.GetBytes(dl, "downloads").Int())
	}
	return info
}

// typesTier 判断类型声明的提供档位：自带 > @types 外部包 > 没有
func (n *NpmCollector) typesTier(ctx context.Context, doc []byte, pkgName, latest string) string {
	versionPath := fmt.Sprintf("versions.%s", gjsonEscape(latest))
	if gjson.GetBytes(doc, versionPath+".types").Exists() ||
		gjson.GetBytes(doc, versionPath+".typings").Exists() {
		return domain.TypesBundled
	}

	// 探一下 DefinitelyTyped 有没有对应的 @types 包
	typesPkg := "@types/" + strings.ReplaceAll(strings.TrimPrefix(pkgName, "@"), "/", "__")
	if _, err := n.fetch(ctx, fmt.Sprintf("%s/%s", n.registryURL, typesPkg)); err == nil {
		return domain.TypesExternal
	}
	return domain.TypesNone
}

// fetch 发 GET 请求，2xx 之外一律当错误
func (n *NpmCollector) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// gjsonEscape 转义版本号里的 "." 防止被 gjson 当成路径分隔符
func gjsonEscape(s string) string {
	return strings.ReplaceAll(s, ".", "\\.")
}
