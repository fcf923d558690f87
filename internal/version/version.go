// 包 version：构建信息，通过 -ldflags "-X drrm-api/internal/version.Commit=<sha>" 注入
package version

var (
	Commit  = "dev"
	Version = "0.1.0"
)
