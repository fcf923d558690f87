// drrmctl：运维命令行，建表、查看/写入页面文本、离线检查 KML 文件
package main

import (
	"os"
	"path/filepath"

	"drrm-api/internal/logger"
	"drrm-api/internal/version"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "drrmctl",
		Short:         "DRRM dashboard maintenance tool",
		Version:       version.Version + " (" + version.Commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newPageCmd(), newKMLCmd())
	return root
}

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	if err := newRootCmd().Execute(); err != nil {
		l.Error("drrmctl_error", "err", err)
		os.Exit(1)
	}
}
