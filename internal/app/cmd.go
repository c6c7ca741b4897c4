package app

import (
	"io"

	"github.com/spf13/cobra"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// NewRootCommand はrecordgateのcobraコマンドツリーを構築する。
// サブコマンドを省略した場合はserveとして動作する。ログはwに出力する。
func NewRootCommand(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "recordgate",
		Short:         "File submission and review API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), w, CommandServe)
		},
	}

	root.AddCommand(
		newCommand(w, CommandServe, "Start the HTTP API server"),
		newCommand(w, CommandMigrate, "Apply pending database migrations"),
		newCommand(w, CommandHealthcheck, "Probe the local /health endpoint (for container health checks)"),
	)

	return root
}

func newCommand(w io.Writer, c Command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(c),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), w, c)
		},
	}
}
