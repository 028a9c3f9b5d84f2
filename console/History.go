package console

import (
	"log/slog"
	"os"
	"path/filepath"
)

const historyFileName = ".zwave_console_history"

// getHistoryFilePath は履歴ファイルのパスを取得する
func getHistoryFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// ホームディレクトリが取得できない場合はカレントディレクトリに作成
		slog.Warn("ホームディレクトリが取得できませんでした。履歴ファイルはカレントディレクトリに作成されます", "err", err)
		return historyFileName
	}
	return filepath.Join(home, historyFileName)
}
