package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/c-bata/go-prompt"
	"golang.org/x/exp/slices"
)

// CommandDefinition はコマンドの定義を保持する構造体
type CommandDefinition struct {
	Name              string                                                  // コマンド名
	Aliases           []string                                                // 別名
	Summary           string                                                  // 概要（短い説明）
	Syntax            string                                                  // 構文
	Description       []string                                                // 詳細説明（各行が1つの要素）
	ParseFunc         func(parts []string) (*Command, error)                  // パース関数
	GetCandidatesFunc func(src DomainSource, words []string) []prompt.Suggest // 補完候補生成関数
}

// domainArgument は第1引数にドメインを取るコマンドの補完関数
func domainArgument(src DomainSource, words []string) []prompt.Suggest {
	if len(words) == 2 {
		return getDomainCandidates(src)
	}
	return []prompt.Suggest{}
}

// branchArgument は第1引数にブランチを取るコマンドの補完関数
func branchArgument(src DomainSource, words []string) []prompt.Suggest {
	if len(words) == 2 {
		return getBranchCandidates(src)
	}
	return []prompt.Suggest{}
}

func onOffArgument(src DomainSource, words []string) []prompt.Suggest {
	if len(words) == 2 {
		return []prompt.Suggest{{Text: "on"}, {Text: "off"}}
	}
	return []prompt.Suggest{}
}

// parseDomainCommand はドメインを1つ必須で取るコマンドのパース関数を返す
func parseDomainCommand(cmdType CommandType, name string) func(parts []string) (*Command, error) {
	return func(parts []string) (*Command, error) {
		if len(parts) < 2 {
			return nil, &MissingArgument{Command: name, Argument: "ドメイン"}
		}
		if len(parts) > 2 {
			return nil, &InvalidArgument{Argument: parts[2]}
		}
		cmd := newCommand(cmdType)
		cmd.Domain = parts[1]
		return cmd, nil
	}
}

// CommandTable はコマンドの定義を格納するテーブル
// help の補完がテーブル自身を参照するため init で構築する
var CommandTable []CommandDefinition

func init() {
	CommandTable = []CommandDefinition{
		{
			Name:    "ls",
			Aliases: []string{"list"},
			Summary: "ノードの子を一覧表示",
			Syntax:  "ls [domain]",
			Description: []string{
				"domain: 対象ブランチ（省略時は最上位）",
				"先頭の記号: + 折りたたみ中のブランチ、- 展開中のブランチ、* 編集可能、空白 読み取り専用",
			},
			GetCandidatesFunc: branchArgument,
			ParseFunc: func(parts []string) (*Command, error) {
				cmd := newCommand(CmdList)
				if len(parts) > 2 {
					return nil, &InvalidArgument{Argument: parts[2]}
				}
				if len(parts) == 2 {
					cmd.Domain = parts[1]
				}
				return cmd, nil
			},
		},
		{
			Name:    "expand",
			Aliases: []string{"open"},
			Summary: "ブランチを読み込んで展開",
			Syntax:  "expand <domain>",
			Description: []string{
				"ブランチの子をハブから読み込み、展開状態にします。",
				"展開したブランチ配下の葉と祖先が定期更新の対象になります。",
			},
			GetCandidatesFunc: branchArgument,
			ParseFunc:         parseDomainCommand(CmdExpand, "expand"),
		},
		{
			Name:    "collapse",
			Aliases: []string{"close"},
			Summary: "ブランチを折りたたむ",
			Syntax:  "collapse <domain>",
			Description: []string{
				"定期更新の対象がどう変わるかは poll.collapse_policy (keep/prune) に従います。",
			},
			GetCandidatesFunc: branchArgument,
			ParseFunc:         parseDomainCommand(CmdCollapse, "collapse"),
		},
		{
			Name:              "show",
			Summary:           "ノードの詳細を表示",
			Syntax:            "show <domain>",
			GetCandidatesFunc: domainArgument,
			ParseFunc:         parseDomainCommand(CmdShow, "show"),
		},
		{
			Name:    "set",
			Summary: "値の設定",
			Syntax:  "set <domain> <value>",
			Description: []string{
				"value: 新しい値。LIST 型ではキーまたは表示名を指定できます",
				"読み取り専用のノードや値が変わらない場合は送信しません。",
				"新しい値は次回の定期更新で反映されます。",
			},
			GetCandidatesFunc: domainArgument,
			ParseFunc: func(parts []string) (*Command, error) {
				if len(parts) < 2 {
					return nil, &MissingArgument{Command: "set", Argument: "ドメイン"}
				}
				if len(parts) < 3 {
					return nil, &MissingArgument{Command: "set", Argument: "値"}
				}
				cmd := newCommand(CmdSet)
				cmd.Domain = parts[1]
				cmd.Value = strings.Join(parts[2:], " ")
				return cmd, nil
			},
		},
		{
			Name:    "action",
			Summary: "アクションの実行",
			Syntax:  "action <domain> [key]",
			Description: []string{
				"key: アクションキー（省略時は最初のアクション）",
			},
			GetCandidatesFunc: domainArgument,
			ParseFunc: func(parts []string) (*Command, error) {
				if len(parts) < 2 {
					return nil, &MissingArgument{Command: "action", Argument: "ドメイン"}
				}
				if len(parts) > 3 {
					return nil, &InvalidArgument{Argument: parts[3]}
				}
				cmd := newCommand(CmdAction)
				cmd.Domain = parts[1]
				if len(parts) == 3 {
					cmd.Value = parts[2]
				}
				return cmd, nil
			},
		},
		{
			Name:    "reload",
			Summary: "ツリーを最上位から読み直す",
			Syntax:  "reload",
			ParseFunc: func(parts []string) (*Command, error) {
				return newCommand(CmdReload), nil
			},
		},
		{
			Name:    "poll",
			Summary: "定期更新を今すぐ1回実行",
			Syntax:  "poll",
			ParseFunc: func(parts []string) (*Command, error) {
				return newCommand(CmdPoll), nil
			},
		},
		{
			Name:    "watch",
			Summary: "受信イベントの表示切り替え",
			Syntax:  "watch [on|off]",
			Description: []string{
				"引数なしで現在の状態を表示します。",
			},
			GetCandidatesFunc: onOffArgument,
			ParseFunc: func(parts []string) (*Command, error) {
				enable, err := parseOnOff(parts)
				if err != nil {
					return nil, err
				}
				cmd := newCommand(CmdWatch)
				cmd.Enable = enable
				return cmd, nil
			},
		},
		{
			Name:    "debug",
			Summary: "デバッグログの切り替え",
			Syntax:  "debug [on|off]",
			Description: []string{
				"引数なしで現在の状態を表示します。",
			},
			GetCandidatesFunc: onOffArgument,
			ParseFunc: func(parts []string) (*Command, error) {
				enable, err := parseOnOff(parts)
				if err != nil {
					return nil, err
				}
				cmd := newCommand(CmdDebug)
				cmd.Enable = enable
				return cmd, nil
			},
		},
		{
			Name:    "help",
			Summary: "ヘルプを表示",
			Syntax:  "help [command]",
			GetCandidatesFunc: func(src DomainSource, words []string) []prompt.Suggest {
				if len(words) == 2 {
					return getCommandCandidates()
				}
				return []prompt.Suggest{}
			},
			ParseFunc: func(parts []string) (*Command, error) {
				cmd := newCommand(CmdHelp)
				if len(parts) > 1 {
					cmd.HelpTopic = &parts[1]
				}
				return cmd, nil
			},
		},
		{
			Name:    "quit",
			Aliases: []string{"exit"},
			Summary: "終了",
			Syntax:  "quit",
			Description: []string{
				"プログラムを終了します。",
			},
			ParseFunc: func(parts []string) (*Command, error) {
				return newCommand(CmdQuit), nil
			},
		},
	}
}

// PrintCommandSummary は、全コマンドの簡単なサマリーを表示する
func PrintCommandSummary(w io.Writer) {
	fmt.Fprintln(w, "コマンド:")

	for _, cmd := range CommandTable {
		aliases := ""
		if len(cmd.Aliases) > 0 {
			aliases = fmt.Sprintf(", %s", strings.Join(cmd.Aliases, ", "))
		}
		fmt.Fprintf(w, "  %-15s: %s\n", cmd.Name+aliases, cmd.Summary)
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "詳細は 'help <コマンド名>' で確認できます。例: 'help set'")
}

// PrintCommandDetail は、特定のコマンドの詳細情報を表示する
func PrintCommandDetail(w io.Writer, commandName string) {
	for _, cmd := range CommandTable {
		if cmd.Name == commandName || slices.Contains(cmd.Aliases, commandName) {
			fmt.Fprintf(w, "  %s: %s\n", cmd.Name, cmd.Summary)
			fmt.Fprintf(w, "  構文: %s\n", cmd.Syntax)

			if len(cmd.Description) > 0 {
				fmt.Fprintln(w, "  詳細:")
				for _, line := range cmd.Description {
					fmt.Fprintf(w, "    %s\n", line)
				}
			}
			return
		}
	}

	fmt.Fprintf(w, "不明なコマンド: %s\n", commandName)
	fmt.Fprintln(w, "利用可能なコマンドを確認するには 'help' を入力してください")
}

// PrintUsage はコマンドの使用方法を表示する
func PrintUsage(w io.Writer, commandName *string) {
	if commandName == nil {
		fmt.Fprintln(w, "Z-Wave 設定コンソール")
		PrintCommandSummary(w)
	} else {
		PrintCommandDetail(w, *commandName)
	}
}
