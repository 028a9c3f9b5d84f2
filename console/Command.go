package console

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// CommandType はコマンドの種類を表す
type CommandType int

const (
	CmdUnknown CommandType = iota
	CmdList
	CmdExpand
	CmdCollapse
	CmdShow
	CmdSet
	CmdAction
	CmdReload
	CmdPoll
	CmdWatch
	CmdDebug
	CmdHelp
	CmdQuit
)

// Command はパース済みのコマンドを表す
type Command struct {
	Type      CommandType
	Domain    string
	Value     string  // set の値、action のキー
	Enable    *bool   // watch/debug の on/off。nil は状態表示
	HelpTopic *string // help の対象コマンド
	Done      chan struct{}
	Error     error
}

func newCommand(cmdType CommandType) *Command {
	return &Command{
		Type: cmdType,
		Done: make(chan struct{}),
	}
}

type InvalidArgument struct {
	Argument string
}

func (e *InvalidArgument) Error() string {
	return fmt.Sprintf("無効な引数: %s", e.Argument)
}

// MissingArgument は必須引数が無いことを表す
type MissingArgument struct {
	Command  string
	Argument string
}

func (e *MissingArgument) Error() string {
	return fmt.Sprintf("%s コマンドには %s が必要です", e.Command, e.Argument)
}

// parseOnOff は on/off 引数を解釈する。引数が無ければ nil を返す
func parseOnOff(parts []string) (*bool, error) {
	if len(parts) < 2 {
		return nil, nil
	}
	switch strings.ToLower(parts[1]) {
	case "on", "true", "1":
		v := true
		return &v, nil
	case "off", "false", "0":
		v := false
		return &v, nil
	default:
		return nil, &InvalidArgument{Argument: parts[1]}
	}
}

// ParseCommand はコマンドをパースする。空行は nil を返す
func ParseCommand(input string) (*Command, error) {
	parts := splitWords(strings.TrimSpace(input))
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	if len(parts) == 0 {
		return nil, nil
	}

	commandName := parts[0]

	// テーブルから一致するコマンドを探す
	for _, cmdDef := range CommandTable {
		if cmdDef.Name == commandName || slices.Contains(cmdDef.Aliases, commandName) {
			if cmdDef.ParseFunc != nil {
				return cmdDef.ParseFunc(parts)
			}
			return newCommand(CmdUnknown), nil
		}
	}

	return nil, fmt.Errorf("unknown command: %s", commandName)
}
