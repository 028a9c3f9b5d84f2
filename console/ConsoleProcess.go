// Package console は設定ツリーを操作する対話コンソールを提供する
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"zwave-console/tree"
)

// Options は ConsoleProcess の依存先
type Options struct {
	Tree     *tree.Tree
	Poller   *tree.Poller
	Watch    *Watcher    // nil 可
	Notifier *Notifier   // nil 可
	Debug    DebugSwitch // nil 可
	In       io.Reader   // nil なら os.Stdin
	Out      io.Writer   // nil なら os.Stdout
}

// ConsoleProcess は入力が尽きるか quit するまでコマンドを処理する
func ConsoleProcess(ctx context.Context, opts Options) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	processor := NewCommandProcessor(ctx, ProcessorOptions{
		Tree:   opts.Tree,
		Poller: opts.Poller,
		Watch:  opts.Watch,
		Debug:  opts.Debug,
		Out:    opts.Out,
	})
	processor.Start()
	defer processor.Stop()

	if f, ok := opts.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return runInteractive(ctx, processor, opts)
	}
	return runLines(ctx, processor, opts.In, opts.Out)
}

// runInteractive は readline で入力を受け付ける
func runInteractive(ctx context.Context, processor *CommandProcessor, opts Options) error {
	fmt.Fprintln(opts.Out, "help for usage, quit to exit")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     getHistoryFilePath(),
		AutoComplete:    &dynamicCompleter{src: opts.Tree},
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("readline の初期化エラー: %w", err)
	}
	defer func(rl *readline.Instance) {
		_ = rl.Close()
	}(rl)

	// 非同期の出力でプロンプトが崩れないよう readline 経由で書く
	out := rl.Stdout()
	processor.SetOutput(out)
	if opts.Notifier != nil {
		opts.Notifier.SetOutput(out)
	}
	if opts.Watch != nil {
		opts.Watch.SetOutput(out)
	}

	stop := context.AfterFunc(ctx, func() { _ = rl.Close() })
	defer stop()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil { // io.EOF
			return nil
		}
		if quit := handleLine(processor, out, line); quit {
			return nil
		}
	}
}

// runLines は端末以外の入力を1行ずつ処理する
func runLines(ctx context.Context, processor *CommandProcessor, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if quit := handleLine(processor, out, scanner.Text()); quit {
			return nil
		}
	}
	return scanner.Err()
}

// handleLine は1行を実行し、終了すべきかを返す
func handleLine(processor *CommandProcessor, out io.Writer, line string) bool {
	cmd, err := ParseCommand(line)
	if err != nil {
		fmt.Fprintf(out, "エラー: %v\n", err)
		return false
	}
	if cmd == nil {
		return false
	}

	if err := processor.SendCommand(cmd); err != nil {
		fmt.Fprintf(out, "エラー: %v\n", err)
		return errors.Is(err, ErrProcessorStopped)
	}
	return cmd.Type == CmdQuit
}
