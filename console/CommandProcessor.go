package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"zwave-console/protocol"
	"zwave-console/tree"
)

// DebugSwitch はデバッグログの切り替え先
type DebugSwitch interface {
	SetDebug(debug bool)
	Debug() bool
}

// ProcessorOptions は CommandProcessor の依存先
type ProcessorOptions struct {
	Tree   *tree.Tree
	Poller *tree.Poller // nil 可
	Watch  *Watcher     // nil 可
	Debug  DebugSwitch  // nil 可
	Out    io.Writer
}

// CommandProcessor は、コマンド処理を担当する構造体
type CommandProcessor struct {
	tree   *tree.Tree
	poller *tree.Poller
	watch  *Watcher
	debug  DebugSwitch

	outMutex sync.Mutex
	out      io.Writer

	cmdChan  chan *Command
	done     chan struct{}
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCommandProcessor は、CommandProcessor の新しいインスタンスを作成する
func NewCommandProcessor(ctx context.Context, opts ProcessorOptions) *CommandProcessor {
	processorCtx, cancel := context.WithCancel(ctx)
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	return &CommandProcessor{
		tree:    opts.Tree,
		poller:  opts.Poller,
		watch:   opts.Watch,
		debug:   opts.Debug,
		out:     out,
		cmdChan: make(chan *Command),
		done:    make(chan struct{}),
		ctx:     processorCtx,
		cancel:  cancel,
	}
}

// SetOutput は出力先を切り替える (readline 起動後など)
func (p *CommandProcessor) SetOutput(w io.Writer) {
	p.outMutex.Lock()
	defer p.outMutex.Unlock()
	p.out = w
}

func (p *CommandProcessor) printf(format string, a ...interface{}) {
	p.outMutex.Lock()
	defer p.outMutex.Unlock()
	fmt.Fprintf(p.out, format, a...)
}

func (p *CommandProcessor) writer() io.Writer {
	p.outMutex.Lock()
	defer p.outMutex.Unlock()
	return p.out
}

// Start は、コマンド処理を開始する
func (p *CommandProcessor) Start() {
	go p.processCommands()
}

// Stop は、コマンド処理を停止する
func (p *CommandProcessor) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		close(p.cmdChan)
		<-p.done
	})
}

// ErrProcessorStopped は停止後に送られたコマンドに返す
var ErrProcessorStopped = errors.New("command processor stopped")

// SendCommand は、コマンドを送信し、結果のエラーを返す
func (p *CommandProcessor) SendCommand(cmd *Command) error {
	select {
	case p.cmdChan <- cmd:
	case <-p.done:
		return ErrProcessorStopped
	}
	<-cmd.Done
	return cmd.Error
}

// processCommands は、コマンドを処理するgoroutine
func (p *CommandProcessor) processCommands() {
	defer close(p.done)

	for cmd := range p.cmdChan {
		if p.ctx.Err() != nil {
			cmd.Error = p.ctx.Err()
			close(cmd.Done)
			return
		}
		cmd.Error = p.execute(cmd)
		close(cmd.Done)
		if cmd.Type == CmdQuit {
			return
		}
	}
}

func (p *CommandProcessor) execute(cmd *Command) error {
	switch cmd.Type {
	case CmdList:
		return p.processListCommand(cmd)
	case CmdExpand:
		return p.processExpandCommand(cmd)
	case CmdCollapse:
		return p.processCollapseCommand(cmd)
	case CmdShow:
		return p.processShowCommand(cmd)
	case CmdSet:
		return p.processSetCommand(cmd)
	case CmdAction:
		return p.processActionCommand(cmd)
	case CmdReload:
		return p.processReloadCommand()
	case CmdPoll:
		p.tree.RefreshTick(p.ctx)
		p.printf("%d 件を更新しました\n", len(p.tree.PollingSet()))
		if p.poller != nil {
			p.printf("定期更新: %s (間隔 %s)\n", onOff(p.poller.Running()), p.poller.Interval())
		}
		return nil
	case CmdWatch:
		return p.processWatchCommand(cmd)
	case CmdDebug:
		return p.processDebugCommand(cmd)
	case CmdHelp:
		PrintUsage(p.writer(), cmd.HelpTopic)
		return nil
	case CmdQuit:
		return nil
	default:
		return fmt.Errorf("未実装のコマンドです")
	}
}

// resolveDomain は末尾の '/' を省略したブランチ指定を補う
func (p *CommandProcessor) resolveDomain(domain string) (tree.Node, error) {
	if n, ok := p.tree.Node(domain); ok {
		return n, nil
	}
	if !strings.HasSuffix(domain, "/") {
		if n, ok := p.tree.Node(domain + "/"); ok {
			return n, nil
		}
	}
	return tree.Node{}, fmt.Errorf("%w: %s", tree.ErrNotFound, domain)
}

func kindMarker(n tree.Node) string {
	switch n.Kind {
	case tree.KindBranch:
		if n.Expanded {
			return "-"
		}
		return "+"
	case tree.KindEditable:
		return "*"
	default:
		return " "
	}
}

func stateMarker(s protocol.NodeState) string {
	if s == "" || s == protocol.NodeStateOK {
		return ""
	}
	return " [" + string(s) + "]"
}

func (p *CommandProcessor) processListCommand(cmd *Command) error {
	domain := cmd.Domain
	if domain == "" {
		domain = p.tree.RootDomain()
	}
	n, err := p.resolveDomain(domain)
	if err != nil {
		return err
	}
	if n.IsLeaf() {
		return fmt.Errorf("%w: %s", tree.ErrNotBranch, n.Domain)
	}

	children, _ := p.tree.Children(n.Domain)
	if !n.Loaded {
		p.printf("%s は未読み込みです ('expand %s' で読み込み)\n", n.Domain, n.Domain)
		return nil
	}
	if len(children) == 0 {
		p.printf("(子ノードなし)\n")
		return nil
	}
	for _, c := range children {
		if c.IsLeaf() {
			p.printf("%s %-28s %-24s %s%s\n", kindMarker(c), c.Domain, c.Label, c.DisplayValue(), stateMarker(c.State))
		} else {
			p.printf("%s %-28s %s%s\n", kindMarker(c), c.Domain, c.Label, stateMarker(c.State))
		}
	}
	return nil
}

func (p *CommandProcessor) processExpandCommand(cmd *Command) error {
	n, err := p.resolveDomain(cmd.Domain)
	if err != nil {
		return err
	}
	children, err := p.tree.LoadBranch(p.ctx, n.Domain)
	if err != nil {
		return err
	}
	set, err := p.tree.OnExpand(n.Domain)
	if err != nil {
		return err
	}
	p.printf("%s: %d 件の子ノード、更新対象 %d 件\n", n.Domain, len(children), len(set))
	return p.processListCommand(&Command{Domain: n.Domain})
}

func (p *CommandProcessor) processCollapseCommand(cmd *Command) error {
	n, err := p.resolveDomain(cmd.Domain)
	if err != nil {
		return err
	}
	if err := p.tree.OnCollapse(n.Domain); err != nil {
		return err
	}
	p.printf("%s を折りたたみました (policy=%s、更新対象 %d 件)\n", n.Domain, p.tree.Policy(), len(p.tree.PollingSet()))
	return nil
}

func (p *CommandProcessor) processShowCommand(cmd *Command) error {
	n, err := p.resolveDomain(cmd.Domain)
	if err != nil {
		return err
	}

	p.printf("domain:      %s\n", n.Domain)
	p.printf("name:        %s\n", n.Name)
	p.printf("label:       %s\n", n.Label)
	p.printf("kind:        %s\n", n.Kind)
	if n.Type != "" {
		p.printf("type:        %s\n", n.Type)
	}
	if n.IsLeaf() {
		p.printf("value:       %s\n", n.DisplayValue())
	}
	if n.State != "" {
		p.printf("state:       %s\n", n.State)
	}
	if n.HasBounds() {
		p.printf("range:       %d..%d\n", n.Minimum, n.Maximum)
	}
	if n.Optional {
		p.printf("optional:    true\n")
	}
	if n.Description != "" {
		p.printf("description: %s\n", n.Description)
	}
	if len(n.ValueList) > 0 {
		p.printf("values:\n")
		for _, e := range n.ValueList {
			marker := " "
			if e.Key == n.Value {
				marker = ">"
			}
			p.printf("  %s %s: %s\n", marker, e.Key, e.Value)
		}
	}
	if len(n.ActionList) > 0 {
		p.printf("actions:\n")
		for _, e := range n.ActionList {
			p.printf("    %s: %s\n", e.Key, e.Value)
		}
	}
	return nil
}

// listKey は LIST 型の表示名をキーに変換する
func listKey(n tree.Node, value string) string {
	if n.Type != protocol.NodeTypeList {
		return value
	}
	if _, ok := n.ValueList.Lookup(value); ok {
		return value
	}
	for _, e := range n.ValueList {
		if strings.EqualFold(e.Value, value) {
			return e.Key
		}
	}
	return value
}

func (p *CommandProcessor) processSetCommand(cmd *Command) error {
	n, err := p.resolveDomain(cmd.Domain)
	if err != nil {
		return err
	}
	value := listKey(n, cmd.Value)
	if n.IsLeaf() && !n.ReadOnly && n.Value == value {
		p.printf("値は変わっていません\n")
		return nil
	}
	if err := p.tree.SetValue(p.ctx, n.Domain, value); err != nil {
		return err
	}
	p.printf("%s に %s を送信しました\n", n.Domain, value)
	return nil
}

func (p *CommandProcessor) processActionCommand(cmd *Command) error {
	n, err := p.resolveDomain(cmd.Domain)
	if err != nil {
		return err
	}
	if err := p.tree.InvokeAction(p.ctx, n.Domain, cmd.Value); err != nil {
		return err
	}
	key := cmd.Value
	if key == "" && len(n.ActionList) > 0 {
		key = n.ActionList[0].Key
	}
	p.printf("%s でアクション %s を実行しました\n", n.Domain, key)
	return nil
}

func (p *CommandProcessor) processReloadCommand() error {
	children, err := p.tree.Reload(p.ctx)
	if err != nil {
		return err
	}
	p.printf("%d 件のノードを読み込みました\n", len(children))
	return p.processListCommand(&Command{})
}

func (p *CommandProcessor) processWatchCommand(cmd *Command) error {
	if p.watch == nil {
		return fmt.Errorf("イベントストリームは無効です")
	}
	if cmd.Enable != nil {
		p.watch.SetEnabled(*cmd.Enable)
	}
	p.printf("watch: %s\n", onOff(p.watch.Enabled()))
	return nil
}

func (p *CommandProcessor) processDebugCommand(cmd *Command) error {
	if p.debug == nil {
		return fmt.Errorf("デバッグ切り替えは利用できません")
	}
	if cmd.Enable != nil {
		p.debug.SetDebug(*cmd.Enable)
	}
	p.printf("debug: %s\n", onOff(p.debug.Debug()))
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
