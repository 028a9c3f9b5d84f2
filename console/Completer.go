package console

import (
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/chzyer/readline"
	"golang.org/x/exp/slices"
)

// DomainSource は補完候補となるドメインを提供する
type DomainSource interface {
	Domains() []string
}

// dynamicCompleter は readline.AutoCompleter の実装
type dynamicCompleter struct {
	src DomainSource
}

var _ readline.AutoCompleter = (*dynamicCompleter)(nil)

// Do メソッドを実装して readline.AutoCompleter インターフェースを満たす
func (dc *dynamicCompleter) Do(line []rune, pos int) (newLine [][]rune, length int) {
	words := splitWords(string(line[:pos]))

	lastWord := ""
	if len(words) > 0 {
		lastWord = words[len(words)-1]
	}

	var candidates []prompt.Suggest
	if len(words) <= 1 {
		candidates = getCommandCandidates()
	} else {
		candidates = getCandidatesForCommand(dc.src, words)
	}

	result := [][]rune{}
	for _, s := range prompt.FilterHasPrefix(candidates, lastWord, false) {
		result = append(result, []rune(s.Text[len(lastWord):]+" "))
	}
	return result, len(lastWord)
}

// getCommandCandidates はコマンド名の候補を返す
func getCommandCandidates() []prompt.Suggest {
	suggests := make([]prompt.Suggest, 0, len(CommandTable))
	for _, cmdDef := range CommandTable {
		suggests = append(suggests, prompt.Suggest{Text: cmdDef.Name, Description: cmdDef.Summary})
		for _, alias := range cmdDef.Aliases {
			suggests = append(suggests, prompt.Suggest{Text: alias, Description: cmdDef.Summary})
		}
	}
	return suggests
}

// getCandidatesForCommand はコマンドと引数位置に応じた候補を返す
func getCandidatesForCommand(src DomainSource, words []string) []prompt.Suggest {
	cmd := words[0]
	for _, cmdDef := range CommandTable {
		if cmdDef.Name == cmd || slices.Contains(cmdDef.Aliases, cmd) {
			if cmdDef.GetCandidatesFunc != nil {
				return cmdDef.GetCandidatesFunc(src, words)
			}
			break
		}
	}
	return []prompt.Suggest{}
}

// getDomainCandidates は読み込み済みの全ドメインを返す
func getDomainCandidates(src DomainSource) []prompt.Suggest {
	if src == nil {
		return []prompt.Suggest{}
	}
	domains := src.Domains()
	suggests := make([]prompt.Suggest, 0, len(domains))
	for _, d := range domains {
		suggests = append(suggests, prompt.Suggest{Text: d})
	}
	return suggests
}

// getBranchCandidates は読み込み済みのブランチのドメインを返す
func getBranchCandidates(src DomainSource) []prompt.Suggest {
	all := getDomainCandidates(src)
	suggests := make([]prompt.Suggest, 0, len(all))
	for _, s := range all {
		if strings.HasSuffix(s.Text, "/") {
			suggests = append(suggests, s)
		}
	}
	return suggests
}

// splitWords は入力行を単語に分割する補助関数
// 引用符内の空白は単語の一部として扱い、末尾が空白なら空の単語を1つ追加する
func splitWords(line string) []string {
	if line == "" {
		return []string{}
	}

	words := make([]string, 0)
	var word strings.Builder
	inQuote := false
	lastWasSpace := true // 最初はスペースとみなす

	for _, r := range line {
		switch r {
		case ' ', '\t':
			if !inQuote {
				if !lastWasSpace && word.Len() > 0 {
					words = append(words, word.String())
					word.Reset()
				}
				lastWasSpace = true
			} else {
				word.WriteRune(r)
				lastWasSpace = false
			}
		case '"', '\'':
			inQuote = !inQuote
			lastWasSpace = false
		default:
			word.WriteRune(r)
			lastWasSpace = false
		}
	}

	if word.Len() > 0 {
		words = append(words, word.String())
	}

	if lastWasSpace {
		words = append(words, "")
	}
	return words
}
