package renamer

import (
	"strings"

	"github.com/whit3rabbit/luamixer/internal/naming"
	"github.com/whit3rabbit/luamixer/internal/scanner"
)

// aliasableLibs are library tables whose member accesses can be hoisted
// into `local X = lib.member` aliases.
var aliasableLibs = map[string]bool{
	"math": true, "string": true, "table": true, "os": true,
	"bit32": true, "coroutine": true, "utf8": true, "buffer": true,
	"task": true, "debug": true,
}

// standaloneGlobals are bare globals worth aliasing on their own.
var standaloneGlobals = map[string]bool{
	"print": true, "pairs": true, "ipairs": true, "next": true,
	"select": true, "tostring": true, "tonumber": true, "type": true,
	"typeof": true, "pcall": true, "xpcall": true, "unpack": true,
	"rawget": true, "rawset": true, "rawequal": true, "setmetatable": true,
	"getmetatable": true, "assert": true, "error": true, "warn": true,
	"tick": true, "wait": true, "spawn": true,
}

// AliasGenerator hoists standard-library references into local aliases and
// rewrites the uses. Run after renaming: by then any local that shadowed a
// global name has been renamed away, so every remaining protected
// identifier really is the global.
type AliasGenerator struct {
	alloc *naming.Allocator
}

// NewAliasGenerator creates a generator drawing alias names from the
// session allocator.
func NewAliasGenerator(alloc *naming.Allocator) *AliasGenerator {
	return &AliasGenerator{alloc: alloc}
}

// Apply rewrites code, returning (prelude, rewritten, aliasesCreated). The
// prelude declares one local per distinct global or lib.member actually
// referenced; callers splice it ahead of the rewritten body. Assignment
// targets are never aliased: writing through an alias would set the local,
// not the global.
func (g *AliasGenerator) Apply(code string) (string, string, int) {
	toks := scanner.Scan(code)

	aliases := map[string]string{} // target expr -> alias name
	var order []string             // prelude emission order = first use

	aliasFor := func(target string) string {
		if name, ok := aliases[target]; ok {
			return name
		}
		name := g.alloc.FreshFor(naming.CategoryAlias)
		aliases[target] = name
		order = append(order, target)
		return name
	}

	curly := 0
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == scanner.KindOp {
			switch t.Text {
			case "{":
				curly++
			case "}":
				curly--
			}
			continue
		}
		if t.Kind != scanner.KindIdent {
			continue
		}
		if skipReference(toks, i, curly) {
			continue
		}

		if aliasableLibs[t.Text] {
			dot := scanner.NextSignificant(toks, i)
			if dot >= 0 && toks[dot].Kind == scanner.KindOp && toks[dot].Text == "." {
				member := scanner.NextSignificant(toks, dot)
				if member >= 0 && toks[member].Kind == scanner.KindIdent {
					after := scanner.NextSignificant(toks, member)
					if after >= 0 && (toks[after].Text == "=" || toks[after].Text == ".") {
						// Assignment target or deeper path; leave intact.
						i = member
						continue
					}
					target := t.Text + "." + toks[member].Text
					name := aliasFor(target)
					toks[i].Text = name
					// Blank the `.` and member tokens plus anything between.
					for j := i + 1; j <= member; j++ {
						toks[j].Text = ""
					}
					i = member
					continue
				}
			}
			continue
		}

		if standaloneGlobals[t.Text] {
			after := scanner.NextSignificant(toks, i)
			if after >= 0 && (toks[after].Text == "=" || toks[after].Text == "." || toks[after].Text == ":") {
				continue
			}
			toks[i].Text = aliasFor(t.Text)
		}
	}

	if len(order) == 0 {
		return "", scanner.Join(toks), 0
	}

	var prelude strings.Builder
	for _, target := range order {
		prelude.WriteString("local ")
		prelude.WriteString(aliases[target])
		prelude.WriteString(" = ")
		prelude.WriteString(target)
		prelude.WriteByte('\n')
	}
	return strings.TrimRight(prelude.String(), "\n"), scanner.Join(toks), len(order)
}
