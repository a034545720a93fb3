package obfuscator

import (
	"github.com/whit3rabbit/luamixer/internal/scanner"
)

// Script types reported by DetectScriptType.
const (
	ScriptTypeLua  = "lua"
	ScriptTypeLuau = "luau"
)

// luauIdentMarkers are identifiers that only appear in Roblox/Luau scripts.
var luauIdentMarkers = map[string]bool{
	"game": true, "workspace": true, "script": true, "plugin": true,
	"task": true, "Instance": true, "Enum": true, "Vector3": true,
	"CFrame": true, "Color3": true, "UDim2": true, "TweenInfo": true,
	"continue": true, "typeof": true, "buffer": true,
}

// luauOpMarkers are operators Lua 5.1 does not have.
var luauOpMarkers = map[string]bool{
	"::": true, "+=": true, "-=": true, "*=": true, "/=": true,
	"%=": true, "^=": true, "//=": true, "..=": true, "->": true,
}

// DetectScriptType classifies source as plain Lua or Roblox-flavored Luau by
// scanning for identifiers and operators that only exist in the latter.
// Strings and comments never contribute markers.
func DetectScriptType(source string) string {
	for _, t := range scanner.Scan(source) {
		switch t.Kind {
		case scanner.KindIdent:
			if luauIdentMarkers[t.Text] {
				return ScriptTypeLuau
			}
		case scanner.KindOp:
			if luauOpMarkers[t.Text] {
				return ScriptTypeLuau
			}
		}
	}
	return ScriptTypeLua
}

// StripComments removes every comment token from source. A comment wedged
// directly between two words is replaced by a single space so the neighbors
// do not fuse into one token.
func StripComments(source string) string {
	toks := scanner.Scan(source)
	for i := range toks {
		if toks[i].Kind != scanner.KindComment {
			continue
		}
		if fusesNeighbors(toks, i) {
			toks[i].Text = " "
		} else {
			toks[i].Text = ""
		}
	}
	return scanner.Join(toks)
}

func fusesNeighbors(toks []scanner.Token, i int) bool {
	if i == 0 || i == len(toks)-1 {
		return false
	}
	prev, next := toks[i-1].Kind, toks[i+1].Kind
	wordy := func(k scanner.Kind) bool {
		return k == scanner.KindIdent || k == scanner.KindNumber
	}
	return wordy(prev) && wordy(next)
}
