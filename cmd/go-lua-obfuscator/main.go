/*
Lua Obfuscator (Entry Point)

Reads Lua or Luau source, applies seeded identifier renaming, literal
nesting through identity tables, dispatch scaffolding and alias rewriting,
and emits the transformed source. The same seed always reproduces the same
output byte for byte.
*/
package main

import (
	"github.com/whit3rabbit/luamixer/cmd/go-lua-obfuscator/cmd"
)

func main() {
	cmd.Execute()
}
