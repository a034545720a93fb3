package naming

// NameCategory defines the kind of identifier being allocated. Categories
// share one collision space but map to different name shapes; FreshFor and
// the renamer's category passes key off these values.
type NameCategory string

const (
	CategoryLocal    NameCategory = "local"
	CategoryParam    NameCategory = "param"
	CategoryLoopVar  NameCategory = "loopvar"
	CategoryFunction NameCategory = "function"
	CategoryAlias    NameCategory = "alias"
	CategoryTable    NameCategory = "table"
	CategoryHandler  NameCategory = "handler"
)

// luaKeywords are never valid identifiers and must never be emitted or
// renamed. Matching is case-sensitive: Lua keywords are lowercase only.
var luaKeywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "goto": true,
	"if": true, "in": true, "local": true, "nil": true, "not": true,
	"or": true, "repeat": true, "return": true, "then": true, "true": true,
	"until": true, "while": true,
	// Luau context-sensitive additions; treating them as hard keywords is
	// safe for both dialects.
	"continue": true, "type": true, "export": true,
}

// protectedGlobals are standard-library and environment names whose meaning
// must survive obfuscation. They are never used as generated names and are
// never renamed when encountered in input.
var protectedGlobals = map[string]bool{
	// Lua 5.1 / Luau base library
	"_G": true, "_VERSION": true, "assert": true, "collectgarbage": true,
	"error": true, "gcinfo": true, "getfenv": true, "getmetatable": true,
	"ipairs": true, "loadstring": true, "newproxy": true, "next": true,
	"pairs": true, "pcall": true, "print": true, "rawequal": true,
	"rawget": true, "rawlen": true, "rawset": true, "select": true,
	"setfenv": true, "setmetatable": true, "tonumber": true, "tostring": true,
	"unpack": true, "xpcall": true, "require": true,
	// library tables
	"bit32": true, "buffer": true, "coroutine": true, "debug": true,
	"math": true, "os": true, "string": true, "table": true, "utf8": true, "io": true,
	// Roblox environment
	"game": true, "workspace": true, "script": true, "plugin": true,
	"shared": true, "Instance": true, "Vector2": true, "Vector3": true,
	"CFrame": true, "Color3": true, "BrickColor": true, "UDim": true,
	"UDim2": true, "Ray": true, "Rect": true, "Region3": true, "TweenInfo": true,
	"Enum": true, "NumberRange": true, "NumberSequence": true,
	"ColorSequence": true, "PhysicalProperties": true, "Random": true,
	"Axes": true, "Faces": true, "PathWaypoint": true, "RaycastParams": true,
	"OverlapParams": true, "DateTime": true, "task": true, "delay": true,
	"spawn": true, "tick": true, "time": true, "wait": true, "warn": true,
	"elapsedTime": true, "typeof": true, "settings": true, "UserSettings": true,
	// common soft-protected names scripts rely on
	"self": true, "arg": true, "...": true,
}

// IsKeyword reports whether name is a Lua/Luau keyword.
func IsKeyword(name string) bool {
	return luaKeywords[name]
}

// IsProtected reports whether name must keep its original meaning: keywords,
// standard-library globals and environment names.
func IsProtected(name string) bool {
	return luaKeywords[name] || protectedGlobals[name]
}
