// Package obfuscator orchestrates the transformation pipeline and holds the
// per-run session state.
package obfuscator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/whit3rabbit/luamixer/internal/config"
	"github.com/whit3rabbit/luamixer/internal/dispatch"
	"github.com/whit3rabbit/luamixer/internal/entropy"
	"github.com/whit3rabbit/luamixer/internal/naming"
	"github.com/whit3rabbit/luamixer/internal/nesting"
	"github.com/whit3rabbit/luamixer/internal/renamer"
	"github.com/whit3rabbit/luamixer/internal/scanner"
	"github.com/whit3rabbit/luamixer/internal/strenc"
	"github.com/whit3rabbit/luamixer/internal/validator"
)

// Report is the machine-readable summary of one obfuscation run.
type Report struct {
	ScriptType        string                `json:"script_type"`
	VariablesRenamed  int                   `json:"variables_renamed"`
	PassesCompleted   int                   `json:"passes_completed"`
	HandlersGenerated int                   `json:"handlers_generated"`
	AliasesCreated    int                   `json:"aliases_created"`
	CoverageGaps      int                   `json:"coverage_gaps"`
	LiteralsWrapped   int                   `json:"literals_wrapped"`
	StringsEncoded    int                   `json:"strings_encoded"`
	Seed              int64                 `json:"seed"`
	Validated         bool                  `json:"validated"`
	Valid             bool                  `json:"valid"`
	Diagnostic        *validator.Diagnostic `json:"diagnostic,omitempty"`
}

// Session owns the entropy source and name allocator for exactly one
// obfuscation run. The entropy call order through the pipeline is fixed, so
// the same seed and input always produce byte-identical output. A Session
// must not be reused: batch processing creates one per file.
type Session struct {
	cfg   *config.Config
	src   *entropy.Source
	alloc *naming.Allocator
	used  bool
}

// NewSession builds a session. Seed precedence: the explicit argument, then
// the config's seed, then system entropy.
func NewSession(cfg *config.Config, seed int64) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if seed == 0 {
		seed = cfg.Seed
	}
	var src *entropy.Source
	if seed == 0 {
		src = entropy.NewSystemSource()
	} else {
		src = entropy.NewSource(seed)
	}
	return &Session{
		cfg:   cfg,
		src:   src,
		alloc: naming.NewAllocator(src),
	}
}

// Seed returns the effective seed for this session.
func (s *Session) Seed() int64 {
	return s.src.Seed()
}

// ProcessSource runs the full pipeline over one chunk of source. The stage
// order is fixed: sniff, comment strip, rename, aliases, literal nesting,
// string encoding, dispatch scaffold, assembly, validation. String encoding
// runs after nesting so its byte arguments are not themselves wrapped.
// Reordering stages would change
// the entropy stream and break seed reproducibility.
func (s *Session) ProcessSource(ctx context.Context, source string) (string, *Report, error) {
	if s.used {
		return "", nil, fmt.Errorf("session already used, create one per input")
	}
	s.used = true

	report := &Report{
		Seed:       s.Seed(),
		ScriptType: DetectScriptType(source),
	}
	obf := s.cfg.Obfuscation

	body := source
	if obf.Comments.Strip {
		body = StripComments(body)
	}

	if obf.Rename.Enabled {
		ren := renamer.New(s.src, s.alloc, renamer.Options{
			LocalPolicy: renamePolicy(obf.Rename.Policy),
		})
		var stats renamer.Stats
		body, stats = ren.Rename(body)
		report.VariablesRenamed = stats.VariablesRenamed
		report.PassesCompleted = stats.PassesCompleted
		report.CoverageGaps = stats.CoverageGaps
	} else {
		// Generated names still must not collide with source identifiers.
		for _, t := range scanner.Scan(body) {
			if t.Kind == scanner.KindIdent {
				s.alloc.Reserve(t.Text)
			}
		}
	}

	var aliasPrelude string
	if obf.Aliases.Enabled {
		gen := renamer.NewAliasGenerator(s.alloc)
		aliasPrelude, body, report.AliasesCreated = gen.Apply(body)
	}

	var tablePrelude string
	if obf.Nesting.Enabled {
		nester := nesting.New(s.src, s.alloc, nestingOptions(obf.Nesting))
		body, report.LiteralsWrapped = nester.ApplyToLiterals(body)
		tablePrelude = nester.Prelude()
	}

	var strPrelude string
	if obf.Strings.Enabled {
		enc := strenc.New(s.src, s.alloc, strenc.Options{MinLength: obf.Strings.MinLength})
		body, report.StringsEncoded = enc.Apply(body)
		strPrelude = enc.Prelude()
	}

	var dispatchCode string
	if obf.Dispatch.Enabled {
		gen := dispatch.New(s.src, s.alloc, dispatch.Options{
			Metamorphic:  obf.Dispatch.Metamorphic,
			ScatterDepth: obf.Dispatch.ScatterDepth,
		})
		res := gen.Generate()
		report.HandlersGenerated = len(res.Handlers)
		dispatchCode = res.Code
	}

	out := assemble(tablePrelude, dispatchCode, aliasPrelude, strPrelude, body)

	if obf.Validation.Enabled {
		v := validator.New(obf.Validation.CompilerPath,
			time.Duration(obf.Validation.TimeoutSeconds)*time.Second)
		res, err := v.Check(ctx, out)
		if err != nil {
			return "", report, fmt.Errorf("validation failed to run: %w", err)
		}
		report.Validated = !res.Skipped
		report.Valid = res.Valid
		report.Diagnostic = res.Diagnostic
		if report.Validated && !res.Valid && s.cfg.AbortOnError {
			return "", report, fmt.Errorf("output rejected by %s: %s",
				obf.Validation.CompilerPath, diagText(res.Diagnostic))
		}
	}

	return out, report, nil
}

// assemble joins the output sections. The identity tables come first since
// wrapped literals in the body call into them; the alias prelude goes
// directly ahead of the body it rewrote.
func assemble(sections ...string) string {
	var parts []string
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func renamePolicy(name string) naming.Policy {
	switch name {
	case config.RenamePolicyShort:
		return naming.PolicyShort
	case config.RenamePolicyCompact:
		return naming.PolicyCompact
	default:
		return naming.PolicyFull
	}
}

func nestingOptions(cfg config.NestingConfig) nesting.Options {
	if cfg.Ultra {
		return nesting.UltraOptions()
	}
	return nesting.Options{
		TableCount:    cfg.TableCount,
		FuncsPerTable: cfg.FuncsPerTable,
		MinDepth:      cfg.MinDepth,
		MaxDepth:      cfg.MaxDepth,
		MinLiteral:    int64(cfg.MinLiteral),
		ArithmeticMix: cfg.ArithmeticProbability,
	}
}

func diagText(d *validator.Diagnostic) string {
	if d == nil {
		return "no diagnostic"
	}
	return fmt.Sprintf("line %d: %s", d.Line, d.Message)
}
