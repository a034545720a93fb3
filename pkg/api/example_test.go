package api_test

import (
	"fmt"
	"log"

	"github.com/whit3rabbit/luamixer/internal/config"
	"github.com/whit3rabbit/luamixer/pkg/api"
)

func init() {
	config.Testing = true
}

// Obfuscate a code string with a fixed seed so the output is reproducible.
func Example() {
	obf, err := api.New(api.Options{Seed: 42, Silent: true})
	if err != nil {
		log.Fatal(err)
	}
	obf.Config.Obfuscation.Validation.Enabled = false

	_, report, err := obf.ObfuscateCode("local x = 1\nreturn x")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("seed=%d renamed=%d\n", report.Seed, report.VariablesRenamed)
	// Output: seed=42 renamed=1
}
