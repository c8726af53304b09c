// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command vcallgen generates typed vcall dispatch shims for Go interfaces.
//
// Usage:
//
//	vcallgen -config vcallgen.yaml
//	vcallgen -config vcallgen.yaml -stdout
//
// Or via go:generate:
//
//	//go:generate go run github.com/ajroetker/go-vcall/cmd/vcallgen -config vcallgen.yaml
//
// The config names a package and the interfaces in it:
//
//	package: .
//	output: .
//	interfaces:
//	  - name: Shape
//	    domain: Shape
//	    strategy: call        # call (default), trace or reduce
//	    methods: [Area]       # default: every dispatchable method
//
// For every interface the generator writes <prefix>_vcall.go holding a
// dispatcher constructor and, for every method
//
//	M(args A) R
//	M(args A, active jit.Bool) R
//	M(args A) (R, error)
//	M(args A, active jit.Bool) (R, error)
//
// a function <Prefix><M>(d, self, mask, args) (R, error) that dispatches M
// over a batch of lanes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
)

var (
	configFile = flag.String("config", "vcallgen.yaml", "Generator config file")
	outputDir  = flag.String("output", "", "Output directory, overriding the config (relative to the config file)")
	toStdout   = flag.Bool("stdout", false, "Print the generated files instead of writing them")
)

func main() {
	flag.Parse()

	cfg, err := LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Output = *outputDir
	}

	gen := &Generator{Config: cfg, Stdout: *toStdout}
	results, err := gen.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, r := range results {
		if len(r.Interface.Skipped) > 0 {
			fmt.Fprintf(os.Stderr, "Warning: %s: skipped methods without a dispatchable signature: %s\n",
				r.Interface.Spec.Name, strings.Join(r.Interface.Skipped, ", "))
		}
		if !*toStdout {
			fmt.Printf("Generated %s (%d methods)\n", r.Path, len(r.Interface.Methods))
		}
	}
}
