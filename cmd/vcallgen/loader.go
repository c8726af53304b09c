package main

import (
	"go/types"
	"os"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/tools/go/packages"
)

const (
	jitPath   = "github.com/ajroetker/go-vcall/jit"
	vcallPath = "github.com/ajroetker/go-vcall/vcall"
)

// Interface is an interface resolved for generation.
type Interface struct {
	Spec     InterfaceSpec
	PkgName  string
	Prefix   string // exported prefix of generated names
	Methods  []Method
	Imports  map[string]string // import path -> package name
	Skipped  []string          // methods without a dispatchable signature
	Strategy string            // vcall function the shims call
}

// Method is one dispatchable interface method.
type Method struct {
	Name      string
	Args      string // argument type, as written in the output package
	Result    string // result type, as written in the output package
	HasActive bool   // takes the lane mask as second parameter
	HasError  bool   // returns an error as second result
}

// Load resolves every interface of cfg.
func Load(cfg *Config) ([]*Interface, error) {
	pkg, err := loadPackage(cfg)
	if err != nil {
		return nil, err
	}
	out := make([]*Interface, 0, len(cfg.Interfaces))
	for _, spec := range cfg.Interfaces {
		iface, err := resolveInterface(pkg, spec)
		if err != nil {
			return nil, err
		}
		out = append(out, iface)
	}
	return out, nil
}

func loadPackage(cfg *Config) (*packages.Package, error) {
	pcfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedSyntax | packages.NeedImports,
		Dir:  cfg.dir,
		Env:  append(os.Environ(), "GOWORK=off"),
	}
	pkgs, err := packages.Load(pcfg, cfg.Package)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", cfg.Package)
	}
	if len(pkgs) != 1 {
		return nil, errors.Errorf("pattern %s matches %d packages, want 1", cfg.Package, len(pkgs))
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		var msgs []string
		for _, e := range pkg.Errors {
			msgs = append(msgs, e.Error())
		}
		return nil, errors.Errorf("package errors:\n  %s", strings.Join(msgs, "\n  "))
	}
	return pkg, nil
}

func resolveInterface(pkg *packages.Package, spec InterfaceSpec) (*Interface, error) {
	obj := pkg.Types.Scope().Lookup(spec.Name)
	if obj == nil {
		return nil, errors.Errorf("interface %s not found in package %s", spec.Name, pkg.PkgPath)
	}
	typeName, ok := obj.(*types.TypeName)
	if !ok {
		return nil, errors.Errorf("%s is not a type in package %s", spec.Name, pkg.PkgPath)
	}
	it, ok := typeName.Type().Underlying().(*types.Interface)
	if !ok {
		return nil, errors.Errorf("%s is not an interface", spec.Name)
	}
	if named, ok := typeName.Type().(*types.Named); ok && named.TypeParams().Len() > 0 {
		return nil, errors.Errorf("%s is generic", spec.Name)
	}

	iface := &Interface{
		Spec:     spec,
		PkgName:  pkg.Name,
		Prefix:   exported(spec.Prefix),
		Imports:  map[string]string{jitPath: "jit", vcallPath: "vcall"},
		Strategy: strategies[spec.Strategy],
	}
	qualifier := func(p *types.Package) string {
		if p == pkg.Types {
			return ""
		}
		iface.Imports[p.Path()] = p.Name()
		return p.Name()
	}

	for i := range it.NumMethods() {
		fn := it.Method(i)
		if !fn.Exported() {
			continue
		}
		listed := len(spec.Methods) == 0 || slices.Contains(spec.Methods, fn.Name())
		if !listed {
			continue
		}
		m, err := resolveMethod(fn, qualifier)
		if err != nil {
			if len(spec.Methods) > 0 {
				return nil, errors.WithMessagef(err, "%s.%s", spec.Name, fn.Name())
			}
			iface.Skipped = append(iface.Skipped, fn.Name())
			continue
		}
		iface.Methods = append(iface.Methods, m)
	}
	for _, name := range spec.Methods {
		if !slices.ContainsFunc(iface.Methods, func(m Method) bool { return m.Name == name }) {
			return nil, errors.Errorf("%s has no exported method %s", spec.Name, name)
		}
	}
	if len(iface.Methods) == 0 {
		return nil, errors.Errorf("%s has no dispatchable method", spec.Name)
	}
	return iface, nil
}

// resolveMethod accepts the signatures
//
//	M(args A) R
//	M(args A, active jit.Bool) R
//
// where R is either a single result or a result followed by an error.
func resolveMethod(fn *types.Func, qualifier types.Qualifier) (Method, error) {
	sig := fn.Type().(*types.Signature)
	if sig.Variadic() {
		return Method{}, errors.New("variadic methods are not dispatchable")
	}
	params, results := sig.Params(), sig.Results()

	m := Method{Name: fn.Name()}
	switch params.Len() {
	case 2:
		if !isJitBool(params.At(1).Type()) {
			return Method{}, errors.Errorf("second parameter is %s, want jit.Bool", params.At(1).Type())
		}
		m.HasActive = true
	case 1:
	default:
		return Method{}, errors.Errorf("takes %d parameters, want 1 or 2", params.Len())
	}
	switch results.Len() {
	case 2:
		if !types.Identical(results.At(1).Type(), types.Universe.Lookup("error").Type()) {
			return Method{}, errors.Errorf("second result is %s, want error", results.At(1).Type())
		}
		m.HasError = true
	case 1:
	default:
		return Method{}, errors.Errorf("returns %d results, want 1 or 2", results.Len())
	}
	m.Args = types.TypeString(params.At(0).Type(), qualifier)
	m.Result = types.TypeString(results.At(0).Type(), qualifier)
	return m, nil
}

func isJitBool(t types.Type) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	if obj.Pkg() == nil || obj.Pkg().Path() != jitPath || obj.Name() != "Array" {
		return false
	}
	args := named.TypeArgs()
	if args.Len() != 1 {
		return false
	}
	basic, ok := args.At(0).(*types.Basic)
	return ok && basic.Kind() == types.Bool
}

// exported turns a configured prefix such as "shape" or "mesh_shape" into
// an exported Go identifier prefix ("Shape", "MeshShape").
func exported(prefix string) string {
	titler := cases.Title(language.English, cases.NoLower)
	parts := strings.FieldsFunc(prefix, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		parts[i] = titler.String(p)
	}
	return strings.Join(parts, "")
}
