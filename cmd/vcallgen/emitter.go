package main

import (
	"bytes"
	"fmt"
	"go/format"
	"maps"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// FileName returns the name of the file generated for iface.
func FileName(iface *Interface) string {
	return strings.ToLower(iface.Prefix) + "_vcall.go"
}

// Emit renders the dispatch shims of iface as a formatted Go file.
func Emit(iface *Interface) ([]byte, error) {
	var buf bytes.Buffer
	prefix := iface.Prefix
	typ := iface.Spec.Name

	fmt.Fprintf(&buf, "// Code generated by vcallgen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", iface.PkgName)

	fmt.Fprintf(&buf, "import (\n")
	for _, path := range slices.Sorted(maps.Keys(iface.Imports)) {
		name := iface.Imports[path]
		if path[strings.LastIndex(path, "/")+1:] == name {
			fmt.Fprintf(&buf, "\t%q\n", path)
		} else {
			fmt.Fprintf(&buf, "\t%s %q\n", name, path)
		}
	}
	fmt.Fprintf(&buf, ")\n\n")

	fmt.Fprintf(&buf, "// %sDomain is the registry domain of %s instances.\n", prefix, typ)
	fmt.Fprintf(&buf, "const %sDomain = %q\n\n", prefix, iface.Spec.Domain)

	fmt.Fprintf(&buf, "// New%sDispatcher returns a dispatcher over the %s instances registered in r.\n", prefix, typ)
	fmt.Fprintf(&buf, "func New%sDispatcher(b jit.Backend, r jit.Registry, opts ...vcall.Option) *vcall.Dispatcher[%s] {\n", prefix, typ)
	fmt.Fprintf(&buf, "\treturn vcall.New[%s](b, r, %sDomain, opts...)\n", typ, prefix)
	fmt.Fprintf(&buf, "}\n")

	for _, m := range iface.Methods {
		body := unexported(prefix) + m.Name + "Body"

		fmt.Fprintf(&buf, "\n// %s%s dispatches %s.%s over the lanes of self.\n", prefix, m.Name, typ, m.Name)
		fmt.Fprintf(&buf, "func %s%s(d *vcall.Dispatcher[%s], self jit.UInt32, mask jit.Bool, args %s) (%s, error) {\n",
			prefix, m.Name, typ, m.Args, m.Result)
		fmt.Fprintf(&buf, "\treturn vcall.%s(d, %q, %s, self, mask, args)\n", iface.Strategy, m.Name, body)
		fmt.Fprintf(&buf, "}\n\n")

		fmt.Fprintf(&buf, "func %s(inst %s, args %s, active jit.Bool) (%s, error) {\n", body, typ, m.Args, m.Result)
		call := "inst." + m.Name + "(args)"
		if m.HasActive {
			call = "inst." + m.Name + "(args, active)"
		}
		if m.HasError {
			fmt.Fprintf(&buf, "\treturn %s\n", call)
		} else {
			fmt.Fprintf(&buf, "\treturn %s, nil\n", call)
		}
		fmt.Fprintf(&buf, "}\n")
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "formatting shims of %s", typ)
	}
	return src, nil
}

func unexported(name string) string {
	r, n := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[n:]
}
