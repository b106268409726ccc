// Package cfgstruct binds struct fields to command line flags using the
// `help`, `default`, `releaseDefault` and `internal` struct tags.
package cfgstruct

import (
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/pflag"
	"github.com/zeebo/errs"
)

// Error is the class of errors returned while binding a config struct.
var Error = errs.Class("cfgstruct")

// BindOpt changes how Bind resolves defaults.
type BindOpt func(opts *bindOptions)

type bindOptions struct {
	release bool
	vars    map[string]string
}

// UseReleaseDefaults prefers the `releaseDefault` tag over `default`.
func UseReleaseDefaults() BindOpt {
	return func(opts *bindOptions) {
		opts.release = true
	}
}

// Root sets the value substituted for $ROOT in defaults.
func Root(dir string) BindOpt {
	return Var("ROOT", dir)
}

// Var sets the value substituted for $name in defaults.
func Var(name, value string) BindOpt {
	return func(opts *bindOptions) {
		opts.vars[name] = value
	}
}

// Bind registers a flag on flags for every exported field of config, which
// must be a pointer to a struct. Nested structs are prefixed with their
// field name, so Log.MaxSize becomes "log.max-size".
func Bind(flags *pflag.FlagSet, config interface{}, opts ...BindOpt) {
	if err := TryBind(flags, config, opts...); err != nil {
		panic(err)
	}
}

// TryBind is Bind returning an error instead of panicking.
func TryBind(flags *pflag.FlagSet, config interface{}, opts ...BindOpt) error {
	o := &bindOptions{vars: map[string]string{}}
	for _, opt := range opts {
		opt(o)
	}
	ptr := reflect.ValueOf(config)
	if ptr.Kind() != reflect.Ptr || ptr.Elem().Kind() != reflect.Struct {
		return Error.New("expected pointer to struct, got %T", config)
	}
	return bindStruct(flags, "", ptr.Elem(), o)
}

func bindStruct(flags *pflag.FlagSet, prefix string, val reflect.Value, o *bindOptions) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.PkgPath != "" || field.Tag.Get("internal") == "true" {
			continue
		}
		name := prefix + Hyphenate(field.Name)
		fieldVal := val.Field(i)

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := bindStruct(flags, name+".", fieldVal, o); err != nil {
				return err
			}
			continue
		}

		def := field.Tag.Get("default")
		if o.release {
			if rel, ok := field.Tag.Lookup("releaseDefault"); ok {
				def = rel
			}
		}
		def = o.expand(def)
		help := field.Tag.Get("help")

		if err := bindField(flags, name, help, def, fieldVal); err != nil {
			return Error.New("field %s: %v", name, err)
		}
	}
	return nil
}

func bindField(flags *pflag.FlagSet, name, help, def string, val reflect.Value) error {
	ptr := val.Addr().Interface()
	switch p := ptr.(type) {
	case *string:
		flags.StringVar(p, name, def, help)
	case *bool:
		b, err := parseDefault(def, strconv.ParseBool, false)
		if err != nil {
			return err
		}
		flags.BoolVar(p, name, b, help)
	case *int:
		n, err := parseDefault(def, strconv.Atoi, 0)
		if err != nil {
			return err
		}
		flags.IntVar(p, name, n, help)
	case *int64:
		n, err := parseDefault(def, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }, 0)
		if err != nil {
			return err
		}
		flags.Int64Var(p, name, n, help)
	case *float64:
		f, err := parseDefault(def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }, 0)
		if err != nil {
			return err
		}
		flags.Float64Var(p, name, f, help)
	case *time.Duration:
		d, err := parseDefault(def, time.ParseDuration, 0)
		if err != nil {
			return err
		}
		flags.DurationVar(p, name, d, help)
	case *[]string:
		var list []string
		if def != "" {
			list = strings.Split(def, ",")
		}
		flags.StringSliceVar(p, name, list, help)
	default:
		return errs.New("unsupported type %s", val.Type())
	}
	return nil
}

func parseDefault[T any](def string, parse func(string) (T, error), zero T) (T, error) {
	if def == "" {
		return zero, nil
	}
	return parse(def)
}

func (o *bindOptions) expand(def string) string {
	for name, value := range o.vars {
		def = strings.ReplaceAll(def, "$"+name, value)
	}
	return def
}

// Hyphenate turns a Go field name into a flag name: "ConnMaxLifetime" -> "conn-max-lifetime".
func Hyphenate(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1])
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1])
			if prevLower || nextLower {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
