// Package clix maps urfave/cli flag values onto component config structs
// through `cli:"flag-name"` tags, so every component can declare what it
// needs and the daemon wires flags once.
package clix

import (
	"reflect"
	"time"

	"github.com/urfave/cli/v2"
)

// Parse builds a zero A and fills every tagged field from the cli context.
// Untagged embedded structs are walked recursively.
func Parse[A any](c *cli.Context) A {
	var cfg A
	fill(c, reflect.ValueOf(&cfg).Elem())
	return cfg
}

func fill(c *cli.Context, val reflect.Value) {
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := val.Type().Field(i)

		tag := fieldType.Tag.Get("cli")

		if tag == "" && field.Kind() == reflect.Struct {
			if field.Addr().CanInterface() {
				fill(c, field)
			}
			continue
		}
		if tag == "" {
			continue
		}

		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			field.Set(reflect.ValueOf(c.Duration(tag)))
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(c.String(tag))
		case reflect.Int, reflect.Int64:
			field.SetInt(c.Int64(tag))
		case reflect.Uint, reflect.Uint64:
			field.SetUint(c.Uint64(tag))
		case reflect.Bool:
			field.SetBool(c.Bool(tag))
		case reflect.Float64:
			field.SetFloat(c.Float64(tag))
		case reflect.Slice:
			switch field.Type() {
			case reflect.TypeOf([]string{}):
				field.Set(reflect.ValueOf(c.StringSlice(tag)))
			case reflect.TypeOf([]int{}):
				field.Set(reflect.ValueOf(c.IntSlice(tag)))
			}
		}
	}
}
