// Package assert panics on programmer errors, never on bad input from a remote site.
package assert

import "fmt"

func NotNil(value any, what string) {
	if value == nil {
		panic(fmt.Sprintf("expected %s to be not nil", what))
	}
}

func NotEmptyStr(str string, what string) {
	if str == "" {
		panic(fmt.Sprintf("expected %s to be a non-empty string", what))
	}
}
