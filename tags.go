package avcodec

import (
	"strconv"
	"strings"
)

const (
	DefaultTagKey = "ddb"

	enumTagKey    = "___enum_tag"
	enumValuesKey = "___enum_values"
)

type fieldTag struct {
	name       string
	skip       bool
	omitEmpty  bool
	set        bool
	hasDefault bool
	defaultLit string
}

// parseFieldTag parses `name,omitempty,set,default=literal`. The default
// option must come last; its literal runs to the end of the tag and may
// contain commas.
func parseFieldTag(tag string) fieldTag {
	if tag == "-" {
		return fieldTag{skip: true}
	}
	name, rest, _ := strings.Cut(tag, ",")
	ft := fieldTag{name: name}
	for rest != "" {
		if lit, ok := strings.CutPrefix(rest, "default="); ok {
			ft.hasDefault, ft.defaultLit = true, lit
			break
		}
		var opt string
		opt, rest, _ = strings.Cut(rest, ",")
		switch opt {
		case "omitempty":
			ft.omitEmpty = true
		case "set":
			ft.set = true
		}
	}
	return ft
}

func isReservedName(name string) bool {
	return name == enumTagKey || name == enumValuesKey
}

func positionalKey(i int) string {
	if i < len(positionalKeys) {
		return positionalKeys[i]
	}
	return "_" + strconv.Itoa(i)
}

var positionalKeys = [...]string{"_0", "_1", "_2", "_3", "_4", "_5", "_6", "_7"}
