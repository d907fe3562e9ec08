package backend

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vcaesar/keycode"
)

// Keycode is a virtual key code as reported by the global input hook. Names
// and codes come from the same table the hook uses.
type Keycode uint16

var (
	keyNamesOnce sync.Once
	keyNames     map[Keycode]string
)

// ParseKey resolves a key name such as "f5", "a" or "enter" to its keycode.
func ParseKey(name string) (Keycode, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	code, ok := keycode.Keycode[normalized]
	if !ok || normalized == "" {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	return Keycode(code), nil
}

// MustParseKey is ParseKey for compile-time constant names. It panics on an
// unknown name.
func MustParseKey(name string) Keycode {
	code, err := ParseKey(name)
	if err != nil {
		panic(err)
	}
	return code
}

// String returns the key's name, or its numeric code when it has none.
func (k Keycode) String() string {
	if name, ok := Name(k); ok {
		return name
	}
	return fmt.Sprintf("keycode(%d)", uint16(k))
}

// Name returns the canonical name for k. Shifted symbols such as "+" or ":"
// are never canonical since they share a code with their unshifted key. Among
// the remaining names the shortest wins, ties broken alphabetically.
func Name(k Keycode) (string, bool) {
	keyNamesOnce.Do(buildKeyNames)
	name, ok := keyNames[k]
	return name, ok
}

func buildKeyNames() {
	names := make([]string, 0, len(keycode.Keycode))
	for name := range keycode.Keycode {
		if _, shifted := keycode.Special[name]; shifted {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})

	keyNames = make(map[Keycode]string, len(names))
	for _, name := range names {
		code := Keycode(keycode.Keycode[name])
		if _, taken := keyNames[code]; !taken {
			keyNames[code] = name
		}
	}
}
