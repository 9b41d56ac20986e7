package vcf

import "strings"

// Info is an ordered INFO column. Keys keep their first-seen order so a
// record serializes the way it was read, plus any keys added later.
type Info struct {
	keys   []string
	values map[string]infoValue
}

type infoValue struct {
	value string
	flag  bool
}

// NewInfo returns an empty INFO column.
func NewInfo() *Info {
	return &Info{values: make(map[string]infoValue)}
}

// ParseInfo parses the INFO field into an ordered key/value mapping.
// Entries without '=' are flags.
func ParseInfo(info string) *Info {
	in := NewInfo()
	if info == "" || info == "." {
		return in
	}

	for _, kv := range strings.Split(info, ";") {
		if kv == "" {
			continue
		}
		key, value, ok := strings.Cut(kv, "=")
		if ok {
			in.Set(key, value)
		} else {
			// Flag-type INFO field
			in.SetFlag(key)
		}
	}
	return in
}

// Len returns the number of keys.
func (in *Info) Len() int {
	if in == nil {
		return 0
	}
	return len(in.keys)
}

// Keys returns the keys in serialization order.
func (in *Info) Keys() []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in.keys...)
}

// Has reports whether key is present, as a value or a flag.
func (in *Info) Has(key string) bool {
	if in == nil {
		return false
	}
	_, ok := in.values[key]
	return ok
}

// Get returns the value stored under key. Flags return "" and true.
func (in *Info) Get(key string) (string, bool) {
	if in == nil {
		return "", false
	}
	v, ok := in.values[key]
	return v.value, ok
}

// IsFlag reports whether key is present as a flag.
func (in *Info) IsFlag(key string) bool {
	if in == nil {
		return false
	}
	return in.values[key].flag
}

// Set stores value under key, appending key if it is new.
func (in *Info) Set(key, value string) {
	in.put(key, infoValue{value: value})
}

// SetFlag stores key as a flag.
func (in *Info) SetFlag(key string) {
	in.put(key, infoValue{flag: true})
}

func (in *Info) put(key string, v infoValue) {
	if _, ok := in.values[key]; !ok {
		in.keys = append(in.keys, key)
	}
	in.values[key] = v
}

// Delete removes key.
func (in *Info) Delete(key string) {
	if _, ok := in.values[key]; !ok {
		return
	}
	delete(in.values, key)
	for i, k := range in.keys {
		if k == key {
			in.keys = append(in.keys[:i], in.keys[i+1:]...)
			break
		}
	}
}

// Clone returns an independent copy.
func (in *Info) Clone() *Info {
	out := NewInfo()
	if in == nil {
		return out
	}
	out.keys = append(out.keys, in.keys...)
	for k, v := range in.values {
		out.values[k] = v
	}
	return out
}

// String serializes the column, "." when empty.
func (in *Info) String() string {
	if in.Len() == 0 {
		return "."
	}
	var b strings.Builder
	for i, k := range in.keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		if v := in.values[k]; !v.flag {
			b.WriteByte('=')
			b.WriteString(v.value)
		}
	}
	return b.String()
}
