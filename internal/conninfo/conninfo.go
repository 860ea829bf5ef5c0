// Package conninfo extracts structured facts from XPC connection descriptors.
//
// The agent reports the connection half of every message as the object's debug
// description, e.g.
//
//	<OS_xpc_connection: <connection: 0x7f9b4c504cd0> { name = com.apple.lsd.mapdb,
//	  listener = false, pid = 91, euid = 0, egid = 0, asid = 100008 }>
//
// Knowing the service name and peer pid makes records groupable and lets span
// exporters attach them as attributes. Descriptors are repeated verbatim for
// every message on a connection, so parsed results are cached by string.
package conninfo

import (
	"regexp"
	"strconv"
	"strings"
)

// maxCached bounds the descriptor cache; it is reset once full.
const maxCached = 4096

// Info is what could be recovered from one descriptor.
type Info struct {
	Address  string
	Service  string
	Listener bool
	PID      int
	EUID     int
	Fields   map[string]string
}

// Resolver parses and caches connection descriptors.
//
// Usage:
//
//	r := New()
//	info := r.Lookup(record.Data.Conn) // nil if the descriptor is not recognized
type Resolver struct {
	cache map[string]*Info

	addressRegex *regexp.Regexp
	bodyRegex    *regexp.Regexp
}

// New creates a Resolver with compiled regexes.
func New() *Resolver {
	return &Resolver{
		cache:        make(map[string]*Info),
		addressRegex: regexp.MustCompile(`<connection: (0x[0-9a-fA-F]+)>`),
		bodyRegex:    regexp.MustCompile(`\{([^{}]*)\}`),
	}
}

// Lookup returns the parsed form of conn, or nil when conn is not a string
// descriptor with a recognizable body.
func (r *Resolver) Lookup(conn any) *Info {
	desc, ok := conn.(string)
	if !ok || desc == "" {
		return nil
	}

	if info, cached := r.cache[desc]; cached {
		return info
	}

	info := r.parse(desc)
	if len(r.cache) >= maxCached {
		r.cache = make(map[string]*Info)
	}
	r.cache[desc] = info
	return info
}

func (r *Resolver) parse(desc string) *Info {
	body := r.bodyRegex.FindStringSubmatch(desc)
	if body == nil {
		return nil
	}

	info := &Info{
		Fields: parseFields(body[1]),
		PID:    -1,
		EUID:   -1,
	}
	if len(info.Fields) == 0 {
		return nil
	}

	if m := r.addressRegex.FindStringSubmatch(desc); m != nil {
		info.Address = m[1]
	}
	info.Service = info.Fields["name"]
	info.Listener = info.Fields["listener"] == "true"
	if pid, err := strconv.Atoi(info.Fields["pid"]); err == nil {
		info.PID = pid
	}
	if euid, err := strconv.Atoi(info.Fields["euid"]); err == nil {
		info.EUID = euid
	}

	return info
}

// parseFields splits "a = b, c = d" into a map.
func parseFields(body string) map[string]string {
	fields := make(map[string]string)
	for _, pair := range strings.Split(body, ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fields[key] = strings.TrimSpace(value)
	}
	return fields
}

// Cached returns the number of cached descriptors.
func (r *Resolver) Cached() int {
	return len(r.cache)
}
