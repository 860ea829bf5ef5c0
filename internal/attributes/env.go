package attributes

import (
	"github.com/mrzor/xpcspy/internal/conninfo"
	"github.com/mrzor/xpcspy/internal/correlator"
)

// Env is the expression environment for one record.
type Env struct {
	Symbol    string            `expr:"symbol"`
	Timestamp int64             `expr:"timestamp"`
	Conn      any               `expr:"conn"`
	Message   any               `expr:"message"`
	Service   string            `expr:"service"`
	PID       int               `expr:"pid"`
	Fields    map[string]string `expr:"fields"`
}

// NewEnv builds the environment for rec. info may be nil.
func NewEnv(rec *correlator.Record, info *conninfo.Info) Env {
	env := Env{
		Symbol:    rec.Symbol,
		Timestamp: rec.Timestamp,
		PID:       -1,
		Fields:    map[string]string{},
	}
	if rec.Data != nil {
		env.Conn = rec.Data.Conn
		env.Message = rec.Data.Message
		if s, ok := rec.Data.Sentinel(); ok {
			env.Message = string(s)
		}
	}
	if info != nil {
		env.Service = info.Service
		env.PID = info.PID
		env.Fields = info.Fields
	}
	return env
}
