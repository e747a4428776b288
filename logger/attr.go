package logger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/gagliardetto/solana-go"
)

/*
Log attribute key values. Generally shouldn't be used directly, use
appropriate "attribute constructor function" instead.

Only define names here if they are common for multiple modules, module
specific names should be defined in the module.
*/
const (
	NodeIDKey  = "node_id"
	ModuleKey  = "module"
	ErrorKey   = "err"
	RoundKey   = "round"
	UnitIDKey  = "unit_id"
	TxIDKey    = "tx_id"
	ProgramKey = "program"
	DataKey    = "data"

	traceID = "TraceId" // OTEL data model
	spanID  = "SpanId"  // OTEL data model
)

// nodeID is a distinct type so that attribute formatters can recognize it.
type nodeID solana.PublicKey

func (id nodeID) String() string { return solana.PublicKey(id).String() }

/*
NodeID adds "node ID" field, ie the public key of the node's identity.

This function should be used with logger.With() method to create sub-logger
for the node (rather than adding NodeID call to individual logging calls).
*/
func NodeID(id solana.PublicKey) slog.Attr {
	return slog.Any(NodeIDKey, nodeID(id))
}

/*
Error adds error to the log

	if err:= f(); err != nil {
		log.Error("calling f", logger.Error(err))
	}
*/
func Error(err error) slog.Attr {
	return slog.Any(ErrorKey, err)
}

/*
Data adds additional data field to the message.

slog.GroupValue shouldn't be used as the data - in the ECS formatter all
groups will end up under the same key possibly causing problems with index!

Use of anonymous types is discouraged too.
*/
func Data(d any) slog.Attr {
	return slog.Any(DataKey, d)
}

/*
UnitID is used to log address of the primary unit (account, market, bet,...)
associated to the logging call.
*/
func UnitID(id solana.PublicKey) slog.Attr {
	return slog.String(UnitIDKey, id.String())
}

func Round(round uint64) slog.Attr {
	return slog.Uint64(RoundKey, round)
}

// TxID logs the transaction identifier, ie the fee payer's signature.
func TxID(sig solana.Signature) slog.Attr {
	return slog.String(TxIDKey, sig.String())
}

func Program(id solana.PublicKey) slog.Attr {
	return slog.String(ProgramKey, id.String())
}

/*
composeAttrFmt combines attribute formatters into single func.
If input contains nil values those are discarded.
*/
func composeAttrFmt(f ...func(groups []string, a slog.Attr) slog.Attr) func(groups []string, a slog.Attr) slog.Attr {
	f = slices.DeleteFunc(f, func(f func(groups []string, a slog.Attr) slog.Attr) bool { return f == nil })
	switch len(f) {
	case 0:
		return nil
	case 1:
		return f[0]
	default:
		head, tail := f[0], composeAttrFmt(f[1:]...)
		return func(groups []string, a slog.Attr) slog.Attr {
			return tail(groups, head(groups, a))
		}
	}
}

func formatTimeAttr(format string) func(groups []string, a slog.Attr) slog.Attr {
	switch format {
	case "":
		// whatever handler does by default...
		return nil
	case "none":
		return func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		}
	default:
		return func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t := a.Value.Time(); !t.IsZero() {
					a.Value = slog.StringValue(t.Format(format))
				}
			}
			return a
		}
	}
}

/*
formatNodeIDAttr returns formatter for the node ID attribute:
  - "none": node ID is dropped from output;
  - "short": only first and last characters of the ID are kept;
  - anything else: handler default, ie full base58 key.
*/
func formatNodeIDAttr(format string) func(groups []string, a slog.Attr) slog.Attr {
	switch format {
	case "none":
		return func(groups []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(nodeID); ok {
					return slog.Attr{}
				}
			}
			return a
		}
	case "short":
		return func(groups []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if id, ok := a.Value.Any().(nodeID); ok {
					s := id.String()
					if len(s) > 10 {
						s = fmt.Sprintf("%s*%s", s[:2], s[len(s)-6:])
					}
					a.Value = slog.StringValue(s)
				}
			}
			return a
		}
	default:
		return nil
	}
}

func formatDataAttrAsJSON(groups []string, a slog.Attr) slog.Attr {
	if a.Key == DataKey && a.Value.Kind() == slog.KindAny {
		if b, err := json.Marshal(a.Value.Any()); err == nil {
			a.Value = slog.StringValue(string(b))
		}
	}
	return a
}

/*
formatAttrECS is a "poor man's ECS handler" ie it formats some well known
attributes according to the ECS spec.
*/
func formatAttrECS(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.MessageKey:
		return slog.String("message", a.Value.String())
	case slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok {
			trimSource(src)
			return slog.Group(
				"log",
				slog.Group(
					"origin",
					slog.String("function", src.Function),
					slog.Group("file", slog.String("name", src.File), slog.Int("line", src.Line)),
				),
			)
		}
	case NodeIDKey:
		return slog.Group("service", slog.Group("node", slog.String("name", a.Value.String())))
	case ErrorKey:
		return slog.Group("error", slog.Any("message", a.Value.Any()))
	case DataKey:
		// nest the value under it's type name so that different types
		// logged as "data" do not conflict in the index
		return slog.Group(DataKey, slog.Any(dataName(a.Value), a.Value))
	case traceID:
		return slog.Group("trace", slog.String("id", a.Value.String()))
	case spanID:
		return slog.Group("span", slog.String("id", a.Value.String()))
	}
	return a
}

/*
dataName returns name of the data type of "v", suitable to act as a "namespace"
for the value in ECS format.
*/
func dataName(v slog.Value) string {
	switch v.Kind() {
	case slog.KindAny, slog.KindLogValuer:
		rt := reflect.TypeOf(v.Any())
		// strip leading "*" of pointer types and replace "." with "_"
		return strings.ReplaceAll(strings.TrimLeft(rt.String(), "*"), ".", "_")
	default:
		return v.Kind().String()
	}
}

/*
trimSource shortens the "function" name field in "src" by trimming the
package name from it.
*/
func trimSource(src *slog.Source) {
	// github.com/polysight-org/polysight/partition.(*Node).Run -> (*Node).Run
	_, src.Function = filepath.Split(src.Function)
	if s := strings.SplitAfterN(src.Function, ".", 2); len(s) == 2 {
		src.Function = s[1]
	}
}
