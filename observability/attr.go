package observability

import (
	"github.com/gagliardetto/solana-go"
	"go.opentelemetry.io/otel/attribute"
)

const TxTypeKey attribute.Key = "tx.type"
const TxIDKey attribute.Key = "tx.id"
const ProgramKey attribute.Key = "program"
const UnitIDKey attribute.Key = "unit_id"
const NodeIDKey attribute.Key = "service.node.name" // ECS convention

func Round(round uint64) attribute.KeyValue {
	return attribute.Int64("round", int64(round)) /* #nosec G115 its unlikely that value of round exceeds int64 max value */
}

func UnitID(id solana.PublicKey) attribute.KeyValue {
	return UnitIDKey.String(id.String())
}

func TxID(sig solana.Signature) attribute.KeyValue {
	return TxIDKey.String(sig.String())
}

func TxType(typ string) attribute.KeyValue {
	return TxTypeKey.String(typ)
}

func Program(id solana.PublicKey) attribute.KeyValue {
	return ProgramKey.String(id.String())
}

func NodeID(id solana.PublicKey) attribute.KeyValue {
	return NodeIDKey.String(id.String())
}

/*
ErrStatus returns attribute named "status" with value "ok" if the param
err is nil and "err" when it is not.
*/
func ErrStatus(err error) attribute.KeyValue {
	status := "ok"
	if err != nil {
		status = "err"
	}
	return attribute.String("status", status)
}
