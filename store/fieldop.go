package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type opKind int

const (
	opUnchanged opKind = iota
	opSet
	opRemove
)

// FieldOp describes what to do with one field during an update. It is a
// three-state value: the zero value leaves the field untouched, [Set]
// overwrites it, and [Remove] deletes it from the record. Encoding the
// "intentionally cleared" case as its own state keeps it distinct from
// "not mentioned".
type FieldOp struct {
	kind  opKind
	value types.AttributeValue
	err   error
}

// Set returns a FieldOp that overwrites the field with v. v is marshaled
// with the attributevalue encoder; a marshal failure surfaces from
// [Store.Update].
func Set(v any) FieldOp {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return FieldOp{err: fmt.Errorf("marshal value: %w", err)}
	}
	return FieldOp{kind: opSet, value: av}
}

// SetAttr returns a FieldOp that overwrites the field with an
// already-marshaled attribute value.
func SetAttr(av types.AttributeValue) FieldOp {
	return FieldOp{kind: opSet, value: av}
}

// Remove returns a FieldOp that deletes the field from the record.
func Remove() FieldOp {
	return FieldOp{kind: opRemove}
}
