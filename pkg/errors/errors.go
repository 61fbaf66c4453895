// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package errors provides machine-readable error codes for the graph engine,
// built on samber/oops so every error carries a code plus structured context.
package errors

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	// Validation failures: malformed input reaching the core.
	CodeGraphInvalidInput Code = "graph.validate.invalid_input"

	// Lookup failures: operation targets a logical key with no current version.
	CodeEntityNotFound   Code = "graph.entity.not_found"
	CodeRelationNotFound Code = "graph.relation.not_found"

	// Creation targets a logical key that already has a current version.
	CodeEntityExists   Code = "graph.entity.create.conflict"
	CodeRelationExists Code = "graph.relation.create.conflict"

	// Embedding failures: dimension mismatch or embedding-layer failure.
	CodeEmbeddingInvalid Code = "graph.embedding.invalid_input"
	CodeEmbeddingFailure Code = "graph.embedding.failure"

	// Store failures: underlying database error, contention timeout, or an
	// invariant violation detected at read time.
	CodeDatabaseFailure Code = "graph.database.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeServerStartFailure Code = "server.start.failure"
	CodeServerToolInvalid  Code = "server.tool.invalid_input"
	CodeCLISetupFailure    Code = "cli.setup.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldEntity(name string) Attr {
	return Field("entity", name)
}

func FieldRelation(from, to, relType string) Attr {
	return Field("relation", from+" -["+relType+"]-> "+to)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).Wrapf(err, format, args...)
}

// CodeOf extracts the Code from an error chain, or "" when none is attached.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}
	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}
	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

// FieldsOf returns the structured context attached to an error chain.
func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid_input" || r == "invalid_value"
}

func IsDatabaseFailure(err error) bool {
	return HasCode(err, CodeDatabaseFailure)
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
