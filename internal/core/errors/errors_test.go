package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "resource not found")
		if err.Error() != "[NOT_FOUND] resource not found" {
			t.Errorf("expected [NOT_FOUND] resource not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		expected := "[INTERNAL_ERROR] internal failure: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeValidationError, "invalid input")
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeWithWrapped", func(t *testing.T) {
		original := errors.New("original error")
		err := fmt.Errorf("outer: %w", Wrap(original, CodeInternal, "internal failure"))
		if !IsCode(err, CodeInternal) {
			t.Error("expected IsCode to return true for wrapped CodeInternal")
		}
	})
}

func TestConversionTaxonomy(t *testing.T) {
	t.Run("UnresolvedReference", func(t *testing.T) {
		err := UnresolvedReference("B.java", "getCount", 7, "unknown receiver")
		if !IsCode(err, CodeUnresolvedReference) {
			t.Fatalf("expected UNRESOLVED_REFERENCE, got %v", err)
		}
		var de *DomainError
		if !errors.As(err, &de) {
			t.Fatal("expected DomainError")
		}
		if de.Context[CtxFile] != "B.java" || de.Context[CtxLine] != 7 {
			t.Errorf("unexpected context %v", de.Context)
		}
	})

	t.Run("ParseInput", func(t *testing.T) {
		cause := errors.New("syntax error at 3:1")
		err := ParseInput("A.java", cause)
		if CodeOf(err) != CodeParseInput {
			t.Errorf("expected PARSE_INPUT, got %s", CodeOf(err))
		}
		if !errors.Is(err, cause) {
			t.Error("expected cause to be preserved")
		}
	})

	t.Run("CodeOfForeign", func(t *testing.T) {
		if CodeOf(errors.New("plain")) != CodeInternal {
			t.Error("foreign errors classify as internal")
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := AddContext(New(CodeEmptyGroup, "no files"), CtxGroup, "ToObject")
		var de *DomainError
		if !errors.As(err, &de) || de.Context[CtxGroup] != "ToObject" {
			t.Fatalf("expected group context, got %v", err)
		}
		wrapped := AddContext(errors.New("io"), CtxPath, "/tmp/x")
		if !IsCode(wrapped, CodeInternal) {
			t.Error("foreign error should be wrapped as internal")
		}
	})
}
