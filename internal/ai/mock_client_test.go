package ai

import (
	"context"
	"errors"
	"testing"
)

func TestMockAugmentor_ImplementsInterface(t *testing.T) {
	var _ Augmentor = (*MockAugmentor)(nil)
}

func TestMockAugmentor_DefaultResponses(t *testing.T) {
	mock := NewMockAugmentor()
	ctx := context.Background()

	t.Run("RefineSchema returns empty result", func(t *testing.T) {
		result, err := mock.RefineSchema(ctx, SchemaRefinementRequest{ColumnName: "age"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SchemaVersion != SchemaVersionSchemaRefinement {
			t.Errorf("expected schema version %s, got %s", SchemaVersionSchemaRefinement, result.SchemaVersion)
		}
	})

	t.Run("ExplainObservation returns empty result", func(t *testing.T) {
		result, err := mock.ExplainObservation(ctx, ObservationExplainRequest{ObservationType: "outlier"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SchemaVersion != SchemaVersionObservationExplain {
			t.Errorf("expected schema version %s, got %s", SchemaVersionObservationExplain, result.SchemaVersion)
		}
	})

	t.Run("CalibrateSuggestion returns empty result with rule confidence carried through", func(t *testing.T) {
		result, err := mock.CalibrateSuggestion(ctx, SuggestionRationaleRequest{ActionTag: "drop_column", RuleConfidence: 0.42})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SchemaVersion != SchemaVersionSuggestionRationale {
			t.Errorf("expected schema version %s, got %s", SchemaVersionSuggestionRationale, result.SchemaVersion)
		}
		if result.CalibratedConfidence != 0.42 {
			t.Errorf("expected calibrated confidence carried through as 0.42, got %f", result.CalibratedConfidence)
		}
	})
}

func TestMockAugmentorWithDefaults_RealisticResponses(t *testing.T) {
	mock := NewMockAugmentorWithDefaults()
	ctx := context.Background()

	t.Run("RefineSchema falls back to covariate for unknown role", func(t *testing.T) {
		result, err := mock.RefineSchema(ctx, SchemaRefinementRequest{ColumnName: "x", SemanticRole: ""})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.SemanticRole != "covariate" {
			t.Errorf("expected semantic role 'covariate', got %s", result.SemanticRole)
		}
		if result.RoleConfidence != 0.8 {
			t.Errorf("expected role confidence 0.8, got %f", result.RoleConfidence)
		}
	})

	t.Run("ExplainObservation references the observation type", func(t *testing.T) {
		result, err := mock.ExplainObservation(ctx, ObservationExplainRequest{ObservationType: "missing_value"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Explanation == "" {
			t.Error("expected non-empty explanation")
		}
	})

	t.Run("CalibrateSuggestion references the action tag", func(t *testing.T) {
		result, err := mock.CalibrateSuggestion(ctx, SuggestionRationaleRequest{ActionTag: "merge_columns", RuleConfidence: 0.6})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Rationale == "" {
			t.Error("expected non-empty rationale")
		}
	})
}

func TestMockAugmentor_CustomFunction(t *testing.T) {
	mock := NewMockAugmentor()
	ctx := context.Background()

	expectedErr := errors.New("AI is down")
	mock.RefineSchemaFunc = func(_ context.Context, _ SchemaRefinementRequest) (*SchemaRefinementResult, error) {
		return nil, expectedErr
	}

	_, err := mock.RefineSchema(ctx, SchemaRefinementRequest{ColumnName: "id"})
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected custom error, got: %v", err)
	}
}

func TestMockAugmentor_CallTracking(t *testing.T) {
	mock := NewMockAugmentorWithDefaults()
	ctx := context.Background()

	if mock.CallCount() != 0 {
		t.Error("expected 0 calls initially")
	}

	mock.RefineSchema(ctx, SchemaRefinementRequest{ColumnName: "id"})
	mock.RefineSchema(ctx, SchemaRefinementRequest{ColumnName: "title"})
	mock.ExplainObservation(ctx, ObservationExplainRequest{ObservationType: "outlier"})

	if mock.CallCount() != 3 {
		t.Errorf("expected 3 total calls, got %d", mock.CallCount())
	}

	if mock.CallCountFor("RefineSchema") != 2 {
		t.Errorf("expected 2 RefineSchema calls, got %d", mock.CallCountFor("RefineSchema"))
	}

	if mock.CallCountFor("ExplainObservation") != 1 {
		t.Errorf("expected 1 ExplainObservation call, got %d", mock.CallCountFor("ExplainObservation"))
	}

	last, ok := mock.LastCall()
	if !ok {
		t.Fatal("expected last call")
	}
	if last.Method != "ExplainObservation" {
		t.Errorf("expected last call to be ExplainObservation, got %s", last.Method)
	}
}

func TestMockAugmentor_Reset(t *testing.T) {
	mock := NewMockAugmentorWithDefaults()
	ctx := context.Background()

	mock.RefineSchema(ctx, SchemaRefinementRequest{ColumnName: "id"})
	mock.Reset()

	if mock.CallCount() != 0 {
		t.Error("expected 0 calls after reset")
	}
}

func TestMockAugmentor_GetModeAndModel(t *testing.T) {
	mock := NewMockAugmentor()

	if mock.GetMode() != "on" {
		t.Errorf("expected mode=on, got %s", mock.GetMode())
	}
	if mock.GetModel() != "gpt-4o-mini-mock" {
		t.Errorf("expected model=gpt-4o-mini-mock, got %s", mock.GetModel())
	}

	mock.Mode = "off"
	mock.Model = "custom-model"

	if mock.GetMode() != "off" {
		t.Errorf("expected mode=off, got %s", mock.GetMode())
	}
	if mock.GetModel() != "custom-model" {
		t.Errorf("expected model=custom-model, got %s", mock.GetModel())
	}
}

func TestMockAugmentor_ConcurrentSafety(t *testing.T) {
	mock := NewMockAugmentorWithDefaults()
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func() {
			mock.RefineSchema(ctx, SchemaRefinementRequest{ColumnName: "id"})
			mock.CallCount()
			mock.CallCountFor("RefineSchema")
			mock.LastCall()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 50; i++ {
		<-done
	}
}
