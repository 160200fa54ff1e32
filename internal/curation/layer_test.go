package curation

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLayer(t *testing.T, rowCount int) *Layer {
	t.Helper()
	schema := TableSchema{Columns: []ColumnSchema{{Name: "age", InferredType: TypeInteger}}}
	meta := SourceMetadata{File: "in.csv", RowCount: rowCount, ColumnCount: 1}
	return New(meta, CurationContext{}, schema, time.Unix(0, 0))
}

func TestSetSuggestions_RejectsOrphanObservationID(t *testing.T) {
	l := newTestLayer(t, 5)
	l.SetObservations([]Observation{{ID: "obs_1", Type: ObsOutlier, Severity: SeverityWarning}})

	err := l.SetSuggestions([]Suggestion{{ID: "sug_1", ObservationID: "obs_missing", Action: ActionFlag}})
	if err == nil {
		t.Fatal("expected an error for a suggestion referencing an unknown observation")
	}
}

func TestSetSuggestions_CreatesPendingDecisions(t *testing.T) {
	l := newTestLayer(t, 5)
	l.SetObservations([]Observation{{ID: "obs_1", Type: ObsOutlier, Severity: SeverityWarning}})

	if err := l.SetSuggestions([]Suggestion{{ID: "sug_1", ObservationID: "obs_1", Action: ActionFlag}}); err != nil {
		t.Fatalf("SetSuggestions returned error: %v", err)
	}

	doc := l.Document()
	if len(doc.Decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(doc.Decisions))
	}
	if doc.Decisions[0].Status != DecisionPending {
		t.Errorf("expected Pending status, got %s", doc.Decisions[0].Status)
	}
}

func TestAcceptRejectModifyReset(t *testing.T) {
	l := newTestLayer(t, 5)
	l.SetObservations([]Observation{{ID: "obs_1", Type: ObsOutlier, Severity: SeverityWarning}})
	if err := l.SetSuggestions([]Suggestion{{ID: "sug_1", ObservationID: "obs_1", Action: ActionFlag}}); err != nil {
		t.Fatalf("SetSuggestions returned error: %v", err)
	}
	decisionID := l.Document().Decisions[0].ID

	accepted, err := l.Accept("sug_1", "alice", "looks right")
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}
	if accepted.Status != DecisionAccepted {
		t.Errorf("expected Accepted, got %s", accepted.Status)
	}

	modified, err := l.Modify(decisionID, "bob", map[string]any{"mapping": map[string]string{"y": "yes"}}, "tweak")
	if err != nil {
		t.Fatalf("Modify returned error: %v", err)
	}
	if modified.Status != DecisionModified {
		t.Errorf("expected Modified, got %s", modified.Status)
	}

	rejected, err := l.Reject(decisionID, "carol", "no")
	if err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if rejected.Status != DecisionRejected {
		t.Errorf("expected Rejected, got %s", rejected.Status)
	}

	reset, err := l.Reset(decisionID, "dave")
	if err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	if reset.Status != DecisionPending {
		t.Errorf("expected Pending after reset, got %s", reset.Status)
	}
	if reset.Modifications != nil {
		t.Errorf("expected Modifications cleared after reset, got %v", reset.Modifications)
	}
}

func TestAccept_UnknownSuggestionID(t *testing.T) {
	l := newTestLayer(t, 5)
	if _, err := l.Accept("nope", "alice", ""); err == nil {
		t.Error("expected error for unknown suggestion id")
	}
}

func TestDataQualityScore_NoObservationsIsPerfect(t *testing.T) {
	l := newTestLayer(t, 10)
	if got := l.Document().Summary.DataQualityScore; got != 1.0 {
		t.Errorf("expected score 1.0 with no observations, got %f", got)
	}
}

func TestDataQualityScore_ErrorsPenalizeMoreThanWarnings(t *testing.T) {
	withError := newTestLayer(t, 10)
	withError.SetObservations([]Observation{{
		ID: "obs_1", Type: ObsOutlier, Severity: SeverityError,
		Evidence: Evidence{RowIndices: []int{0, 1}},
	}})

	withWarning := newTestLayer(t, 10)
	withWarning.SetObservations([]Observation{{
		ID: "obs_1", Type: ObsOutlier, Severity: SeverityWarning,
		Evidence: Evidence{RowIndices: []int{0, 1}},
	}})

	errScore := withError.Document().Summary.DataQualityScore
	warnScore := withWarning.Document().Summary.DataQualityScore
	if errScore >= warnScore {
		t.Errorf("expected error-severity score (%f) below warning-severity score (%f)", errScore, warnScore)
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	l := newTestLayer(t, 3)
	l.SetObservations([]Observation{{ID: "obs_1", Type: ObsOutlier, Severity: SeverityWarning}})
	if err := l.SetSuggestions([]Suggestion{{ID: "sug_1", ObservationID: "obs_1", Action: ActionFlag}}); err != nil {
		t.Fatalf("SetSuggestions returned error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "layer.json")
	if err := l.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	doc := loaded.Document()
	if len(doc.Observations) != 1 || doc.Observations[0].ID != "obs_1" {
		t.Errorf("unexpected observations after round trip: %+v", doc.Observations)
	}
	if len(doc.Suggestions) != 1 {
		t.Errorf("unexpected suggestions after round trip: %+v", doc.Suggestions)
	}
}

func TestLoad_RejectsBrokenIntegrity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	raw := []byte(`{"crucible_version":"1.0.0","suggestions":[{"id":"sug_1","observation_id":"missing","action":"Flag"}]}`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an integrity error loading a suggestion with no matching observation")
	}
}

func TestSaveWithHistory_WritesBothFiles(t *testing.T) {
	l := newTestLayer(t, 1)
	dir := t.TempDir()
	path := filepath.Join(dir, "layer.json")

	historyPath, err := l.SaveWithHistory(path, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("SaveWithHistory returned error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("primary file missing: %v", err)
	}
	if _, err := os.Stat(historyPath); err != nil {
		t.Errorf("history file missing: %v", err)
	}
}

func TestBatchAccept_FiltersByColumn(t *testing.T) {
	l := newTestLayer(t, 5)
	l.SetObservations([]Observation{
		{ID: "obs_1", Type: ObsOutlier, Severity: SeverityWarning, Column: "age"},
		{ID: "obs_2", Type: ObsOutlier, Severity: SeverityWarning, Column: "name"},
	})
	if err := l.SetSuggestions([]Suggestion{
		{ID: "sug_1", ObservationID: "obs_1", Action: ActionFlag},
		{ID: "sug_2", ObservationID: "obs_2", Action: ActionFlag},
	}); err != nil {
		t.Fatalf("SetSuggestions returned error: %v", err)
	}

	touched, err := l.BatchAccept(DecisionFilter{Column: "age"}, "alice")
	if err != nil {
		t.Fatalf("BatchAccept returned error: %v", err)
	}
	if len(touched) != 1 {
		t.Fatalf("expected 1 decision touched, got %d", len(touched))
	}

	doc := l.Document()
	for _, d := range doc.Decisions {
		if d.SuggestionID == "sug_2" && d.Status != DecisionPending {
			t.Errorf("expected untouched decision for sug_2 to remain Pending, got %s", d.Status)
		}
	}
}
