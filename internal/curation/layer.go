package curation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// CrucibleVersion is the schema version stamped into every saved layer.
const CrucibleVersion = "1.0.0"

// dataQualityWeights assigns the penalty weight each severity contributes
// to the data_quality_score formula (§4.8, an Open Question resolved here:
// see DESIGN.md).
var dataQualityWeights = map[Severity]float64{
	SeverityError:   1.0,
	SeverityWarning: 0.3,
	SeverityInfo:    0.05,
}

// Layer wraps a CurationLayer document with the single-writer mutex the
// concurrency model requires (§5: "Curation Layer mutation: single-writer").
// All mutation methods are linearizable and return the post-state.
type Layer struct {
	mu   sync.Mutex
	doc  CurationLayer
}

// New creates a Layer around a freshly inferred TableSchema, stamping
// created/updated timestamps and an initial empty Summary.
func New(source SourceMetadata, ctx CurationContext, schema TableSchema, now time.Time) *Layer {
	l := &Layer{doc: CurationLayer{
		Version:   CrucibleVersion,
		CreatedAt: now,
		UpdatedAt: now,
		Source:    source,
		Context:   ctx,
		Schema:    schema,
	}}
	l.doc.Summary = computeSummary(&l.doc)
	return l
}

// Document returns a deep-enough copy of the underlying document for
// read-only inspection (serialization, display).
func (l *Layer) Document() CurationLayer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doc
}

// HashContent returns the sha256 hex digest of raw source bytes, used both
// to stamp SourceMetadata.Hash on analysis and to detect staleness on load.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SetObservations replaces the observation set (called once, after
// validation) and recomputes the Summary.
func (l *Layer) SetObservations(obs []Observation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.doc.Observations = obs
	l.touch()
}

// SetSuggestions replaces the suggestion set (called once, after the
// suggestion engine runs) and recomputes the Summary.
func (l *Layer) SetSuggestions(sugs []Suggestion) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	obsIDs := make(map[string]bool, len(l.doc.Observations))
	for _, o := range l.doc.Observations {
		obsIDs[o.ID] = true
	}
	for _, s := range sugs {
		if !obsIDs[s.ObservationID] {
			return &IntegrityError{Kind: "suggestion->observation", ID: s.ObservationID}
		}
	}
	l.doc.Suggestions = sugs
	// Every suggestion starts with a Pending decision.
	decisions := make([]Decision, 0, len(sugs))
	for _, s := range sugs {
		decisions = append(decisions, Decision{
			ID:           PrefixedID("dec_", len(decisions)+1),
			SuggestionID: s.ID,
			Status:       DecisionPending,
			Timestamp:    l.doc.UpdatedAt,
		})
	}
	l.doc.Decisions = decisions
	l.touch()
	return nil
}

func (l *Layer) touch() {
	now := time.Now()
	l.doc.UpdatedAt = now
	l.doc.Summary = computeSummary(&l.doc)
}

func (l *Layer) findDecision(id string) (*Decision, error) {
	for i := range l.doc.Decisions {
		if l.doc.Decisions[i].ID == id {
			return &l.doc.Decisions[i], nil
		}
	}
	return nil, ErrNotFound
}

func (l *Layer) findDecisionBySuggestion(suggestionID string) (*Decision, error) {
	for i := range l.doc.Decisions {
		if l.doc.Decisions[i].SuggestionID == suggestionID {
			return &l.doc.Decisions[i], nil
		}
	}
	return nil, ErrNotFound
}

// Accept transitions the decision for suggestionID to Accepted (§6:
// `accept(suggestion_id, actor, notes?)`).
func (l *Layer) Accept(suggestionID, actor, notes string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, err := l.findDecisionBySuggestion(suggestionID)
	if err != nil {
		return Decision{}, err
	}
	d.Status = DecisionAccepted
	d.Actor = actor
	d.Notes = notes
	d.Timestamp = monotonicAfter(l.doc.Decisions, d.Timestamp)
	l.touch()
	return *d, nil
}

// Reject transitions a decision to Rejected (§6: `reject(id, actor, notes)`).
// id here is the decision id.
func (l *Layer) Reject(decisionID, actor, notes string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, err := l.findDecision(decisionID)
	if err != nil {
		return Decision{}, err
	}
	d.Status = DecisionRejected
	d.Actor = actor
	d.Notes = notes
	d.Timestamp = monotonicAfter(l.doc.Decisions, d.Timestamp)
	l.touch()
	return *d, nil
}

// Modify transitions a decision to Modified, recording overriding
// parameters (§6: `modify(id, actor, params, notes)`).
func (l *Layer) Modify(decisionID, actor string, params map[string]any, notes string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, err := l.findDecision(decisionID)
	if err != nil {
		return Decision{}, err
	}
	d.Status = DecisionModified
	d.Actor = actor
	d.Modifications = params
	d.Notes = notes
	d.Timestamp = monotonicAfter(l.doc.Decisions, d.Timestamp)
	l.touch()
	return *d, nil
}

// Reset transitions a decision back to Pending (§3: implemented as a status
// transition, never a deletion).
func (l *Layer) Reset(decisionID, actor string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, err := l.findDecision(decisionID)
	if err != nil {
		return Decision{}, err
	}
	d.Status = DecisionPending
	d.Actor = actor
	d.Modifications = nil
	d.Timestamp = monotonicAfter(l.doc.Decisions, d.Timestamp)
	l.touch()
	return *d, nil
}

// DecisionFilter selects a subset of decisions for batch operations.
type DecisionFilter struct {
	Column   string // only decisions whose suggestion's observation targets this column
	Severity Severity
}

// BatchAccept accepts every Pending decision matching filter.
func (l *Layer) BatchAccept(filter DecisionFilter, actor string) ([]Decision, error) {
	return l.batch(filter, actor, DecisionAccepted, "")
}

// BatchReject rejects every Pending decision matching filter.
func (l *Layer) BatchReject(filter DecisionFilter, actor, notes string) ([]Decision, error) {
	return l.batch(filter, actor, DecisionRejected, notes)
}

func (l *Layer) batch(filter DecisionFilter, actor string, status DecisionStatus, notes string) ([]Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	suggestionsByID := make(map[string]*Suggestion, len(l.doc.Suggestions))
	for i := range l.doc.Suggestions {
		suggestionsByID[l.doc.Suggestions[i].ID] = &l.doc.Suggestions[i]
	}
	obsByID := make(map[string]*Observation, len(l.doc.Observations))
	for i := range l.doc.Observations {
		obsByID[l.doc.Observations[i].ID] = &l.doc.Observations[i]
	}

	var touched []Decision
	for i := range l.doc.Decisions {
		d := &l.doc.Decisions[i]
		if d.Status != DecisionPending {
			continue
		}
		sug := suggestionsByID[d.SuggestionID]
		if sug == nil {
			continue
		}
		obs := obsByID[sug.ObservationID]
		if filter.Column != "" && (obs == nil || !containsString(obs.AffectedColumns(), filter.Column)) {
			continue
		}
		if filter.Severity != "" && (obs == nil || obs.Severity != filter.Severity) {
			continue
		}
		d.Status = status
		d.Actor = actor
		d.Notes = notes
		d.Timestamp = monotonicAfter(l.doc.Decisions, d.Timestamp)
		touched = append(touched, *d)
	}
	l.touch()
	return touched, nil
}

func containsString(items []string, target string) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}

// monotonicAfter returns a timestamp no earlier than the latest timestamp
// already present among decisions, satisfying the "Decision timestamps
// within a layer are non-decreasing in insertion order" property (§8).
func monotonicAfter(decisions []Decision, previous time.Time) time.Time {
	now := time.Now()
	latest := previous
	for _, d := range decisions {
		if d.Timestamp.After(latest) {
			latest = d.Timestamp
		}
	}
	if now.Before(latest) || now.Equal(latest) {
		return latest.Add(time.Nanosecond)
	}
	return now
}

// MarkStale flags the layer as computed against bytes that no longer match
// its recorded source hash; Apply refuses to run until this is cleared.
func (l *Layer) MarkStale(stale bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.doc.Stale = stale
}

// Save serializes the layer to path as sorted-key JSON (§6).
func (l *Layer) Save(path string) error {
	l.mu.Lock()
	doc := l.doc
	l.mu.Unlock()
	return saveDocument(doc, path)
}

// SaveWithHistory saves the primary file and a timestamped snapshot copy
// alongside it (§4.8's `save_with_history`).
func (l *Layer) SaveWithHistory(path string, now time.Time) (historyPath string, err error) {
	if err := l.Save(path); err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	historyPath = filepath.Join(dir, fmt.Sprintf("%s.%s%s", stem, now.UTC().Format("20060102T150405Z"), ext))
	l.mu.Lock()
	doc := l.doc
	l.mu.Unlock()
	if err := saveDocument(doc, historyPath); err != nil {
		return "", err
	}
	return historyPath, nil
}

func saveDocument(doc CurationLayer, path string) error {
	raw, err := MarshalLayer(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// MarshalLayer renders doc as sorted-key JSON, re-emitting any unknown
// top-level fields preserved from a prior load (§6 forward compatibility).
func MarshalLayer(doc CurationLayer) ([]byte, error) {
	base, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if len(doc.Extra) == 0 {
		return canonicalizeJSON(base)
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range doc.Extra {
		if _, exists := merged[k]; exists {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return canonicalizeJSON(out)
}

// canonicalizeJSON re-renders a JSON object with its top-level keys sorted,
// per §6's "sorted object keys at the top level".
func canonicalizeJSON(data []byte) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf []byte
	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, obj[k]...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// Load reads a layer document from path, preserving unknown fields and
// checking referential integrity (§4.8, §7: ErrLayerIntegrity is fatal).
func Load(path string) (*Layer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("curation: reading layer file: %w", err)
	}
	var doc CurationLayer
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("curation: parsing layer file: %w", err)
	}
	var extra map[string]json.RawMessage
	_ = json.Unmarshal(raw, &extra)
	known := map[string]bool{
		"crucible_version": true, "created_at": true, "updated_at": true,
		"source": true, "context": true, "schema": true, "observations": true,
		"suggestions": true, "decisions": true, "summary": true, "stale": true,
	}
	if len(extra) > 0 {
		doc.Extra = map[string]any{}
		for k, v := range extra {
			if known[k] {
				continue
			}
			var val any
			if err := json.Unmarshal(v, &val); err == nil {
				doc.Extra[k] = val
			}
		}
	}
	if err := checkIntegrity(&doc); err != nil {
		return nil, err
	}
	return &Layer{doc: doc}, nil
}

func checkIntegrity(doc *CurationLayer) error {
	obsIDs := make(map[string]bool, len(doc.Observations))
	for _, o := range doc.Observations {
		if obsIDs[o.ID] {
			return &IntegrityError{Kind: "duplicate observation id", ID: o.ID}
		}
		obsIDs[o.ID] = true
	}
	sugIDs := make(map[string]bool, len(doc.Suggestions))
	for _, s := range doc.Suggestions {
		if !obsIDs[s.ObservationID] {
			return &IntegrityError{Kind: "suggestion->observation", ID: s.ObservationID}
		}
		sugIDs[s.ID] = true
	}
	for _, d := range doc.Decisions {
		if !sugIDs[d.SuggestionID] {
			return &IntegrityError{Kind: "decision->suggestion", ID: d.SuggestionID}
		}
	}
	for _, o := range doc.Observations {
		for _, idx := range o.Evidence.RowIndices {
			if idx < 0 || idx >= doc.Source.RowCount {
				return &IntegrityError{Kind: "evidence_row", ID: o.ID}
			}
		}
	}
	return nil
}

// computeSummary recomputes the Summary fields from current layer state
// (§4.8: "recompute the Summary after each mutation").
func computeSummary(doc *CurationLayer) Summary {
	s := Summary{
		TotalColumns:            len(doc.Schema.Columns),
		TotalObservations:       len(doc.Observations),
		TotalSuggestions:        len(doc.Suggestions),
		CountsBySeverity:        map[string]int{},
		CountsByObservationType: map[string]int{},
		CountsByDecisionStatus:  map[string]int{},
	}
	for _, o := range doc.Observations {
		s.CountsBySeverity[string(o.Severity)]++
		s.CountsByObservationType[string(o.Type)]++
		s.TotalAffectedRows += o.AffectedRowCount()
	}
	for _, d := range doc.Decisions {
		s.CountsByDecisionStatus[string(d.Status)]++
	}
	s.DataQualityScore = dataQualityScore(doc)
	s.Recommendation = recommendation(s)
	return s
}

// dataQualityScore implements 1 - Σ_severity(weight × affected_fraction),
// clamped to [0,1], each severity's affected_fraction capped at 1 so one
// pervasive Error can't push the score negative before clamping (§4.8).
func dataQualityScore(doc *CurationLayer) float64 {
	rowCount := doc.Source.RowCount
	if rowCount == 0 {
		return 1.0
	}
	affected := map[Severity]int{}
	for _, o := range doc.Observations {
		affected[o.Severity] += o.AffectedRowCount()
	}
	penalty := 0.0
	for sev, weight := range dataQualityWeights {
		fraction := float64(affected[sev]) / float64(rowCount)
		if fraction > 1 {
			fraction = 1
		}
		penalty += weight * fraction
	}
	score := 1 - penalty
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func recommendation(s Summary) string {
	if s.CountsBySeverity["Error"] > 0 {
		return fmt.Sprintf("review %d error-level observations before export", s.CountsBySeverity["Error"])
	}
	if s.CountsBySeverity["Warning"] > 0 {
		return fmt.Sprintf("review %d warning-level observations before export", s.CountsBySeverity["Warning"])
	}
	if s.TotalObservations == 0 {
		return "no observations found; safe to export"
	}
	return fmt.Sprintf("review %d info-level observations before export", s.CountsBySeverity["Info"])
}
