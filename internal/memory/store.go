package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"codenerd-cognitive/internal/config"
	"codenerd-cognitive/internal/logging"
)

// Embedder produces an embedding vector for a text, used by
// retrieve_relevant's semantic-similarity term. Store degrades
// gracefully to keyword-only retrieval when no Embedder is supplied,
// since concrete embedding providers are an external collaborator.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Repository persists records across restarts. A nil Repository leaves
// the Store purely in-memory.
type Repository interface {
	Save(ctx context.Context, r *Record) error
	LoadAll(ctx context.Context) ([]*Record, error)
	Delete(ctx context.Context, id string) error
}

// ValidationError reports invalid input to a memory store operation.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("memory: invalid %s: %s", e.Field, e.Msg)
}

func nextID() string {
	return "mem-" + uuid.NewString()
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Store is the memory store's exclusive owner of record storage; all
// queries return immutable views (copies).
type Store struct {
	mu          sync.RWMutex
	records     map[string]*Record
	byHash      map[string]string // content hash -> semantic record id, for dedup
	repo        Repository
	embedder    Embedder
	constants   config.SalienceConstants
	consolidate config.ConsolidationRule
	weights     config.RetrievalWeights
	maxCount    int
	pruneThresh float64
	hardCap     int // absolute ceiling across all records, 0 means unbounded

	onConsolidated func(episodicID, semanticID string)
	onForgotten    func(id string)
}

// SetHardCap bounds the total number of live (non-tombstoned) records
// Maintain will allow, mirroring config.CoreLimits.MaxMemoryRecords. When
// exceeded, Maintain force-forgets the lowest-salience records down to
// the cap regardless of the prune threshold. A value of 0 leaves the
// store bounded only by maxCount/pruneThresh.
func (s *Store) SetHardCap(max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hardCap = max
}

// Options configures a new Store.
type Options struct {
	Repository           Repository
	Embedder              Embedder
	SalienceConstants     config.SalienceConstants
	ConsolidationRule     config.ConsolidationRule
	RetrievalWeights      config.RetrievalWeights
	MaxCount              int
	PruneThreshold        float64
}

// New creates a memory store. If opts.Repository is non-nil, existing
// records are loaded from it synchronously.
func New(opts Options) (*Store, error) {
	if opts.MaxCount <= 0 {
		opts.MaxCount = 10000
	}
	if opts.PruneThreshold <= 0 {
		opts.PruneThreshold = 0.1
	}
	s := &Store{
		records:     make(map[string]*Record),
		byHash:      make(map[string]string),
		repo:        opts.Repository,
		embedder:    opts.Embedder,
		constants:   opts.SalienceConstants,
		consolidate: opts.ConsolidationRule,
		weights:     opts.RetrievalWeights,
		maxCount:    opts.MaxCount,
		pruneThresh: opts.PruneThreshold,
	}

	if s.repo != nil {
		existing, err := s.repo.LoadAll(context.Background())
		if err != nil {
			return nil, fmt.Errorf("memory: load existing records: %w", err)
		}
		for _, r := range existing {
			s.records[r.ID] = r
			if r.Type == TypeSemantic && r.ContentHash != "" {
				s.byHash[r.ContentHash] = r.ID
			}
		}
		logging.Memory("restored %d records from repository", len(existing))
	}

	return s, nil
}

// OnConsolidated registers a callback fired after an episodic record is
// promoted to semantic.
func (s *Store) OnConsolidated(cb func(episodicID, semanticID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConsolidated = cb
}

// OnForgotten registers a callback fired when a record is tombstoned.
func (s *Store) OnForgotten(cb func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onForgotten = cb
}

func (s *Store) persist(r *Record) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(context.Background(), r); err != nil {
		logging.MemoryWarn("persist record %s failed: %v", r.ID, err)
	}
}

// WriteEpisodic stores a new episodic record.
func (s *Store) WriteEpisodic(event, ctx, outcome string, importance, emotionalWeight float64, tags []string) (*Record, error) {
	if event == "" {
		return nil, &ValidationError{Field: "event", Msg: "must not be empty"}
	}
	now := time.Now()
	r := &Record{
		ID:              nextID(),
		Type:            TypeEpisodic,
		CreatedAt:       now,
		LastAccess:      now,
		AccessCount:     0,
		Importance:      clampUnit(importance),
		EmotionalWeight: clampRange(emotionalWeight, 0, 2),
		Content:         event + " " + ctx + " " + outcome,
		Tags:            tags,
		Episodic:        &Episodic{Event: event, Context: ctx, Outcome: outcome},
	}
	return s.insert(r)
}

// WriteSemantic stores a new semantic record, deduplicating by content
// hash: a repeated fact returns the existing record unmodified.
func (s *Store) WriteSemantic(fact, category string, confidence float64, verified bool, importance float64, tags []string) (*Record, error) {
	if fact == "" {
		return nil, &ValidationError{Field: "fact", Msg: "must not be empty"}
	}
	hash := contentHash(fact)

	s.mu.Lock()
	if existingID, ok := s.byHash[hash]; ok {
		existing := s.records[existingID]
		s.mu.Unlock()
		return cloneRecord(existing), nil
	}
	s.mu.Unlock()

	now := time.Now()
	r := &Record{
		ID:              nextID(),
		Type:            TypeSemantic,
		CreatedAt:       now,
		LastAccess:      now,
		Importance:      clampUnit(importance),
		EmotionalWeight: 0,
		Content:         fact,
		ContentHash:     hash,
		Tags:            tags,
		Semantic:        &Semantic{Fact: fact, Category: category, Confidence: confidence, Verified: verified},
	}

	s.mu.Lock()
	s.byHash[hash] = r.ID
	s.mu.Unlock()

	return s.insert(r)
}

// WriteProcedural stores a new procedural (skill) record.
func (s *Store) WriteProcedural(skillName string, steps []string, successRate, importance float64, tags []string) (*Record, error) {
	if skillName == "" {
		return nil, &ValidationError{Field: "skillName", Msg: "must not be empty"}
	}
	now := time.Now()
	r := &Record{
		ID:          nextID(),
		Type:        TypeProcedural,
		CreatedAt:   now,
		LastAccess:  now,
		Importance:  clampUnit(importance),
		Content:     skillName + " " + strings.Join(steps, " "),
		Tags:        tags,
		Procedural:  &Procedural{SkillName: skillName, Steps: steps, SuccessRate: successRate},
	}
	return s.insert(r)
}

// WriteReflective stores a new reflective (insight) record.
func (s *Store) WriteReflective(insight, source string, confidence, importance float64, tags []string) (*Record, error) {
	if insight == "" {
		return nil, &ValidationError{Field: "insight", Msg: "must not be empty"}
	}
	now := time.Now()
	r := &Record{
		ID:         nextID(),
		Type:       TypeReflective,
		CreatedAt:  now,
		LastAccess: now,
		Importance: clampUnit(importance),
		Content:    insight,
		Tags:       tags,
		Reflective: &Reflective{Insight: insight, Source: source, Confidence: confidence},
	}
	return s.insert(r)
}

func (s *Store) insert(r *Record) (*Record, error) {
	s.mu.Lock()
	s.records[r.ID] = r
	s.mu.Unlock()
	s.persist(r)
	logging.MemoryDebug("wrote %s record %s", r.Type, r.ID)
	return cloneRecord(r), nil
}

// Get returns the latest view of a record and bumps its access_count and
// last_access. Returns nil, false for unknown or tombstoned IDs.
func (s *Store) Get(id string) (*Record, bool) {
	s.mu.Lock()
	r, ok := s.records[id]
	if !ok || r.Tombstoned {
		s.mu.Unlock()
		return nil, false
	}
	r.AccessCount++
	r.LastAccess = time.Now()
	view := cloneRecord(r)
	s.mu.Unlock()

	s.persist(r)
	return view, true
}

// QueryFilter narrows a Query call.
type QueryFilter struct {
	Type          Type
	Tags          []string
	TimeRangeFrom time.Time
	TimeRangeTo   time.Time
	MinImportance float64
}

// Query returns records matching filter, excluding tombstoned records.
func (s *Store) Query(f QueryFilter) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, r := range s.records {
		if r.Tombstoned {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		if f.MinImportance > 0 && r.Importance < f.MinImportance {
			continue
		}
		if !f.TimeRangeFrom.IsZero() && r.CreatedAt.Before(f.TimeRangeFrom) {
			continue
		}
		if !f.TimeRangeTo.IsZero() && r.CreatedAt.After(f.TimeRangeTo) {
			continue
		}
		if len(f.Tags) > 0 && !hasAnyTag(r.Tags, f.Tags) {
			continue
		}
		out = append(out, cloneRecord(r))
	}
	return out
}

// SearchByKeywords does a naive full-text search over record content.
func (s *Store) SearchByKeywords(terms []string) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, r := range s.records {
		if r.Tombstoned {
			continue
		}
		lc := strings.ToLower(r.Content)
		matched := false
		for _, term := range terms {
			if strings.Contains(lc, strings.ToLower(term)) {
				matched = true
				break
			}
		}
		if matched {
			out = append(out, cloneRecord(r))
		}
	}
	return out
}

// scored pairs a record with its retrieval score for sorting.
type scored struct {
	record *Record
	score  float64
}

// RetrieveRelevant ranks records by a weighted sum of semantic
// similarity (if embeddings are available), temporal proximity
// (exponential decay, 24h scale), and importance. Ties broken by
// descending importance then descending last-access.
func (s *Store) RetrieveRelevant(ctx context.Context, query string, k int) ([]*Record, error) {
	var queryEmbedding []float32
	if s.embedder != nil {
		emb, err := s.embedder.Embed(ctx, query)
		if err == nil {
			queryEmbedding = emb
		}
	}

	s.mu.RLock()
	candidates := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		if !r.Tombstoned {
			candidates = append(candidates, r)
		}
	}
	s.mu.RUnlock()

	now := time.Now()
	results := make([]scored, 0, len(candidates))
	for _, r := range candidates {
		var semantic float64
		if queryEmbedding != nil && len(r.Embedding) > 0 {
			semantic = cosineSimilarity(queryEmbedding, r.Embedding)
		} else {
			semantic = keywordOverlap(query, r.Content)
		}

		hoursSince := now.Sub(r.LastAccess).Hours()
		temporal := math.Exp(-hoursSince / 24)

		score := s.weights.Semantic*semantic + s.weights.Temporal*temporal + s.weights.Importance*r.Importance
		results = append(results, scored{record: r, score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		if results[i].record.Importance != results[j].record.Importance {
			return results[i].record.Importance > results[j].record.Importance
		}
		return results[i].record.LastAccess.After(results[j].record.LastAccess)
	})

	if k > len(results) {
		k = len(results)
	}
	out := make([]*Record, k)
	for i := 0; i < k; i++ {
		out[i] = cloneRecord(results[i].record)
	}
	return out, nil
}

// Maintain runs the periodic tick: computes salience for records idle
// longer than one hour and tombstones those below the prune threshold.
// Then sweeps eligible episodic records for consolidation.
func (s *Store) Maintain() {
	now := time.Now()

	s.mu.Lock()
	var toForget []*Record
	var toConsolidate []*Record
	for _, r := range s.records {
		if r.Tombstoned {
			continue
		}
		hoursIdle := now.Sub(r.LastAccess).Hours()
		if hoursIdle < 1 {
			continue
		}
		sal := Salience(s.constants, r.Importance, hoursIdle, r.AccessCount)
		if ShouldForget(sal, s.pruneThresh) {
			toForget = append(toForget, r)
			continue
		}
		if r.Type == TypeEpisodic {
			ageHours := now.Sub(r.CreatedAt).Hours()
			if EligibleForConsolidation(s.consolidate, ageHours, hoursIdle, r.AccessCount) {
				toConsolidate = append(toConsolidate, r)
			}
		}
	}
	for _, r := range toForget {
		r.Tombstoned = true
	}

	if s.hardCap > 0 {
		toForget = append(toForget, s.forceTrimLocked(now)...)
	}
	s.mu.Unlock()

	for _, r := range toForget {
		s.persist(r)
		if s.onForgotten != nil {
			s.onForgotten(r.ID)
		}
		logging.Memory("forgot record %s (salience below threshold)", r.ID)
	}

	for _, r := range toConsolidate {
		if _, err := s.consolidateOne(r); err != nil {
			logging.MemoryWarn("consolidation of %s failed: %v", r.ID, err)
		}
	}
}

// forceTrimLocked enforces hardCap by tombstoning the lowest-salience live
// records past the cap, regardless of the prune threshold. Caller holds
// s.mu.
func (s *Store) forceTrimLocked(now time.Time) []*Record {
	var live []*Record
	for _, r := range s.records {
		if !r.Tombstoned {
			live = append(live, r)
		}
	}
	excess := len(live) - s.hardCap
	if excess <= 0 {
		return nil
	}

	sort.Slice(live, func(i, j int) bool {
		si := Salience(s.constants, live[i].Importance, now.Sub(live[i].LastAccess).Hours(), live[i].AccessCount)
		sj := Salience(s.constants, live[j].Importance, now.Sub(live[j].LastAccess).Hours(), live[j].AccessCount)
		return si < sj
	})

	trimmed := live[:excess]
	for _, r := range trimmed {
		r.Tombstoned = true
	}
	return trimmed
}

// consolidateOne promotes an episodic record to semantic, idempotent via
// content hash dedup in WriteSemantic.
func (s *Store) consolidateOne(episodic *Record) (*Record, error) {
	importance := episodic.Importance
	if importance < 0.6 {
		importance = 0.6
	}

	semantic, err := s.WriteSemantic(episodic.Content, "", 0.5, false, importance, episodic.Tags)
	if err != nil {
		return nil, err
	}

	if s.onConsolidated != nil {
		s.onConsolidated(episodic.ID, semantic.ID)
	}
	logging.Memory("consolidated %s -> %s", episodic.ID, semantic.ID)
	return semantic, nil
}

// Count returns the number of live (non-tombstoned) records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.records {
		if !r.Tombstoned {
			n++
		}
	}
	return n
}

// ForgettableCount returns the number of live records whose current
// salience is below the prune threshold, used by the reflection
// engine's analyzer to surface a "memory cleanup" opportunity.
func (s *Store) ForgettableCount() int {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.records {
		if r.Tombstoned {
			continue
		}
		hoursIdle := now.Sub(r.LastAccess).Hours()
		sal := Salience(s.constants, r.Importance, hoursIdle, r.AccessCount)
		if ShouldForget(sal, s.pruneThresh) {
			n++
		}
	}
	return n
}

func hasAnyTag(recordTags, wanted []string) bool {
	set := make(map[string]bool, len(recordTags))
	for _, t := range recordTags {
		set[t] = true
	}
	for _, w := range wanted {
		if set[w] {
			return true
		}
	}
	return false
}

func keywordOverlap(query, content string) float64 {
	qTerms := strings.Fields(strings.ToLower(query))
	if len(qTerms) == 0 {
		return 0
	}
	lc := strings.ToLower(content)
	hits := 0
	for _, t := range qTerms {
		if strings.Contains(lc, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(qTerms))
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func clampUnit(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func cloneRecord(r *Record) *Record {
	c := *r
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	if r.Embedding != nil {
		c.Embedding = append([]float32(nil), r.Embedding...)
	}
	return &c
}
