package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ShixuDing/32933-project-match/internal/clients/llm"
	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/ShixuDing/32933-project-match/internal/interfaces"
	"github.com/ShixuDing/32933-project-match/internal/metrics"
	"github.com/ShixuDing/32933-project-match/internal/repository"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

const (
	ReasonNotRanked      = "not ranked"
	ReasonRankingFailed  = "ranking failed"
	ReasonNotRankedByAI  = "not ranked by AI"
	operationAnalyze     = "analyze"
	operationRank        = "rank"
	maxBackgroundRuneLen = 500
)

// browsePhrases mean "show me everything"; no targeted filter is extracted.
var browsePhrases = []string{
	"what projects",
	"which projects",
	"all projects",
	"show projects",
	"list projects",
	"view projects",
}

const analyzeInstructions = `You help university students find research projects.
Read the student's request, using any student background you are given, and extract what they are looking for.

Reference project fields (a guide only; prefer the student's own wording):
Healthcare, Blockchain, Artificial Intelligence, Internet of Things (IoT), Big Data, Cloud Computing,
Cybersecurity, Web Development, Mobile Development, Data Science, NLP, Computer Vision.

Rules:
1. fields: the 1-2 most relevant fields inferred from the request and the background.
2. keywords: at most 3-4 core technical terms from the request and the stated interests.
3. features: only project features explicitly mentioned in the request itself.
4. Keep only the core requirements.

Reply with a single JSON object and nothing else, using exactly these keys:
{"fields": [], "keywords": [], "features": []}
Every value is an array of short strings. If the request is small talk or has no analyzable
requirements, reply with all three arrays empty.`

const rankInstructions = `You rank university research projects for a student.
You receive the student's requirements (fields, keywords, features) and a list of candidate projects,
each with id, name, description, field, project_type and supervisor_expertise.
Score every project from 0 to 10 and sort by score, best first.

Scoring rules (10 points in total, applied holistically):
1. Field/type match (0-4 points): compare the required fields with the project's field and project_type.
   An exact project_type match scores about 4 points; a general field or related type match scores 2-3 points.
   Consider semantic similarity, such as an AI requirement against a Machine Learning project type.
2. Keyword match (0-3 points): required keywords found in the description or the supervisor_expertise.
   Explicit mentions score higher than related concepts.
3. Supervisor expertise match (0-2 points): award points when the supervisor_expertise strongly aligns
   with the required fields or keywords.
4. Feature match (0-1 point): only when the project explicitly meets a requested feature.

You must score and rank every project in the list. Each entry needs id, score and a short reasoning
naming which aspects matched well or poorly.
Reply with a single JSON object and nothing else:
{"ranked_projects": [{"id": <project id as given>, "score": <number from 0 to 10>, "reasoning": "<text>"}]}`

type MatchingService interface {
	AnalyzeRequirements(ctx context.Context, input dto.AnalyzeRequest) (*dto.Requirements, error)
	RankProjects(ctx context.Context, requirements *dto.Requirements, projects []dto.ProjectCandidate) []dto.RankedProject
	Recommend(ctx context.Context, studentID uint, userInput string) (*dto.RecommendResponse, error)
}

type matchingService struct {
	db        *gorm.DB
	completer interfaces.Completer
	projects  ProjectService
	metrics   *metrics.Collector
}

func NewMatchingService(db *gorm.DB, completer interfaces.Completer, projects ProjectService, collector *metrics.Collector) MatchingService {
	return &matchingService{
		db:        db,
		completer: completer,
		projects:  projects,
		metrics:   collector,
	}
}

// AnalyzeRequirements extracts structured requirements from free text. A nil
// result with a nil error means "no targeted filter". The only error returned
// is llm.ErrNotConfigured; every other upstream failure degrades to nil.
func (m *matchingService) AnalyzeRequirements(ctx context.Context, input dto.AnalyzeRequest) (*dto.Requirements, error) {
	if isBrowseRequest(input.UserInput) {
		m.metrics.AIRequest(operationAnalyze, metrics.OutcomeShortCircuit)
		return nil, nil
	}

	messages := []interfaces.ChatMessage{
		{Role: interfaces.RoleSystem, Content: analyzeInstructions},
	}
	if background := studentBackground(input); background != "" {
		messages = append(messages, interfaces.ChatMessage{Role: interfaces.RoleSystem, Content: background})
	}
	messages = append(messages, interfaces.ChatMessage{Role: interfaces.RoleUser, Content: input.UserInput})

	start := time.Now()
	reply, err := m.completer.Complete(ctx, messages, true)
	m.metrics.AIDuration(operationAnalyze, time.Since(start))
	if err != nil {
		m.metrics.AIRequest(operationAnalyze, metrics.OutcomeError)
		if errors.Is(err, llm.ErrNotConfigured) {
			return nil, err
		}
		logger.Warningf("requirement analysis failed: %v", err)
		return nil, nil
	}

	requirements, ok := parseRequirements(reply)
	if !ok {
		logger.Debugf("requirement analysis returned an unusable reply: %q", reply)
		m.metrics.AIRequest(operationAnalyze, metrics.OutcomeFallback)
		return nil, nil
	}
	if requirements.Empty() {
		m.metrics.AIRequest(operationAnalyze, metrics.OutcomeEmpty)
		return nil, nil
	}
	m.metrics.AIRequest(operationAnalyze, metrics.OutcomeOK)
	return requirements, nil
}

// RankProjects orders projects by the upstream ranking. It never fails: when
// there is nothing to rank, or the upstream call fails, the input comes back
// in its original order with a null score.
func (m *matchingService) RankProjects(ctx context.Context, requirements *dto.Requirements, projects []dto.ProjectCandidate) []dto.RankedProject {
	if requirements == nil || len(projects) == 0 {
		m.metrics.AIRequest(operationRank, metrics.OutcomeShortCircuit)
		return unranked(projects, ReasonNotRanked)
	}

	payload, err := json.Marshal(struct {
		Requirements *dto.Requirements      `json:"requirements"`
		Projects     []dto.ProjectCandidate `json:"projects"`
	}{requirements, projects})
	if err != nil {
		logger.Errorf("encode ranking request: %v", err)
		m.metrics.AIRequest(operationRank, metrics.OutcomeFallback)
		return unranked(projects, ReasonRankingFailed)
	}

	start := time.Now()
	reply, err := m.completer.Complete(ctx, []interfaces.ChatMessage{
		{Role: interfaces.RoleSystem, Content: rankInstructions},
		{Role: interfaces.RoleUser, Content: string(payload)},
	}, true)
	m.metrics.AIDuration(operationRank, time.Since(start))
	if err != nil {
		logger.Warningf("project ranking failed: %v", err)
		m.metrics.AIRequest(operationRank, metrics.OutcomeError)
		return unranked(projects, ReasonRankingFailed)
	}

	entries, ok := parseRanking(reply)
	if !ok {
		logger.Debugf("project ranking returned an unusable reply: %q", reply)
		m.metrics.AIRequest(operationRank, metrics.OutcomeFallback)
		return unranked(projects, ReasonRankingFailed)
	}

	m.metrics.AIRequest(operationRank, metrics.OutcomeOK)
	return mergeRanking(projects, entries)
}

// Recommend analyzes the student's request with their profile as background
// and ranks every stored project against it.
func (m *matchingService) Recommend(ctx context.Context, studentID uint, userInput string) (*dto.RecommendResponse, error) {
	if strings.TrimSpace(userInput) == "" {
		return nil, errors.NewNotValid(nil, "user_input is required")
	}
	profile, err := repository.NewStudentProfileRepository(m.db).FindByUserID(ctx, studentID)
	if err != nil {
		return nil, errors.Trace(err)
	}

	requirements, err := m.AnalyzeRequirements(ctx, dto.AnalyzeRequest{
		UserInput:        userInput,
		StudentMajor:     &profile.Major,
		StudentInterests: &profile.Interests,
		StudentFaculty:   &profile.Faculty,
	})
	if err != nil {
		return nil, err
	}

	candidates, err := m.projects.Candidates(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &dto.RecommendResponse{
		Requirements:   requirements,
		RankedProjects: m.RankProjects(ctx, requirements, candidates),
	}, nil
}

func isBrowseRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range browsePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func studentBackground(input dto.AnalyzeRequest) string {
	var lines []string
	add := func(label string, v *string) {
		if v == nil {
			return
		}
		s := strings.TrimSpace(*v)
		if s == "" {
			return
		}
		if r := []rune(s); len(r) > maxBackgroundRuneLen {
			s = string(r[:maxBackgroundRuneLen])
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, s))
	}
	add("Major", input.StudentMajor)
	add("Interests", input.StudentInterests)
	add("Faculty", input.StudentFaculty)
	if len(lines) == 0 {
		return ""
	}
	return "Student background:\n" + strings.Join(lines, "\n")
}

// parseRequirements accepts a JSON object carrying all three keys, each an
// array of strings (null counts as empty).
func parseRequirements(reply string) (*dto.Requirements, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(reply), &raw); err != nil || raw == nil {
		return nil, false
	}
	var out dto.Requirements
	for key, dst := range map[string]*[]string{
		"fields":   &out.Fields,
		"keywords": &out.Keywords,
		"features": &out.Features,
	} {
		value, ok := raw[key]
		if !ok {
			return nil, false
		}
		if err := json.Unmarshal(value, dst); err != nil {
			return nil, false
		}
		if *dst == nil {
			*dst = []string{}
		}
	}
	return &out, true
}

type rankEntry struct {
	key       string
	score     *float64
	reasoning string
}

// parseRanking requires a ranked_projects array. Entries that are not
// objects or carry no usable id are skipped.
func parseRanking(reply string) ([]rankEntry, bool) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(reply), &envelope); err != nil || envelope == nil {
		return nil, false
	}
	rawList, ok := envelope["ranked_projects"]
	if !ok {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawList, &items); err != nil || items == nil {
		return nil, false
	}

	entries := make([]rankEntry, 0, len(items))
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			continue
		}
		var id any
		if err := json.Unmarshal(fields["id"], &id); err != nil {
			continue
		}
		key, ok := idKey(id)
		if !ok {
			continue
		}
		var reasoning string
		_ = json.Unmarshal(fields["reasoning"], &reasoning)
		entries = append(entries, rankEntry{
			key:       key,
			score:     parseScore(fields["score"]),
			reasoning: reasoning,
		})
	}
	return entries, true
}

// mergeRanking follows the upstream order, drops ids it does not know and
// appends the projects the upstream left out.
func mergeRanking(projects []dto.ProjectCandidate, entries []rankEntry) []dto.RankedProject {
	byKey := make(map[string]int, len(projects))
	for i, p := range projects {
		key, ok := idKey(p.ID)
		if !ok {
			continue
		}
		if _, dup := byKey[key]; !dup {
			byKey[key] = i
		}
	}

	used := make([]bool, len(projects))
	out := make([]dto.RankedProject, 0, len(projects))
	for _, e := range entries {
		i, ok := byKey[e.key]
		if !ok || used[i] {
			continue
		}
		used[i] = true
		out = append(out, dto.RankedProject{
			ProjectCandidate: projects[i],
			Score:            e.score,
			Reasoning:        e.reasoning,
		})
	}
	for i, p := range projects {
		if used[i] {
			continue
		}
		zero := 0.0
		out = append(out, dto.RankedProject{
			ProjectCandidate: p,
			Score:            &zero,
			Reasoning:        ReasonNotRankedByAI,
		})
	}
	return out
}

func unranked(projects []dto.ProjectCandidate, reason string) []dto.RankedProject {
	out := make([]dto.RankedProject, 0, len(projects))
	for _, p := range projects {
		out = append(out, dto.RankedProject{ProjectCandidate: p, Reasoning: reason})
	}
	return out
}

// idKey turns a project id into a comparable string. JSON numbers use their
// shortest decimal form, so 1, 1.0 and "1" share a key.
func idKey(id any) (string, bool) {
	switch v := id.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return fmt.Sprint(v), true
	}
}

func parseScore(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch s := v.(type) {
	case float64:
		return &s
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
