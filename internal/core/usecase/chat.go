package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/kvolkov/docsense/internal/core/domain"
	"github.com/kvolkov/docsense/internal/core/ports"
	"github.com/kvolkov/docsense/internal/infrastructure/textclean"
)

const (
	defaultChatTopK         = 3
	defaultContextChars     = 2500
	defaultHistoryTurns     = 10
	snippetsPerDocument     = 2
	minSnippetChars         = 40
	systemInstruction       = "You are a document assistant. Answer the question using the provided document excerpts when they are relevant. If the excerpts do not contain the answer, say so plainly. Answer in the language of the question."
	noKnowledgeInstruction  = "No matching documents were found in the knowledge base. Answer from general knowledge and say that no stored document covers this."
	knowledgeContextHeading = "Document excerpts:"
)

type session struct {
	turns []domain.ConversationTurn
}

// ChatUseCase answers questions grounded in the stored documents and
// keeps per-session conversation history in memory.
type ChatUseCase struct {
	store ports.KnowledgeStore
	llm   ports.LLMClient
	log   *slog.Logger

	topK         int
	contextChars int
	historyTurns int

	mu       sync.Mutex
	sessions map[string]*session
}

func NewChatUseCase(store ports.KnowledgeStore, llm ports.LLMClient, topK, contextChars, historyTurns int, log *slog.Logger) *ChatUseCase {
	if topK <= 0 {
		topK = defaultChatTopK
	}
	if contextChars <= 0 {
		contextChars = defaultContextChars
	}
	if historyTurns <= 0 {
		historyTurns = defaultHistoryTurns
	}
	return &ChatUseCase{
		store:        store,
		llm:          llm,
		log:          log,
		topK:         topK,
		contextChars: contextChars,
		historyTurns: historyTurns,
		sessions:     make(map[string]*session),
	}
}

// Chat retrieves relevant documents, builds the prompt, and calls the
// model. History is appended only after a successful completion, so a
// failed call leaves the session untouched. The returned sources are
// exactly the documents whose excerpts made it into the prompt.
func (uc *ChatUseCase) Chat(ctx context.Context, sessionID, message string, useKnowledge bool) (*domain.ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("empty message"))
	}
	if sessionID == "" {
		sessionID = "default"
	}

	var (
		contextBlock string
		sources      []domain.SourceRef
	)
	if useKnowledge {
		scored, err := uc.store.Search(ctx, message, uc.topK)
		if err != nil {
			return nil, err
		}
		contextBlock, sources = uc.buildContext(scored, message)
	}

	history := uc.history(sessionID)
	prompt := buildPrompt(contextBlock, history, message, useKnowledge)

	answer, err := uc.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	uc.append(sessionID,
		domain.ConversationTurn{Role: domain.RoleUser, Text: message, Timestamp: now},
		domain.ConversationTurn{Role: domain.RoleAssistant, Text: answer, Sources: sources, Timestamp: now},
	)

	uc.log.Info("chat_answered", "session_id", sessionID, "sources", len(sources), "use_knowledge", useKnowledge)
	return &domain.ChatResult{Response: answer, Sources: sources}, nil
}

// Clear drops the session's conversation history.
func (uc *ChatUseCase) Clear(sessionID string) {
	if sessionID == "" {
		sessionID = "default"
	}
	uc.mu.Lock()
	delete(uc.sessions, sessionID)
	uc.mu.Unlock()
}

func (uc *ChatUseCase) history(sessionID string) []domain.ConversationTurn {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	sess, ok := uc.sessions[sessionID]
	if !ok {
		return nil
	}
	turns := sess.turns
	if len(turns) > uc.historyTurns {
		turns = turns[len(turns)-uc.historyTurns:]
	}
	out := make([]domain.ConversationTurn, len(turns))
	copy(out, turns)
	return out
}

func (uc *ChatUseCase) append(sessionID string, turns ...domain.ConversationTurn) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	sess, ok := uc.sessions[sessionID]
	if !ok {
		sess = &session{}
		uc.sessions[sessionID] = sess
	}
	sess.turns = append(sess.turns, turns...)
}

// buildContext turns ranked documents into a bounded excerpt block. The
// documents arrive most-relevant-first; when the character budget runs
// out the least relevant ones are dropped, so a document is cited as a
// source only if at least part of its excerpt was included.
func (uc *ChatUseCase) buildContext(scored []domain.ScoredDocument, query string) (string, []domain.SourceRef) {
	if len(scored) == 0 {
		return "", []domain.SourceRef{}
	}

	budget := uc.contextChars
	var parts []string
	sources := make([]domain.SourceRef, 0, len(scored))

	for _, doc := range scored {
		excerpt := relevantExcerpt(doc.ExtractedText, query)
		if excerpt == "" {
			continue
		}
		entry := fmt.Sprintf("[From: %s]\n%s", doc.Filename, excerpt)
		if len(entry) > budget {
			if budget < minSnippetChars {
				break
			}
			// Back off to a rune boundary so the cut never leaves
			// invalid UTF-8 in the prompt.
			cut := budget
			for cut > 0 && !utf8.RuneStart(entry[cut]) {
				cut--
			}
			entry = entry[:cut]
		}
		parts = append(parts, entry)
		budget -= len(entry)
		sources = append(sources, domain.SourceRef{DocumentID: doc.ID, Filename: doc.Filename})
		if budget <= 0 {
			break
		}
	}

	if len(parts) == 0 {
		return "", []domain.SourceRef{}
	}
	return strings.Join(parts, "\n\n"), sources
}

// relevantExcerpt picks the segments of text that overlap the query the
// most. Section-marked documents split on their section boundaries,
// anything else on blank lines.
func relevantExcerpt(text, query string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var segments []string
	if sections := textclean.Sections(text); len(sections) > 1 {
		for _, s := range sections {
			segments = append(segments, strings.TrimSpace(s.Label+" "+s.Text))
		}
	} else {
		for _, p := range strings.Split(text, "\n\n") {
			if p = strings.TrimSpace(p); p != "" {
				segments = append(segments, p)
			}
		}
	}
	if len(segments) <= snippetsPerDocument {
		return strings.Join(segments, "\n")
	}

	queryTokens := tokenSet(query)
	type ranked struct {
		index   int
		overlap int
	}
	order := make([]ranked, len(segments))
	for i, seg := range segments {
		overlap := 0
		for t := range tokenSet(seg) {
			if _, ok := queryTokens[t]; ok {
				overlap++
			}
		}
		order[i] = ranked{index: i, overlap: overlap}
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].overlap > order[j].overlap })

	picked := order[:snippetsPerDocument]
	sort.Slice(picked, func(i, j int) bool { return picked[i].index < picked[j].index })

	out := make([]string, 0, len(picked))
	for _, p := range picked {
		out = append(out, segments[p.index])
	}
	return strings.Join(out, "\n")
}

func buildPrompt(contextBlock string, history []domain.ConversationTurn, message string, useKnowledge bool) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\n")

	if useKnowledge {
		if contextBlock != "" {
			b.WriteString(knowledgeContextHeading)
			b.WriteString("\n")
			b.WriteString(contextBlock)
			b.WriteString("\n\n")
		} else {
			b.WriteString(noKnowledgeInstruction)
			b.WriteString("\n\n")
		}
	}

	for _, turn := range history {
		switch turn.Role {
		case domain.RoleUser:
			b.WriteString("User: ")
		case domain.RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}

	b.WriteString("User: ")
	b.WriteString(message)
	b.WriteString("\nAssistant:")
	return b.String()
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			set[b.String()] = struct{}{}
			b.Reset()
		}
	}
	if b.Len() > 0 {
		set[b.String()] = struct{}{}
	}
	return set
}
