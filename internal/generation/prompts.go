package generation

import (
	"fmt"
	"strings"

	"github.com/ryan258/insight-capsule/internal/domain"
)

// Prompt templates for every generation role. Roles differ only in their
// template; retry and fallback live in the gateway.

const capsuleMaxWords = 120

// CapsuleRequest asks for the condensed insight capsule of a raw transcript.
func CapsuleRequest(transcript string, preferLocal bool) domain.GenerationRequest {
	prompt := fmt.Sprintf(`Turn the following idea or transcript into a concise,
high-insight capsule of approximately %d words.
The capsule should capture the essence and deeper implications of the thought.
Avoid conversational openings or closings; focus on delivering the core insight directly.

Transcript:
"""
%s
"""

Insight Capsule:`, capsuleMaxWords, transcript)
	return domain.GenerationRequest{Role: domain.RoleCapsule, Prompt: prompt, PreferLocal: preferLocal}
}

// OutlineRequest asks for a blog post outline built on a stored insight.
func OutlineRequest(ins *domain.Insight, preferLocal bool) domain.GenerationRequest {
	prompt := fmt.Sprintf(`You are a content strategist helping to turn an insight into a blog post outline.

Original thought:
%s

Insight:
"""%s"""

Create a 5-point blog post outline based on this insight. The outline should:
- Have a compelling title
- Include 5 main sections with brief descriptions
- Target readers who want practical, actionable information

Blog Post Outline:`, ins.Transcript, ins.Capsule)
	return domain.GenerationRequest{Role: domain.RoleOutline, Prompt: prompt, PreferLocal: preferLocal}
}

// DraftRequest asks for a first draft built on a stored insight. The latest
// outline draft, if one exists, is included as structure to follow.
func DraftRequest(ins *domain.Insight, preferLocal bool) domain.GenerationRequest {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a content writer helping to turn an insight into a blog post first draft.\n\n")
	fmt.Fprintf(&sb, "Original thought:\n%s\n\n", ins.Transcript)
	if outline := latestDraft(ins, string(domain.RoleOutline)); outline != "" {
		fmt.Fprintf(&sb, "Outline to follow:\n%s\n\n", outline)
	}
	fmt.Fprintf(&sb, `Insight:
"""%s"""

Write a first draft of approximately 500 words based on this insight.
The draft should:
- Be conversational and engaging
- Focus on practical, actionable information
- Include specific examples where relevant
- Avoid jargon and be accessible to a general audience

Write the complete first draft:`, ins.Capsule)
	return domain.GenerationRequest{Role: domain.RoleDraft, Prompt: sb.String(), PreferLocal: preferLocal}
}

// TakeawaysRequest asks for key takeaways of a stored insight.
func TakeawaysRequest(ins *domain.Insight, preferLocal bool) domain.GenerationRequest {
	prompt := fmt.Sprintf(`Based on the following insight, generate 3 key takeaways.
Make them concise, actionable, and memorable.

Insight:
"""%s"""

Format as a numbered list.

Key Takeaways:`, ins.Capsule)
	return domain.GenerationRequest{Role: domain.RoleTakeaways, Prompt: prompt, PreferLocal: preferLocal}
}

// SearchAnswerRequest asks for an answer to a query grounded in retrieved
// insights. context is the already-bounded block of numbered insight excerpts.
func SearchAnswerRequest(query, context string, preferLocal bool) domain.GenerationRequest {
	prompt := fmt.Sprintf(`Based on the following insights from the user's personal library, answer their question.

Question: %s

Relevant Insights:
%s

Instructions:
- Provide a clear, concise answer based ONLY on the insights provided above
- Synthesize information across multiple insights if relevant
- If the insights don't contain enough information to answer fully, say so
- Be conversational but informative
- Do NOT make up information not present in the insights

Answer:`, query, context)
	return domain.GenerationRequest{Role: domain.RoleSearchAnswer, Prompt: prompt, PreferLocal: preferLocal}
}

// RequestForAction maps a draft kind to its request builder.
func RequestForAction(kind string, ins *domain.Insight, preferLocal bool) (domain.GenerationRequest, error) {
	switch domain.Role(kind) {
	case domain.RoleOutline:
		return OutlineRequest(ins, preferLocal), nil
	case domain.RoleDraft:
		return DraftRequest(ins, preferLocal), nil
	case domain.RoleTakeaways:
		return TakeawaysRequest(ins, preferLocal), nil
	default:
		return domain.GenerationRequest{}, fmt.Errorf("unknown action kind %q", kind)
	}
}

func latestDraft(ins *domain.Insight, kind string) string {
	for i := len(ins.Drafts) - 1; i >= 0; i-- {
		if ins.Drafts[i].Kind == kind {
			return ins.Drafts[i].Text
		}
	}
	return ""
}
